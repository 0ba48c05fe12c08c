// Package auth guards the non-public surfaces: the calendar feed and the
// reminder hook use shared secrets, administration uses HS256 bearer tokens.
package auth

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"showroom/backend/internal/domain"
)

type Action string

const (
	ActionReadFeed     Action = "read_feed"
	ActionRunReminders Action = "run_reminders"
	ActionAdminister   Action = "administer"
)

const RoleAdmin = "admin"

// Actor is whoever presented a credential: a shared secret or a bearer
// token, depending on the action.
type Actor struct {
	Credential string
}

type Authorizer interface {
	Authorize(actor Actor, action Action) bool
}

type Config struct {
	FeedSecret     string
	CronSecret     string
	AdminJWTSecret string
	Clock          func() time.Time
}

type SecretAuthorizer struct {
	cfg Config
}

var _ Authorizer = (*SecretAuthorizer)(nil)

func New(cfg Config) *SecretAuthorizer {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &SecretAuthorizer{cfg: cfg}
}

func (a *SecretAuthorizer) Authorize(actor Actor, action Action) bool {
	return a.Check(actor, action) == nil
}

// Check is Authorize with a reason: a valid admin token signed for another
// role yields a forbidden error rather than an unauthorized one.
func (a *SecretAuthorizer) Check(actor Actor, action Action) error {
	cred := strings.TrimSpace(actor.Credential)
	switch action {
	case ActionReadFeed:
		if secretMatches(a.cfg.FeedSecret, cred) {
			return nil
		}
	case ActionRunReminders:
		if secretMatches(a.cfg.CronSecret, cred) {
			return nil
		}
	case ActionAdminister:
		role, ok := a.tokenRole(cred)
		if ok && role == RoleAdmin {
			return nil
		}
		if ok {
			return &domain.AuthorizationError{Action: string(action), Forbidden: true}
		}
	}
	return &domain.AuthorizationError{Action: string(action)}
}

func secretMatches(configured, presented string) bool {
	if configured == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (a *SecretAuthorizer) tokenRole(raw string) (string, bool) {
	if a.cfg.AdminJWTSecret == "" || raw == "" {
		return "", false
	}
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))

	var claims adminClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return []byte(a.cfg.AdminJWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.cfg.Clock),
	)
	if err != nil {
		return "", false
	}
	return claims.Role, true
}

// IssueToken signs an HS256 token for subject with the given role.
func IssueToken(secret, subject, role string, ttl time.Duration, now time.Time) (string, error) {
	claims := adminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
