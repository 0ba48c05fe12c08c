package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	netmail "net/mail"
	"strings"
	"time"
)

const DefaultSidemailURL = "https://api.sidemail.io/v1"

type SidemailConfig struct {
	APIKey      string
	BaseURL     string
	FromAddress string
	FromName    string
	Timeout     time.Duration
}

// SidemailMailer sends templated transactional email through the Sidemail
// HTTP API.
type SidemailMailer struct {
	cfg        SidemailConfig
	httpClient *http.Client
	log        *slog.Logger
}

func NewSidemailMailer(cfg SidemailConfig, log *slog.Logger) *SidemailMailer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSidemailURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &SidemailMailer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With(slog.String("component", "notify.sidemail")),
	}
}

type sidemailSendPayload struct {
	ToAddress     string         `json:"toAddress"`
	FromAddress   string         `json:"fromAddress"`
	FromName      string         `json:"fromName,omitempty"`
	TemplateName  string         `json:"templateName"`
	TemplateProps map[string]any `json:"templateProps,omitempty"`
}

type sidemailResponse struct {
	ID           string `json:"id,omitempty"`
	Status       string `json:"status,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
	DeveloperMsg string `json:"developerMessage,omitempty"`
}

func (m *SidemailMailer) SendEmail(ctx context.Context, tpl Template, to Recipient) error {
	if m.cfg.APIKey == "" {
		m.log.Warn("sidemail api key not configured, skipping email", slog.String("template", tpl.Name))
		return nil
	}
	if _, err := netmail.ParseAddress(to.Email); err != nil {
		return fmt.Errorf("invalid email address: %w", err)
	}

	body, err := json.Marshal(sidemailSendPayload{
		ToAddress:     sanitize(to.Email),
		FromAddress:   m.cfg.FromAddress,
		FromName:      m.cfg.FromName,
		TemplateName:  tpl.Name,
		TemplateProps: tpl.Props,
	})
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(m.cfg.BaseURL, "/")+"/email/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var sr sidemailResponse
		if json.Unmarshal(raw, &sr) == nil && sr.DeveloperMsg != "" {
			return fmt.Errorf("sidemail %s: status %d: %s", tpl.Name, resp.StatusCode, truncate(sanitize(sr.DeveloperMsg)))
		}
		return fmt.Errorf("sidemail %s: status %d: %s", tpl.Name, resp.StatusCode, truncate(sanitize(string(raw))))
	}

	m.log.Debug("email sent", slog.String("template", tpl.Name))
	return nil
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.TrimSpace(s)
}

func truncate(s string) string {
	const maxLength = 200
	if len(s) > maxLength {
		return s[:maxLength] + "..."
	}
	return s
}
