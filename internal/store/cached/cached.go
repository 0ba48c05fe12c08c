// Package cached wraps the policy and override stores with a read-through
// cache. Every successful write invalidates the affected keys before it
// returns. Appointments are never cached.
package cached

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"showroom/backend/internal/cache"
	"showroom/backend/internal/domain"
	"showroom/backend/internal/store"
)

const (
	keyWeeklyHours = "weekly_hours"
	keyOverrides   = "date_overrides"
)

type PolicyStore struct {
	next  store.PolicyStore
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

var _ store.PolicyStore = (*PolicyStore)(nil)

func NewPolicyStore(next store.PolicyStore, c cache.Cache, ttl time.Duration, log *slog.Logger) *PolicyStore {
	if log == nil {
		log = slog.Default()
	}
	return &PolicyStore{next: next, cache: c, ttl: ttl, log: log.With(slog.String("component", "cached.policy"))}
}

func (s *PolicyStore) WeeklyHours(ctx context.Context) ([]domain.WeeklyHoursEntry, error) {
	var out []domain.WeeklyHoursEntry
	err := s.cache.GetOrLoad(ctx, keyWeeklyHours, s.ttl, &out, func(ctx context.Context) (any, error) {
		return s.next.WeeklyHours(ctx)
	})
	return out, err
}

func (s *PolicyStore) ReplaceWeeklyHours(ctx context.Context, entries []domain.WeeklyHoursEntry) error {
	if err := s.next.ReplaceWeeklyHours(ctx, entries); err != nil {
		return err
	}
	invalidate(ctx, s.cache, s.log, keyWeeklyHours)
	return nil
}

type OverrideStore struct {
	next  store.OverrideStore
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

var _ store.OverrideStore = (*OverrideStore)(nil)

func NewOverrideStore(next store.OverrideStore, c cache.Cache, ttl time.Duration, log *slog.Logger) *OverrideStore {
	if log == nil {
		log = slog.Default()
	}
	return &OverrideStore{next: next, cache: c, ttl: ttl, log: log.With(slog.String("component", "cached.overrides"))}
}

func (s *OverrideStore) ListOverrides(ctx context.Context) ([]domain.DateOverride, error) {
	var out []domain.DateOverride
	err := s.cache.GetOrLoad(ctx, keyOverrides, s.ttl, &out, func(ctx context.Context) (any, error) {
		return s.next.ListOverrides(ctx)
	})
	return out, err
}

func (s *OverrideStore) GetOverride(ctx context.Context, id uuid.UUID) (domain.DateOverride, error) {
	return s.next.GetOverride(ctx, id)
}

func (s *OverrideStore) CreateOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error) {
	out, err := s.next.CreateOverride(ctx, o)
	if err != nil {
		return domain.DateOverride{}, err
	}
	invalidate(ctx, s.cache, s.log, keyOverrides)
	return out, nil
}

func (s *OverrideStore) UpdateOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error) {
	out, err := s.next.UpdateOverride(ctx, o)
	if err != nil {
		return domain.DateOverride{}, err
	}
	invalidate(ctx, s.cache, s.log, keyOverrides)
	return out, nil
}

func (s *OverrideStore) DeleteOverride(ctx context.Context, id uuid.UUID) error {
	if err := s.next.DeleteOverride(ctx, id); err != nil {
		return err
	}
	invalidate(ctx, s.cache, s.log, keyOverrides)
	return nil
}

// invalidate logs instead of failing: the write is already committed and
// the entry still expires after its ttl.
func invalidate(ctx context.Context, c cache.Cache, log *slog.Logger, key string) {
	if err := c.Invalidate(ctx, key); err != nil {
		log.Error("cache invalidation failed", slog.String("key", key), slog.Any("err", err))
	}
}
