// Package schedule administers the weekly opening hours and date overrides.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/store"
)

type Service struct {
	policy    store.PolicyStore
	overrides store.OverrideStore
	loc       *time.Location
	clock     func() time.Time
	log       *slog.Logger
}

func NewService(policy store.PolicyStore, overrides store.OverrideStore, loc *time.Location, clock func() time.Time, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		policy:    policy,
		overrides: overrides,
		loc:       loc,
		clock:     clock,
		log:       log.With(slog.String("component", "schedule")),
	}
}

func (s *Service) WeeklyHours(ctx context.Context) ([]domain.WeeklyHoursEntry, error) {
	week, err := s.policy.WeeklyHours(ctx)
	if err != nil {
		s.log.Error("load weekly hours failed", slog.Any("err", err))
		return nil, domain.StorageUnavailable("load weekly hours", err)
	}
	return week, nil
}

func (s *Service) UpdateWeeklyHours(ctx context.Context, entries []domain.WeeklyHoursEntry) ([]domain.WeeklyHoursEntry, error) {
	if err := domain.ValidateWeek(entries); err != nil {
		return nil, err
	}
	sorted := append([]domain.WeeklyHoursEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DayOfWeek < sorted[j].DayOfWeek })

	if err := s.policy.ReplaceWeeklyHours(ctx, sorted); err != nil {
		s.log.Error("replace weekly hours failed", slog.Any("err", err))
		return nil, domain.StorageUnavailable("replace weekly hours", err)
	}
	s.log.Info("weekly hours updated")
	return sorted, nil
}

// ListOverrides omits past one-off overrides unless includePast is set.
func (s *Service) ListOverrides(ctx context.Context, includePast bool) ([]domain.DateOverride, error) {
	all, err := s.overrides.ListOverrides(ctx)
	if err != nil {
		s.log.Error("list overrides failed", slog.Any("err", err))
		return nil, domain.StorageUnavailable("list overrides", err)
	}
	if includePast {
		return all, nil
	}
	today := s.today()
	out := make([]domain.DateOverride, 0, len(all))
	for _, o := range all {
		if !o.Past(today) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Service) CreateOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error) {
	o.Reason = strings.TrimSpace(o.Reason)
	if err := o.Validate(); err != nil {
		return domain.DateOverride{}, err
	}
	o.ID = uuid.Nil
	created, err := s.overrides.CreateOverride(ctx, o)
	if err != nil {
		s.log.Error("create override failed", slog.Any("err", err), slog.String("date", o.Date.String()))
		return domain.DateOverride{}, domain.StorageUnavailable("create override", err)
	}
	s.log.Info("override created",
		slog.String("override_id", created.ID.String()),
		slog.String("date", created.Date.String()),
		slog.Bool("closed", created.IsClosed),
	)
	return created, nil
}

func (s *Service) UpdateOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error) {
	if o.ID == uuid.Nil {
		return domain.DateOverride{}, domain.Validationf("override_id is required")
	}
	o.Reason = strings.TrimSpace(o.Reason)
	if err := o.Validate(); err != nil {
		return domain.DateOverride{}, err
	}
	updated, err := s.overrides.UpdateOverride(ctx, o)
	if err != nil {
		return domain.DateOverride{}, s.mapError("update override", o.ID, err)
	}
	s.log.Info("override updated", slog.String("override_id", o.ID.String()))
	return updated, nil
}

func (s *Service) DeleteOverride(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return domain.Validationf("override_id is required")
	}
	if err := s.overrides.DeleteOverride(ctx, id); err != nil {
		return s.mapError("delete override", id, err)
	}
	s.log.Info("override deleted", slog.String("override_id", id.String()))
	return nil
}

// PublicClosures lists the current and upcoming overrides flagged for the
// website, ordered by date.
func (s *Service) PublicClosures(ctx context.Context) ([]domain.DateOverride, error) {
	all, err := s.ListOverrides(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DateOverride, 0, len(all))
	for _, o := range all {
		if o.ShowOnWebsite {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := domain.CompareDates(out[i].Date, out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Service) today() domain.LocalDate {
	return domain.DateOf(s.clock(), s.loc)
}

func (s *Service) mapError(op string, id uuid.UUID, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &domain.NotFoundError{Kind: "override", ID: id.String()}
	}
	s.log.Error(op+" failed", slog.Any("err", err), slog.String("override_id", id.String()))
	return domain.StorageUnavailable(op, err)
}
