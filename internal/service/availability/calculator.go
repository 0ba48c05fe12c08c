// Package availability turns the weekly policy, date overrides and booked
// appointments into per-day bookable slots.
package availability

import (
	"context"
	"log/slog"
	"time"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/store"
)

// ActiveAppointmentLister is the read side of the appointment store the
// calculator needs.
type ActiveAppointmentLister interface {
	ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error)
}

type Config struct {
	SlotMinutes  int
	MaxRangeDays int
	// MinAdvance is how far ahead of now a slot must start to be bookable.
	MinAdvance time.Duration
	Location   *time.Location
	Clock      func() time.Time
}

func (c Config) withDefaults() Config {
	if c.SlotMinutes <= 0 {
		c.SlotMinutes = 60
	}
	if c.MaxRangeDays <= 0 {
		c.MaxRangeDays = 90
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

type Calculator struct {
	policy    store.PolicyStore
	overrides store.OverrideStore
	appts     ActiveAppointmentLister
	cfg       Config
	log       *slog.Logger
}

func NewCalculator(policy store.PolicyStore, overrides store.OverrideStore, appts ActiveAppointmentLister, cfg Config, log *slog.Logger) *Calculator {
	if log == nil {
		log = slog.Default()
	}
	return &Calculator{
		policy:    policy,
		overrides: overrides,
		appts:     appts,
		cfg:       cfg.withDefaults(),
		log:       log.With(slog.String("component", "availability")),
	}
}

func (c *Calculator) Location() *time.Location {
	return c.cfg.Location
}

func (c *Calculator) SlotMinutes() int {
	return c.cfg.SlotMinutes
}

// ComputeAvailability returns one DayAvailability per date in [start, end].
// slotMinutes <= 0 selects the configured default.
func (c *Calculator) ComputeAvailability(ctx context.Context, start, end domain.LocalDate, slotMinutes int) ([]domain.DayAvailability, error) {
	if slotMinutes <= 0 {
		slotMinutes = c.cfg.SlotMinutes
	}
	if slotMinutes > 24*60 {
		return nil, domain.Validationf("slot duration must be at most 1440 minutes")
	}
	if err := c.checkRange(start, end); err != nil {
		return nil, err
	}

	weekly, overrides, err := c.policyInputs(ctx)
	if err != nil {
		return nil, err
	}

	appts, err := c.appts.ListAppointments(ctx, store.AppointmentFilter{
		From:     start,
		To:       end,
		Statuses: []domain.AppointmentStatus{domain.StatusRequested, domain.StatusConfirmed},
	})
	if err != nil {
		c.log.Error("list appointments failed",
			slog.Any("err", err),
			slog.String("start", start.String()),
			slog.String("end", end.String()),
		)
		return nil, domain.StorageUnavailable("list appointments", err)
	}

	return Compute(Input{
		Start:        start,
		End:          end,
		SlotMinutes:  slotMinutes,
		Weekly:       weekly,
		Overrides:    overrides,
		Appointments: appts,
		Earliest:     c.cfg.Clock().Add(c.cfg.MinAdvance),
		Location:     c.cfg.Location,
	}), nil
}

// EffectiveHours resolves the open window for a single date.
func (c *Calculator) EffectiveHours(ctx context.Context, date domain.LocalDate) (domain.EffectiveHours, error) {
	weekly, overrides, err := c.policyInputs(ctx)
	if err != nil {
		return domain.EffectiveHours{}, err
	}
	return domain.ResolveHours(date, weekly, overrides), nil
}

func (c *Calculator) checkRange(start, end domain.LocalDate) error {
	if end.Before(start) {
		return domain.InvalidRangef("end date %s is before start date %s", end, start)
	}
	if days := domain.DaysInRange(start, end); days > c.cfg.MaxRangeDays {
		return domain.InvalidRangef("range of %d days exceeds the maximum of %d", days, c.cfg.MaxRangeDays)
	}
	return nil
}

func (c *Calculator) policyInputs(ctx context.Context) ([]domain.WeeklyHoursEntry, []domain.DateOverride, error) {
	weekly, err := c.policy.WeeklyHours(ctx)
	if err != nil {
		c.log.Error("load weekly hours failed", slog.Any("err", err))
		return nil, nil, domain.StorageUnavailable("load weekly hours", err)
	}
	overrides, err := c.overrides.ListOverrides(ctx)
	if err != nil {
		c.log.Error("load overrides failed", slog.Any("err", err))
		return nil, nil, domain.StorageUnavailable("load overrides", err)
	}
	return weekly, overrides, nil
}
