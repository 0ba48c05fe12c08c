// Package reminders sends appointment reminders ahead of confirmed
// appointments. A pass never fails as a whole: per-appointment failures are
// collected in the Report.
package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/metrics"
	"showroom/backend/internal/notify"
	"showroom/backend/internal/store"
)

const (
	channelEmail = "email"
	channelSMS   = "sms"
)

type Report struct {
	Sent    int              `json:"sent"`
	Failed  []FailedReminder `json:"failed"`
	Skipped bool             `json:"skipped,omitempty"`
}

type FailedReminder struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Email         string    `json:"email"`
	Reason        string    `json:"reason"`
}

type Config struct {
	Location *time.Location
	// PassInterval is the cadence of passes. An appointment is due in the
	// pass whose window [now+hoursBefore, now+hoursBefore+PassInterval)
	// contains its start.
	PassInterval  time.Duration
	RatePerSecond float64
	BusinessName  string
	Address       string
	Clock         func() time.Time
}

type Scheduler struct {
	appts   store.AppointmentStore
	mailer  notify.Mailer
	sms     notify.SMSSender
	limiter *rate.Limiter
	metrics *metrics.Metrics
	cfg     Config
	log     *slog.Logger
}

// NewScheduler builds a Scheduler. sms may be nil.
func NewScheduler(appts store.AppointmentStore, mailer notify.Mailer, sms notify.SMSSender, m *metrics.Metrics, cfg Config, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PassInterval <= 0 {
		cfg.PassInterval = 24 * time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Scheduler{
		appts:   appts,
		mailer:  mailer,
		sms:     sms,
		limiter: rate.NewLimiter(limit, 1),
		metrics: m,
		cfg:     cfg,
		log:     log.With(slog.String("component", "reminders")),
	}
}

// RunReminderPass sends one reminder to every eligible appointment and
// records reminder_sent_at after each successful send.
func (s *Scheduler) RunReminderPass(ctx context.Context, hoursBefore, minHoursAfterBooking int) Report {
	started := time.Now()
	defer func() { s.metrics.ObserveReminderPass(time.Since(started)) }()

	report := Report{Failed: []FailedReminder{}}
	now := s.cfg.Clock()
	windowStart := now.Add(time.Duration(hoursBefore) * time.Hour)
	windowEnd := windowStart.Add(s.cfg.PassInterval)

	candidates, err := s.appts.ListReminderCandidates(ctx,
		domain.DateOf(windowStart, s.cfg.Location),
		domain.DateOf(windowEnd, s.cfg.Location),
	)
	if err != nil {
		s.log.Error("list reminder candidates failed", slog.Any("err", err))
		report.Failed = append(report.Failed, FailedReminder{Reason: "list candidates: " + err.Error()})
		return report
	}

	for _, a := range candidates {
		if !s.eligible(a, windowStart, windowEnd, minHoursAfterBooking) {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			report.Failed = append(report.Failed, failure(a, "rate limit: "+err.Error()))
			continue
		}
		if reason := s.dispatch(ctx, a); reason != "" {
			s.metrics.IncReminder("failed", channelEmail)
			report.Failed = append(report.Failed, failure(a, reason))
			continue
		}
		s.metrics.IncReminder("sent", channelEmail)
		report.Sent++
		s.sendSMS(ctx, a)
	}

	s.log.Info("reminder pass finished",
		slog.Int("candidates", len(candidates)),
		slog.Int("sent", report.Sent),
		slog.Int("failed", len(report.Failed)),
	)
	return report
}

func (s *Scheduler) eligible(a domain.Appointment, windowStart, windowEnd time.Time, minHoursAfterBooking int) bool {
	if a.Status != domain.StatusConfirmed || a.ReminderSentAt != nil {
		return false
	}
	start := a.Start(s.cfg.Location)
	if start.Before(windowStart) || !start.Before(windowEnd) {
		return false
	}
	return !a.CreatedAt.After(start.Add(-time.Duration(minHoursAfterBooking) * time.Hour))
}

// dispatch returns a failure reason, or "" when the email went out and the
// flag was recorded.
func (s *Scheduler) dispatch(ctx context.Context, a domain.Appointment) string {
	tpl := notify.Template{
		Name: notify.TemplateAppointmentReminder,
		Props: map[string]any{
			"appointment_id": a.ID.String(),
			"customer_name":  a.Customer.Name,
			"date":           a.Date.String(),
			"time":           domain.FormatClock(a.StartTime),
			"duration":       a.DurationMinutes,
			"business_name":  s.cfg.BusinessName,
			"address":        s.cfg.Address,
		},
	}
	if err := s.mailer.SendEmail(ctx, tpl, notify.Recipient{Name: a.Customer.Name, Email: a.Customer.Email}); err != nil {
		s.log.Warn("reminder email failed",
			slog.Any("err", err),
			slog.String("appointment_id", a.ID.String()),
		)
		return "send: " + err.Error()
	}

	if _, err := s.appts.MarkReminderSent(ctx, a.ID, s.cfg.Clock()); err != nil {
		s.log.Error("mark reminder sent failed",
			slog.Any("err", err),
			slog.String("appointment_id", a.ID.String()),
		)
		return "mark_sent: " + err.Error()
	}
	return ""
}

func (s *Scheduler) sendSMS(ctx context.Context, a domain.Appointment) {
	if s.sms == nil || a.Customer.Phone == "" {
		return
	}
	body := fmt.Sprintf("Reminder: your appointment at %s is on %s at %s.",
		s.cfg.BusinessName, a.Date.String(), domain.FormatClock(a.StartTime))
	if err := s.sms.SendSMS(ctx, a.Customer.Phone, body); err != nil {
		s.metrics.IncReminder("failed", channelSMS)
		s.log.Warn("reminder sms failed",
			slog.Any("err", err),
			slog.String("appointment_id", a.ID.String()),
		)
		return
	}
	s.metrics.IncReminder("sent", channelSMS)
}

func failure(a domain.Appointment, reason string) FailedReminder {
	return FailedReminder{AppointmentID: a.ID, Email: a.Customer.Email, Reason: reason}
}
