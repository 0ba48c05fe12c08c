// Package booking creates, cancels and reschedules appointments. Every
// write re-checks opening hours and overlaps while holding the per-date
// write guard of the appointment store.
package booking

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/metrics"
	"showroom/backend/internal/notify"
	"showroom/backend/internal/store"
)

// HoursResolver yields the effective opening window for one date.
type HoursResolver interface {
	EffectiveHours(ctx context.Context, date domain.LocalDate) (domain.EffectiveHours, error)
}

type Config struct {
	Location           *time.Location
	MinAdvance         time.Duration
	MaxDurationMinutes int
	Clock              func() time.Time

	// IdempotencySecret keys ids derived from idempotency keys. A random
	// secret is drawn when empty, so replays only match within one process.
	IdempotencySecret []byte
}

type Service struct {
	hours   HoursResolver
	appts   store.AppointmentStore
	mailer  notify.Mailer
	metrics *metrics.Metrics
	cfg     Config
	log     *slog.Logger
}

func NewService(hours HoursResolver, appts store.AppointmentStore, mailer notify.Mailer, m *metrics.Metrics, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxDurationMinutes <= 0 {
		cfg.MaxDurationMinutes = 480
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if len(cfg.IdempotencySecret) == 0 {
		cfg.IdempotencySecret = make([]byte, 32)
		_, _ = rand.Read(cfg.IdempotencySecret)
	}
	return &Service{
		hours:   hours,
		appts:   appts,
		mailer:  mailer,
		metrics: m,
		cfg:     cfg,
		log:     log.With(slog.String("component", "booking")),
	}
}

type CreateInput struct {
	Date            domain.LocalDate
	Time            domain.LocalTime
	DurationMinutes int
	Customer        domain.Customer
	Notes           string
	// IdempotencyKey makes retries of the same request return the original
	// appointment instead of failing with a conflict.
	IdempotencyKey string
}

func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	appt, err := s.newAppointment(in)
	if err != nil {
		s.metrics.IncBooking("invalid")
		return domain.Appointment{}, err
	}

	if err := s.checkLeadTime(appt.Date, appt.StartTime); err != nil {
		s.recordFailure(err)
		return domain.Appointment{}, err
	}

	var created domain.Appointment
	err = s.appts.InDateTransaction(ctx, []domain.LocalDate{appt.Date}, func(ctx context.Context, tx store.BookingTx) error {
		if appt.ID != uuid.Nil {
			existing, err := tx.GetAppointment(ctx, appt.ID)
			switch {
			case err == nil:
				if !existing.SameBooking(appt) {
					return store.ErrIdempotencyConflict
				}
				created = existing
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		if err := s.checkHours(ctx, appt.Date, appt.StartTime, appt.DurationMinutes); err != nil {
			return err
		}
		if err := s.checkFree(ctx, tx, appt.Date, appt.StartMinute(), appt.EndMinute(), uuid.Nil); err != nil {
			return err
		}
		out, err := tx.InsertAppointment(ctx, appt)
		if err != nil {
			return err
		}
		created = out
		return nil
	})
	if err != nil {
		err = s.mapWriteError("create appointment", err)
		s.recordFailure(err)
		s.logWriteError("create appointment failed", err, slog.String("date", appt.Date.String()), slog.String("time", domain.FormatClock(appt.StartTime)))
		return domain.Appointment{}, err
	}

	s.metrics.IncBooking("created")
	s.log.Info("appointment booked",
		slog.String("appointment_id", created.ID.String()),
		slog.String("date", created.Date.String()),
		slog.String("time", domain.FormatClock(created.StartTime)),
	)
	s.sendEmail(ctx, notify.TemplateBookingConfirmation, created)
	return created, nil
}

// CancelAppointment is idempotent: cancelling a cancelled appointment
// succeeds without side effects.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return domain.Validationf("appointment_id is required")
	}

	current, err := s.getAppointment(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == domain.StatusCancelled {
		return nil
	}

	var (
		cancelled domain.Appointment
		changed   bool
	)
	err = s.appts.InDateTransaction(ctx, []domain.LocalDate{current.Date}, func(ctx context.Context, tx store.BookingTx) error {
		a, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == domain.StatusCancelled {
			return nil
		}
		cancelled, err = tx.UpdateAppointmentStatus(ctx, id, domain.StatusCancelled, s.cfg.Clock())
		changed = err == nil
		return err
	})
	if err != nil {
		err = s.mapWriteError("cancel appointment", err)
		s.logWriteError("cancel appointment failed", err, slog.String("appointment_id", id.String()))
		return err
	}
	if !changed {
		return nil
	}

	s.metrics.IncCancellation()
	s.log.Info("appointment cancelled", slog.String("appointment_id", id.String()))
	s.sendEmail(ctx, notify.TemplateBookingCancelled, cancelled)
	return nil
}

// RescheduleAppointment cancels the original and books the new slot in one
// transaction. If the new slot cannot be booked nothing changes.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, newDate domain.LocalDate, newTime domain.LocalTime) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, domain.Validationf("appointment_id is required")
	}

	original, err := s.getAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if original.Status == domain.StatusCancelled {
		return domain.Appointment{}, domain.Validationf("cancelled appointments cannot be rescheduled")
	}

	if err := s.checkLeadTime(newDate, newTime); err != nil {
		s.recordFailure(err)
		return domain.Appointment{}, err
	}

	var created domain.Appointment
	dates := []domain.LocalDate{original.Date, newDate}
	err = s.appts.InDateTransaction(ctx, dates, func(ctx context.Context, tx store.BookingTx) error {
		current, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == domain.StatusCancelled {
			return domain.Validationf("cancelled appointments cannot be rescheduled")
		}
		if _, err := tx.UpdateAppointmentStatus(ctx, id, domain.StatusCancelled, s.cfg.Clock()); err != nil {
			return err
		}

		if err := s.checkHours(ctx, newDate, newTime, current.DurationMinutes); err != nil {
			return err
		}
		start := domain.MinuteOfDay(newTime)
		if err := s.checkFree(ctx, tx, newDate, start, start+current.DurationMinutes, id); err != nil {
			return err
		}
		out, err := tx.InsertAppointment(ctx, domain.Appointment{
			Date:            newDate,
			StartTime:       newTime,
			DurationMinutes: current.DurationMinutes,
			Customer:        current.Customer,
			Notes:           current.Notes,
			Status:          domain.StatusConfirmed,
		})
		if err != nil {
			return err
		}
		created = out
		return nil
	})
	if err != nil {
		err = s.mapWriteError("reschedule appointment", err)
		s.recordFailure(err)
		s.logWriteError("reschedule appointment failed", err,
			slog.String("appointment_id", id.String()),
			slog.String("date", newDate.String()),
			slog.String("time", domain.FormatClock(newTime)),
		)
		return domain.Appointment{}, err
	}

	s.metrics.IncBooking("rescheduled")
	s.log.Info("appointment rescheduled",
		slog.String("appointment_id", id.String()),
		slog.String("new_appointment_id", created.ID.String()),
		slog.String("date", created.Date.String()),
		slog.String("time", domain.FormatClock(created.StartTime)),
	)
	s.sendEmail(ctx, notify.TemplateBookingConfirmation, created)
	return created, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, domain.Validationf("appointment_id is required")
	}
	a, err := s.getAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	a.Status = a.EffectiveStatus(s.cfg.Clock(), s.cfg.Location)
	return a, nil
}

// ListAppointments returns appointments dated in [from, to]. An empty status
// matches every status; Completed is derived from confirmed appointments
// that have ended.
func (s *Service) ListAppointments(ctx context.Context, from, to domain.LocalDate, status domain.AppointmentStatus) ([]domain.Appointment, error) {
	if to.Before(from) {
		return nil, domain.InvalidRangef("end date %s is before start date %s", to, from)
	}

	f := store.AppointmentFilter{From: from, To: to}
	switch status {
	case "":
	case domain.StatusCompleted:
		f.Statuses = []domain.AppointmentStatus{domain.StatusConfirmed}
	default:
		f.Statuses = []domain.AppointmentStatus{status}
	}

	list, err := s.appts.ListAppointments(ctx, f)
	if err != nil {
		s.log.Error("list appointments failed", slog.Any("err", err))
		return nil, domain.StorageUnavailable("list appointments", err)
	}

	now := s.cfg.Clock()
	out := make([]domain.Appointment, 0, len(list))
	for _, a := range list {
		a.Status = a.EffectiveStatus(now, s.cfg.Location)
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Service) newAppointment(in CreateInput) (domain.Appointment, error) {
	customer, err := normalizeCustomer(in.Customer)
	if err != nil {
		return domain.Appointment{}, err
	}
	notes := strings.TrimSpace(in.Notes)
	if utf8.RuneCountInString(notes) > 1000 {
		return domain.Appointment{}, domain.Validationf("notes must be at most 1000 characters")
	}
	if !in.Date.IsValid() {
		return domain.Appointment{}, domain.Validationf("date is required")
	}
	if !in.Time.IsValid() || in.Time.Second != 0 || in.Time.Nanosecond != 0 {
		return domain.Appointment{}, domain.Validationf("time must be HH:MM")
	}
	if in.DurationMinutes < 1 || in.DurationMinutes > s.cfg.MaxDurationMinutes {
		return domain.Appointment{}, domain.Validationf("duration_minutes must be between 1 and %d", s.cfg.MaxDurationMinutes)
	}
	if domain.MinuteOfDay(in.Time)+in.DurationMinutes > 24*60 {
		return domain.Appointment{}, domain.Validationf("appointment must end on the same day")
	}

	appt := domain.Appointment{
		Date:            in.Date,
		StartTime:       in.Time,
		DurationMinutes: in.DurationMinutes,
		Customer:        customer,
		Notes:           notes,
		Status:          domain.StatusConfirmed,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, domain.Validationf("idempotency_key too long")
		}
		appt.ID = s.idempotentID(customer.Email, key)
	}
	return appt, nil
}

// idempotentID is stable per email and key and cannot be derived without
// the secret.
func (s *Service) idempotentID(email, key string) uuid.UUID {
	mac := hmac.New(sha256.New, s.cfg.IdempotencySecret)
	return uuid.NewHash(mac, uuid.NameSpaceOID, []byte("showroom:create_appointment:"+email+":"+key), 5)
}

func normalizeCustomer(c domain.Customer) (domain.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)

	if n := utf8.RuneCountInString(c.Name); n == 0 || n > 200 {
		return domain.Customer{}, domain.Validationf("name must be between 1 and 200 characters")
	}
	if c.Email == "" {
		return domain.Customer{}, domain.Validationf("email is required")
	}
	addr, err := mail.ParseAddress(c.Email)
	if err != nil || addr.Address != c.Email || len(c.Email) > 254 {
		return domain.Customer{}, domain.Validationf("email %q is not a valid address", c.Email)
	}
	c.Email = strings.ToLower(c.Email)
	if c.Phone != "" && !validPhone(c.Phone) {
		return domain.Customer{}, domain.Validationf("phone must be 6 to 20 digits, spaces or +-()")
	}
	return c, nil
}

func validPhone(p string) bool {
	if len(p) < 6 || len(p) > 20 {
		return false
	}
	digits := 0
	for _, r := range p {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '+' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 6
}

func (s *Service) checkLeadTime(date domain.LocalDate, t domain.LocalTime) error {
	start := domain.Instant(date, t, s.cfg.Location)
	if start.Before(s.cfg.Clock().Add(s.cfg.MinAdvance)) {
		return &domain.PastDateError{Date: date, Time: t}
	}
	return nil
}

// checkHours resolves the day's effective hours. Callers run it while
// holding the date guard so a concurrent override change is observed.
func (s *Service) checkHours(ctx context.Context, date domain.LocalDate, t domain.LocalTime, minutes int) error {
	hours, err := s.hours.EffectiveHours(ctx, date)
	if err != nil {
		return domain.StorageUnavailable("resolve opening hours", err)
	}
	from := domain.MinuteOfDay(t)
	if !hours.Contains(from, from+minutes) {
		return &domain.OutsideOpeningHoursError{Date: date, Time: t}
	}
	return nil
}

// checkFree fails with SlotUnavailableError when [start, end) overlaps an
// active appointment on date other than ignore.
func (s *Service) checkFree(ctx context.Context, tx store.BookingTx, date domain.LocalDate, start, end int, ignore uuid.UUID) error {
	active, err := tx.ListActiveAppointments(ctx, date)
	if err != nil {
		return err
	}
	for _, a := range active {
		if a.ID == ignore {
			continue
		}
		if a.Overlaps(start, end) {
			return &domain.SlotUnavailableError{}
		}
	}
	return nil
}

func (s *Service) getAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	a, err := s.appts.GetAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, s.mapWriteError("get appointment", err, id)
	}
	return a, nil
}

func (s *Service) mapWriteError(op string, err error, id ...uuid.UUID) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return &domain.SlotUnavailableError{}
	case errors.Is(err, store.ErrIdempotencyConflict):
		return domain.Validationf("idempotency_key was already used for a different booking")
	case errors.Is(err, store.ErrNotFound):
		nf := &domain.NotFoundError{Kind: "appointment"}
		if len(id) > 0 {
			nf.ID = id[0].String()
		}
		return nf
	}
	return domain.StorageUnavailable(op, err)
}

func (s *Service) recordFailure(err error) {
	var (
		slotErr  *domain.SlotUnavailableError
		pastErr  *domain.PastDateError
		hoursErr *domain.OutsideOpeningHoursError
		vErr     *domain.ValidationError
	)
	switch {
	case errors.As(err, &slotErr):
		s.metrics.IncBooking("conflict")
	case errors.As(err, &pastErr), errors.As(err, &hoursErr), errors.As(err, &vErr):
		s.metrics.IncBooking("rejected")
	default:
		s.metrics.IncBooking("error")
	}
}

func (s *Service) logWriteError(msg string, err error, attrs ...any) {
	var suErr *domain.StorageUnavailableError
	if errors.As(err, &suErr) {
		s.log.Error(msg, append([]any{slog.Any("err", err)}, attrs...)...)
		return
	}
	s.log.Info(msg, append([]any{slog.String("reason", err.Error())}, attrs...)...)
}

func (s *Service) sendEmail(ctx context.Context, template string, a domain.Appointment) {
	if s.mailer == nil {
		return
	}
	tpl := notify.Template{
		Name: template,
		Props: map[string]any{
			"appointment_id": a.ID.String(),
			"customer_name":  a.Customer.Name,
			"date":           a.Date.String(),
			"time":           domain.FormatClock(a.StartTime),
			"duration":       a.DurationMinutes,
		},
	}
	to := notify.Recipient{Name: a.Customer.Name, Email: a.Customer.Email}
	if err := s.mailer.SendEmail(ctx, tpl, to); err != nil {
		s.log.Warn("notification email failed",
			slog.Any("err", err),
			slog.String("template", template),
			slog.String("appointment_id", a.ID.String()),
		)
	}
}
