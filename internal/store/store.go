package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"showroom/backend/internal/domain"
)

type PolicyStore interface {
	WeeklyHours(ctx context.Context) ([]domain.WeeklyHoursEntry, error)
	ReplaceWeeklyHours(ctx context.Context, entries []domain.WeeklyHoursEntry) error
}

type OverrideStore interface {
	ListOverrides(ctx context.Context) ([]domain.DateOverride, error)
	GetOverride(ctx context.Context, id uuid.UUID) (domain.DateOverride, error)
	CreateOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error)
	UpdateOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error)
	DeleteOverride(ctx context.Context, id uuid.UUID) error
}

// AppointmentFilter selects appointments whose date lies in [From, To].
// An empty Statuses slice matches every status.
type AppointmentFilter struct {
	From     domain.LocalDate
	To       domain.LocalDate
	Statuses []domain.AppointmentStatus
}

type AppointmentStore interface {
	// ListAppointments orders by date, start time and id.
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]domain.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	// ListReminderCandidates returns confirmed appointments in [from, to]
	// that have no reminder recorded yet.
	ListReminderCandidates(ctx context.Context, from, to domain.LocalDate) ([]domain.Appointment, error)
	// MarkReminderSent sets reminder_sent_at only if it is still null and
	// reports whether this call set it.
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// InDateTransaction runs fn with writes serialized on every given date.
	// Returning an error from fn rolls back everything fn wrote.
	InDateTransaction(ctx context.Context, dates []domain.LocalDate, fn func(ctx context.Context, tx BookingTx) error) error
}

type BookingTx interface {
	ListActiveAppointments(ctx context.Context, date domain.LocalDate) ([]domain.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	InsertAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus, at time.Time) (domain.Appointment, error)
}

// JobLocker guards singleton background jobs across instances. ok is false
// when another holder has the lock.
type JobLocker interface {
	TryLock(ctx context.Context, name string) (unlock func(), ok bool, err error)
}

// ReadyChecker reports whether the backing store can serve requests.
type ReadyChecker interface {
	Ping(ctx context.Context) error
}
