package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusRequested AppointmentStatus = "requested"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

func ParseStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(s); st {
	case StatusRequested, StatusConfirmed, StatusCancelled, StatusCompleted:
		return st, nil
	default:
		return "", Validationf("unknown appointment status %q", s)
	}
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

type Appointment struct {
	ID              uuid.UUID
	Date            LocalDate
	StartTime       LocalTime
	DurationMinutes int
	Customer        Customer
	Notes           string
	Status          AppointmentStatus
	ReminderSentAt  *time.Time
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Appointment) StartMinute() int {
	return MinuteOfDay(a.StartTime)
}

func (a Appointment) EndMinute() int {
	return a.StartMinute() + a.DurationMinutes
}

func (a Appointment) Start(loc *time.Location) time.Time {
	return Instant(a.Date, a.StartTime, loc)
}

func (a Appointment) End(loc *time.Location) time.Time {
	return a.Start(loc).Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Active appointments occupy their interval.
func (a Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// Overlaps reports whether the half-open minute interval [start, end)
// intersects this appointment.
func (a Appointment) Overlaps(start, end int) bool {
	return overlaps(a.StartMinute(), a.EndMinute(), start, end)
}

// EffectiveStatus derives Completed for confirmed appointments that have
// already ended. Completed is never stored.
func (a Appointment) EffectiveStatus(now time.Time, loc *time.Location) AppointmentStatus {
	if a.Status == StatusConfirmed && !now.Before(a.End(loc)) {
		return StatusCompleted
	}
	return a.Status
}

// SameBooking compares the customer-supplied fields, used to detect
// idempotent replays of the same request.
func (a Appointment) SameBooking(b Appointment) bool {
	return a.Date == b.Date &&
		a.StartTime == b.StartTime &&
		a.DurationMinutes == b.DurationMinutes &&
		a.Customer == b.Customer &&
		a.Notes == b.Notes
}

// SortAppointments orders by date, start time and id.
func SortAppointments(as []Appointment) {
	sort.Slice(as, func(i, j int) bool {
		a, b := as[i], as[j]
		if c := CompareDates(a.Date, b.Date); c != 0 {
			return c < 0
		}
		if a.StartMinute() != b.StartMinute() {
			return a.StartMinute() < b.StartMinute()
		}
		return a.ID.String() < b.ID.String()
	})
}

type Slot struct {
	Time      LocalTime
	Available bool
}

type DayAvailability struct {
	Date   LocalDate
	IsOpen bool
	Slots  []Slot
}
