// Package dto holds the JSON shapes shared by the HTTP and gRPC surfaces
// and their conversions to and from domain types.
package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/service/booking"
)

type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type DayAvailability struct {
	Date   string `json:"date"`
	IsOpen bool   `json:"isOpen"`
	Slots  []Slot `json:"slots"`
}

func FromDays(days []domain.DayAvailability) []DayAvailability {
	out := make([]DayAvailability, 0, len(days))
	for _, d := range days {
		slots := make([]Slot, 0, len(d.Slots))
		for _, s := range d.Slots {
			slots = append(slots, Slot{Time: domain.FormatClock(s.Time), Available: s.Available})
		}
		out = append(out, DayAvailability{Date: d.Date.String(), IsOpen: d.IsOpen, Slots: slots})
	}
	return out
}

// Closure is the public view of an override.
type Closure struct {
	Date        string  `json:"date"`
	EndDate     *string `json:"endDate,omitempty"`
	IsClosed    bool    `json:"isClosed"`
	Reason      *string `json:"reason,omitempty"`
	IsRecurring bool    `json:"isRecurring"`
}

func FromClosures(overrides []domain.DateOverride) []Closure {
	out := make([]Closure, 0, len(overrides))
	for _, o := range overrides {
		c := Closure{
			Date:        o.Date.String(),
			EndDate:     dateString(o.EndDate),
			IsClosed:    o.IsClosed,
			IsRecurring: o.IsRecurring,
		}
		if o.Reason != "" {
			r := o.Reason
			c.Reason = &r
		}
		out = append(out, c)
	}
	return out
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type CreateAppointmentRequest struct {
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	DurationMinutes int      `json:"durationMinutes"`
	Customer        Customer `json:"customer"`
	Notes           string   `json:"notes,omitempty"`
	IdempotencyKey  string   `json:"idempotencyKey,omitempty"`
}

// ToCreateInput parses the request. durationDefault applies when the
// request omits durationMinutes.
func (r CreateAppointmentRequest) ToCreateInput(durationDefault int) (booking.CreateInput, error) {
	d, err := domain.ParseDate(r.Date)
	if err != nil {
		return booking.CreateInput{}, err
	}
	t, err := domain.ParseClock(r.Time)
	if err != nil {
		return booking.CreateInput{}, err
	}
	dur := r.DurationMinutes
	if dur == 0 {
		dur = durationDefault
	}
	return booking.CreateInput{
		Date:            d,
		Time:            t,
		DurationMinutes: dur,
		Customer:        domain.Customer{Name: r.Customer.Name, Email: r.Customer.Email, Phone: r.Customer.Phone},
		Notes:           r.Notes,
		IdempotencyKey:  r.IdempotencyKey,
	}, nil
}

type Appointment struct {
	ID              string     `json:"id"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	DurationMinutes int        `json:"durationMinutes"`
	Customer        Customer   `json:"customer"`
	Notes           string     `json:"notes,omitempty"`
	Status          string     `json:"status"`
	ReminderSentAt  *time.Time `json:"reminderSentAt,omitempty"`
	CancelledAt     *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func FromAppointment(a domain.Appointment) Appointment {
	return Appointment{
		ID:              a.ID.String(),
		Date:            a.Date.String(),
		Time:            domain.FormatClock(a.StartTime),
		DurationMinutes: a.DurationMinutes,
		Customer:        Customer{Name: a.Customer.Name, Email: a.Customer.Email, Phone: a.Customer.Phone},
		Notes:           a.Notes,
		Status:          string(a.Status),
		ReminderSentAt:  a.ReminderSentAt,
		CancelledAt:     a.CancelledAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func FromAppointments(as []domain.Appointment) []Appointment {
	out := make([]Appointment, 0, len(as))
	for _, a := range as {
		out = append(out, FromAppointment(a))
	}
	return out
}

type WeeklyHoursEntry struct {
	DayOfWeek int     `json:"dayOfWeek"`
	IsOpen    bool    `json:"isOpen"`
	OpenTime  *string `json:"openTime,omitempty"`
	CloseTime *string `json:"closeTime,omitempty"`
}

func FromWeekly(entries []domain.WeeklyHoursEntry) []WeeklyHoursEntry {
	out := make([]WeeklyHoursEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, WeeklyHoursEntry{
			DayOfWeek: int(e.DayOfWeek),
			IsOpen:    e.IsOpen,
			OpenTime:  clockString(e.OpenTime),
			CloseTime: clockString(e.CloseTime),
		})
	}
	return out
}

func ToWeekly(entries []WeeklyHoursEntry) ([]domain.WeeklyHoursEntry, error) {
	out := make([]domain.WeeklyHoursEntry, 0, len(entries))
	for _, e := range entries {
		if e.DayOfWeek < 0 || e.DayOfWeek > 6 {
			return nil, domain.Validationf("dayOfWeek must be 0..6, got %d", e.DayOfWeek)
		}
		open, err := parseClockPtr(e.OpenTime)
		if err != nil {
			return nil, err
		}
		closing, err := parseClockPtr(e.CloseTime)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.WeeklyHoursEntry{
			DayOfWeek: time.Weekday(e.DayOfWeek),
			IsOpen:    e.IsOpen,
			OpenTime:  open,
			CloseTime: closing,
		})
	}
	return out, nil
}

type DateOverride struct {
	ID            string     `json:"id,omitempty"`
	Date          string     `json:"date"`
	EndDate       *string    `json:"endDate,omitempty"`
	IsClosed      bool       `json:"isClosed"`
	OpenTime      *string    `json:"openTime,omitempty"`
	CloseTime     *string    `json:"closeTime,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	ShowOnWebsite bool       `json:"showOnWebsite"`
	IsRecurring   bool       `json:"isRecurring"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

func FromOverride(o domain.DateOverride) DateOverride {
	out := DateOverride{
		ID:            o.ID.String(),
		Date:          o.Date.String(),
		EndDate:       dateString(o.EndDate),
		IsClosed:      o.IsClosed,
		OpenTime:      clockString(o.OpenTime),
		CloseTime:     clockString(o.CloseTime),
		Reason:        o.Reason,
		ShowOnWebsite: o.ShowOnWebsite,
		IsRecurring:   o.IsRecurring,
	}
	if !o.CreatedAt.IsZero() {
		c, u := o.CreatedAt, o.UpdatedAt
		out.CreatedAt, out.UpdatedAt = &c, &u
	}
	return out
}

func FromOverrides(list []domain.DateOverride) []DateOverride {
	out := make([]DateOverride, 0, len(list))
	for _, o := range list {
		out = append(out, FromOverride(o))
	}
	return out
}

// ToDomain parses the override. An empty ID yields uuid.Nil.
func (o DateOverride) ToDomain() (domain.DateOverride, error) {
	var id uuid.UUID
	if s := strings.TrimSpace(o.ID); s != "" {
		parsed, err := ParseID(s)
		if err != nil {
			return domain.DateOverride{}, err
		}
		id = parsed
	}
	d, err := domain.ParseDate(o.Date)
	if err != nil {
		return domain.DateOverride{}, err
	}
	var end *domain.LocalDate
	if o.EndDate != nil && strings.TrimSpace(*o.EndDate) != "" {
		e, err := domain.ParseDate(*o.EndDate)
		if err != nil {
			return domain.DateOverride{}, err
		}
		end = &e
	}
	open, err := parseClockPtr(o.OpenTime)
	if err != nil {
		return domain.DateOverride{}, err
	}
	closing, err := parseClockPtr(o.CloseTime)
	if err != nil {
		return domain.DateOverride{}, err
	}
	return domain.DateOverride{
		ID:            id,
		Date:          d,
		EndDate:       end,
		IsClosed:      o.IsClosed,
		OpenTime:      open,
		CloseTime:     closing,
		Reason:        o.Reason,
		ShowOnWebsite: o.ShowOnWebsite,
		IsRecurring:   o.IsRecurring,
	}, nil
}

func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, domain.Validationf("invalid id %q", s)
	}
	return id, nil
}

func dateString(d *domain.LocalDate) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func clockString(t *domain.LocalTime) *string {
	if t == nil {
		return nil
	}
	s := domain.FormatClock(*t)
	return &s
}

func parseClockPtr(s *string) (*domain.LocalTime, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := domain.ParseClock(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
