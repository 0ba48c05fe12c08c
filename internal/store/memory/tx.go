package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/store"
)

// bookingTx stages writes until the transaction function returns nil.
// Rows it did not insert only carry status changes back on commit.
type bookingTx struct {
	store    *Store
	staged   map[uuid.UUID]domain.Appointment
	inserted map[uuid.UUID]bool
}

func (t *bookingTx) lookup(id uuid.UUID) (domain.Appointment, bool) {
	if a, ok := t.staged[id]; ok {
		return a, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	a, ok := t.store.appointments[id]
	return a, ok
}

func (t *bookingTx) snapshot(date domain.LocalDate) []domain.Appointment {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var out []domain.Appointment
	for id, a := range t.store.appointments {
		if _, shadowed := t.staged[id]; shadowed {
			continue
		}
		if a.Date == date {
			out = append(out, cloneAppointment(a))
		}
	}
	for _, a := range t.staged {
		if a.Date == date {
			out = append(out, cloneAppointment(a))
		}
	}
	return out
}

func (t *bookingTx) ListActiveAppointments(ctx context.Context, date domain.LocalDate) ([]domain.Appointment, error) {
	var out []domain.Appointment
	for _, a := range t.snapshot(date) {
		if a.Active() {
			out = append(out, a)
		}
	}
	domain.SortAppointments(out)
	return out, nil
}

func (t *bookingTx) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	a, ok := t.lookup(id)
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return cloneAppointment(a), nil
}

func (t *bookingTx) InsertAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	if a.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Appointment{}, err
		}
		a.ID = id
	}
	if _, exists := t.lookup(a.ID); exists {
		return domain.Appointment{}, store.ErrIdempotencyConflict
	}
	if a.Active() {
		for _, other := range t.snapshot(a.Date) {
			if other.Active() && other.StartTime == a.StartTime {
				return domain.Appointment{}, store.ErrConflict
			}
		}
	}

	now := t.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	t.staged[a.ID] = cloneAppointment(a)
	t.inserted[a.ID] = true
	return a, nil
}

func (t *bookingTx) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus, at time.Time) (domain.Appointment, error) {
	a, ok := t.lookup(id)
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	a = cloneAppointment(a)
	at = at.UTC()
	a.Status = status
	a.UpdatedAt = at
	if status == domain.StatusCancelled {
		a.CancelledAt = &at
	}
	t.staged[id] = a
	return cloneAppointment(a), nil
}

// commit applies staged rows. Callers hold store.mu.
func (t *bookingTx) commit() {
	for id, a := range t.staged {
		cur, ok := t.store.appointments[id]
		if t.inserted[id] || !ok {
			t.store.appointments[id] = a
			continue
		}
		cur.Status = a.Status
		cur.UpdatedAt = a.UpdatedAt
		cur.CancelledAt = a.CancelledAt
		t.store.appointments[id] = cur
	}
}

func (t *bookingTx) now() time.Time {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.now()
}

func cloneAppointment(a domain.Appointment) domain.Appointment {
	if a.ReminderSentAt != nil {
		v := *a.ReminderSentAt
		a.ReminderSentAt = &v
	}
	if a.CancelledAt != nil {
		v := *a.CancelledAt
		a.CancelledAt = &v
	}
	return a
}

func cloneOverride(o domain.DateOverride) domain.DateOverride {
	if o.EndDate != nil {
		v := *o.EndDate
		o.EndDate = &v
	}
	if o.OpenTime != nil {
		v := *o.OpenTime
		o.OpenTime = &v
	}
	if o.CloseTime != nil {
		v := *o.CloseTime
		o.CloseTime = &v
	}
	return o
}

func cloneWeekly(e domain.WeeklyHoursEntry) domain.WeeklyHoursEntry {
	if e.OpenTime != nil {
		v := *e.OpenTime
		e.OpenTime = &v
	}
	if e.CloseTime != nil {
		v := *e.CloseTime
		e.CloseTime = &v
	}
	return e
}
