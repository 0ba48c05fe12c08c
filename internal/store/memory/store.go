// Package memory keeps the whole schedule in process. It backs local
// development and tests and mirrors the postgres guarantees: per-date write
// serialization, one active appointment per (date, start time), and
// all-or-nothing booking transactions.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	weekly       map[time.Weekday]domain.WeeklyHoursEntry
	overrides    map[uuid.UUID]domain.DateOverride
	appointments map[uuid.UUID]domain.Appointment

	dateLocksMu sync.Mutex
	dateLocks   map[domain.LocalDate]*sync.Mutex

	jobsMu sync.Mutex
	jobs   map[string]bool

	now func() time.Time
}

var (
	_ store.PolicyStore      = (*Store)(nil)
	_ store.OverrideStore    = (*Store)(nil)
	_ store.AppointmentStore = (*Store)(nil)
	_ store.JobLocker        = (*Store)(nil)
	_ store.ReadyChecker     = (*Store)(nil)
)

// New returns a store seeded with the default weekly hours.
func New() *Store {
	s := &Store{
		weekly:       make(map[time.Weekday]domain.WeeklyHoursEntry, 7),
		overrides:    make(map[uuid.UUID]domain.DateOverride),
		appointments: make(map[uuid.UUID]domain.Appointment),
		dateLocks:    make(map[domain.LocalDate]*sync.Mutex),
		jobs:         make(map[string]bool),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, e := range domain.DefaultWeeklyHours() {
		s.weekly[e.DayOfWeek] = e
	}
	return s
}

// SetClock replaces the timestamp source used for created/updated fields.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) WeeklyHours(ctx context.Context) ([]domain.WeeklyHoursEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.WeeklyHoursEntry, 0, len(s.weekly))
	for _, e := range s.weekly {
		out = append(out, cloneWeekly(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out, nil
}

func (s *Store) ReplaceWeeklyHours(ctx context.Context, entries []domain.WeeklyHoursEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		s.weekly[e.DayOfWeek] = cloneWeekly(e)
	}
	return nil
}

func (s *Store) ListOverrides(ctx context.Context) ([]domain.DateOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DateOverride, 0, len(s.overrides))
	for _, o := range s.overrides {
		out = append(out, cloneOverride(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if c := domain.CompareDates(out[i].Date, out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetOverride(ctx context.Context, id uuid.UUID) (domain.DateOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.overrides[id]
	if !ok {
		return domain.DateOverride{}, store.ErrNotFound
	}
	return cloneOverride(o), nil
}

func (s *Store) CreateOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.DateOverride{}, err
		}
		o.ID = id
	}
	if _, exists := s.overrides[o.ID]; exists {
		return domain.DateOverride{}, store.ErrConflict
	}
	now := s.now()
	o.CreatedAt = now
	o.UpdatedAt = now
	s.overrides[o.ID] = cloneOverride(o)
	return o, nil
}

func (s *Store) UpdateOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.overrides[o.ID]
	if !ok {
		return domain.DateOverride{}, store.ErrNotFound
	}
	o.CreatedAt = existing.CreatedAt
	o.UpdatedAt = s.now()
	s.overrides[o.ID] = cloneOverride(o)
	return o, nil
}

func (s *Store) DeleteOverride(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.overrides[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.overrides, id)
	return nil
}

func (s *Store) ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Appointment
	for _, a := range s.appointments {
		if a.Date.Before(f.From) || a.Date.After(f.To) {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, a.Status) {
			continue
		}
		out = append(out, cloneAppointment(a))
	}
	domain.SortAppointments(out)
	return out, nil
}

func (s *Store) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return cloneAppointment(a), nil
}

func (s *Store) ListReminderCandidates(ctx context.Context, from, to domain.LocalDate) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Appointment
	for _, a := range s.appointments {
		if a.Status != domain.StatusConfirmed || a.ReminderSentAt != nil {
			continue
		}
		if a.Date.Before(from) || a.Date.After(to) {
			continue
		}
		out = append(out, cloneAppointment(a))
	}
	domain.SortAppointments(out)
	return out, nil
}

func (s *Store) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if a.ReminderSentAt != nil {
		return false, nil
	}
	at = at.UTC()
	a.ReminderSentAt = &at
	a.UpdatedAt = at
	s.appointments[id] = a
	return true, nil
}

func (s *Store) InDateTransaction(ctx context.Context, dates []domain.LocalDate, fn func(ctx context.Context, tx store.BookingTx) error) error {
	for _, d := range sortedUniqueDates(dates) {
		m := s.dateLock(d)
		m.Lock()
		defer m.Unlock()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &bookingTx{
		store:    s,
		staged:   make(map[uuid.UUID]domain.Appointment),
		inserted: make(map[uuid.UUID]bool),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx.commit()
	return nil
}

func (s *Store) TryLock(ctx context.Context, name string) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if s.jobs[name] {
		return nil, false, nil
	}
	s.jobs[name] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.jobsMu.Lock()
			delete(s.jobs, name)
			s.jobsMu.Unlock()
		})
	}, true, nil
}

func (s *Store) dateLock(d domain.LocalDate) *sync.Mutex {
	s.dateLocksMu.Lock()
	defer s.dateLocksMu.Unlock()

	m, ok := s.dateLocks[d]
	if !ok {
		m = &sync.Mutex{}
		s.dateLocks[d] = m
	}
	return m
}

func sortedUniqueDates(dates []domain.LocalDate) []domain.LocalDate {
	seen := make(map[domain.LocalDate]struct{}, len(dates))
	out := make([]domain.LocalDate, 0, len(dates))
	for _, d := range dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func hasStatus(statuses []domain.AppointmentStatus, st domain.AppointmentStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}
