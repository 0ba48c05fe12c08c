package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/store"
)

const (
	activeSlotIndex  = "appointments_active_slot_key"
	appointmentsPKey = "appointments_pkey"
)

type AppointmentRepo struct {
	db *bun.DB
}

var (
	_ store.AppointmentStore = (*AppointmentRepo)(nil)
	_ store.ReadyChecker     = (*AppointmentRepo)(nil)
)

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type bookingTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *AppointmentRepo) ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
	var rows []appointmentRow
	q := r.db.NewSelect().
		Model(&rows).
		Where("date >= ?", toSQLDate(f.From)).
		Where("date <= ?", toSQLDate(f.To)).
		OrderExpr("date ASC, start_time ASC, id ASC")
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where("status IN (?)", bun.In(statuses))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return appointmentsToDomain(rows)
}

func (r *AppointmentRepo) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, r.db, id)
}

func (r *AppointmentRepo) ListReminderCandidates(ctx context.Context, from, to domain.LocalDate) ([]domain.Appointment, error) {
	var rows []appointmentRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("status = ?", string(domain.StatusConfirmed)).
		Where("reminder_sent_at IS NULL").
		Where("date >= ?", toSQLDate(from)).
		Where("date <= ?", toSQLDate(to)).
		OrderExpr("date ASC, start_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return appointmentsToDomain(rows)
}

func (r *AppointmentRepo) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	at = at.UTC()
	res, err := r.db.NewUpdate().
		TableExpr("appointments").
		Set("reminder_sent_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("reminder_sent_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	exists, err := r.db.NewSelect().
		TableExpr("appointments").
		Where("id = ?", id).
		Exists(ctx)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, store.ErrNotFound
	}
	return false, nil
}

// InDateTransaction holds a transaction-scoped advisory lock per date,
// acquired in date order so overlapping reschedules cannot deadlock.
func (r *AppointmentRepo) InDateTransaction(ctx context.Context, dates []domain.LocalDate, fn func(ctx context.Context, tx store.BookingTx) error) error {
	keys := lockKeys(dates)
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, key := range keys {
			if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx); err != nil {
				return err
			}
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

func lockKeys(dates []domain.LocalDate) []string {
	seen := make(map[string]struct{}, len(dates))
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		k := "appointments:" + d.String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b bookingTx) ListActiveAppointments(ctx context.Context, date domain.LocalDate) ([]domain.Appointment, error) {
	var rows []appointmentRow
	err := b.tx.NewSelect().
		Model(&rows).
		Where("date = ?", toSQLDate(date)).
		Where("status <> ?", string(domain.StatusCancelled)).
		OrderExpr("start_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return appointmentsToDomain(rows)
}

func (b bookingTx) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, b.tx, id)
}

func (b bookingTx) InsertAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	row := appointmentRowFromDomain(a)
	if _, err := b.tx.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.Appointment{}, mapInsertError(err)
	}
	return row.toDomain()
}

func (b bookingTx) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus, at time.Time) (domain.Appointment, error) {
	at = at.UTC()
	q := b.tx.NewUpdate().
		TableExpr("appointments").
		Set("status = ?", string(status)).
		Set("updated_at = ?", at).
		Where("id = ?", id)
	if status == domain.StatusCancelled {
		q = q.Set("cancelled_at = ?", at)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapInsertError(err)
	}
	if err := expectAffected(res); err != nil {
		return domain.Appointment{}, err
	}
	return getAppointment(ctx, b.tx, id)
}

func getAppointment(ctx context.Context, db bun.IDB, id uuid.UUID) (domain.Appointment, error) {
	var row appointmentRow
	err := db.NewSelect().
		Model(&row).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return row.toDomain()
}

// mapInsertError turns unique violations into store sentinels: the partial
// index on active (date, start_time) means the slot is taken, the primary
// key means the id was already used.
func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case activeSlotIndex:
		return store.ErrConflict
	case appointmentsPKey:
		return store.ErrIdempotencyConflict
	default:
		return store.ErrConflict
	}
}
