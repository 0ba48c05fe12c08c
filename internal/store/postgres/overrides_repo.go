package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/store"
)

type OverrideRepo struct {
	db *bun.DB
}

var _ store.OverrideStore = (*OverrideRepo)(nil)

func NewOverrideRepo(db *bun.DB) *OverrideRepo {
	return &OverrideRepo{db: db}
}

func (r *OverrideRepo) ListOverrides(ctx context.Context) ([]domain.DateOverride, error) {
	var rows []dateOverrideRow
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("date ASC, created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DateOverride, 0, len(rows))
	for _, row := range rows {
		o, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *OverrideRepo) GetOverride(ctx context.Context, id uuid.UUID) (domain.DateOverride, error) {
	var row dateOverrideRow
	err := r.db.NewSelect().
		Model(&row).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DateOverride{}, store.ErrNotFound
	}
	if err != nil {
		return domain.DateOverride{}, err
	}
	return row.toDomain()
}

func (r *OverrideRepo) CreateOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error) {
	row := overrideRowFromDomain(o)
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.DateOverride{}, store.ErrConflict
		}
		return domain.DateOverride{}, err
	}
	return row.toDomain()
}

func (r *OverrideRepo) UpdateOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error) {
	row := overrideRowFromDomain(o)
	res, err := r.db.NewUpdate().
		Model(&row).
		Column("date", "end_date", "is_closed", "open_time", "close_time", "reason", "show_on_website", "is_recurring", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.DateOverride{}, err
	}
	if err := expectAffected(res); err != nil {
		return domain.DateOverride{}, err
	}
	return r.GetOverride(ctx, o.ID)
}

func (r *OverrideRepo) DeleteOverride(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		TableExpr("date_overrides").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
