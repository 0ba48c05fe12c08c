package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/store"
)

type PolicyRepo struct {
	db *bun.DB
}

var _ store.PolicyStore = (*PolicyRepo)(nil)

func NewPolicyRepo(db *bun.DB) *PolicyRepo {
	return &PolicyRepo{db: db}
}

func (r *PolicyRepo) WeeklyHours(ctx context.Context) ([]domain.WeeklyHoursEntry, error) {
	var rows []weeklyHoursRow
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("day_of_week ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.WeeklyHoursEntry, 0, len(rows))
	for _, row := range rows {
		e, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *PolicyRepo) ReplaceWeeklyHours(ctx context.Context, entries []domain.WeeklyHoursEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]weeklyHoursRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, weeklyRowFromDomain(e))
	}

	_, err := r.db.NewInsert().
		Model(&rows).
		On("CONFLICT (day_of_week) DO UPDATE").
		Set("is_open = EXCLUDED.is_open").
		Set("open_time = EXCLUDED.open_time").
		Set("close_time = EXCLUDED.close_time").
		Exec(ctx)
	return err
}
