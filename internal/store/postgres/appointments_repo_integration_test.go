package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/store"
	"showroom/backend/migrations"
)

func TestPostgresIntegration_BookingGuardsAndReminderFlag(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("SHOWROOM_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("SHOWROOM_TEST_DATABASE_URL not set")
	}

	db, err := Open(context.Background(), databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	schema := "showroom_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	day, _ := domain.ParseDate("2026-01-05")

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("SET LOCAL search_path TO " + schema).Exec(ctx); err != nil {
			return err
		}
		if err := ApplyMigrations(ctx, tx, migrations.FS); err != nil {
			return err
		}

		var weekly []weeklyHoursRow
		if err := tx.NewSelect().Model(&weekly).OrderExpr("day_of_week").Scan(ctx); err != nil {
			return err
		}
		if len(weekly) != 7 {
			return fmt.Errorf("len(weekly) = %d, want 7", len(weekly))
		}
		monday, err := weekly[1].toDomain()
		if err != nil {
			return err
		}
		if !monday.IsOpen || domain.FormatClock(*monday.OpenTime) != "09:00" {
			return fmt.Errorf("monday seed = %+v", monday)
		}

		b := bookingTx{tx: tx}

		first, err := b.InsertAppointment(ctx, domain.Appointment{
			ID:              uuid.MustParse("00000000-0000-0000-0000-000000000901"),
			Date:            day,
			StartTime:       domain.Clock(10, 0),
			DurationMinutes: 60,
			Customer:        domain.Customer{Name: "Ada", Email: "ada@example.com"},
			Status:          domain.StatusConfirmed,
		})
		if err != nil {
			return err
		}

		if _, err := tx.NewRaw("SAVEPOINT dup").Exec(ctx); err != nil {
			return err
		}
		_, err = b.InsertAppointment(ctx, domain.Appointment{
			Date:            day,
			StartTime:       domain.Clock(10, 0),
			DurationMinutes: 60,
			Customer:        domain.Customer{Name: "Bob", Email: "bob@example.com"},
			Status:          domain.StatusConfirmed,
		})
		if !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("duplicate slot err = %v, want ErrConflict", err)
		}
		if _, err := tx.NewRaw("ROLLBACK TO SAVEPOINT dup").Exec(ctx); err != nil {
			return err
		}

		active, err := b.ListActiveAppointments(ctx, day)
		if err != nil {
			return err
		}
		if len(active) != 1 || active[0].ID != first.ID {
			return fmt.Errorf("active = %+v, want only the first appointment", active)
		}

		cancelled, err := b.UpdateAppointmentStatus(ctx, first.ID, domain.StatusCancelled, time.Now())
		if err != nil {
			return err
		}
		if cancelled.Status != domain.StatusCancelled || cancelled.CancelledAt == nil {
			return fmt.Errorf("cancelled = %+v", cancelled)
		}

		rebooked, err := b.InsertAppointment(ctx, domain.Appointment{
			Date:            day,
			StartTime:       domain.Clock(10, 0),
			DurationMinutes: 60,
			Customer:        domain.Customer{Name: "Bob", Email: "bob@example.com"},
			Status:          domain.StatusConfirmed,
		})
		if err != nil {
			return fmt.Errorf("rebooking a cancelled slot: %w", err)
		}

		res, err := tx.NewUpdate().
			TableExpr("appointments").
			Set("reminder_sent_at = ?", time.Now().UTC()).
			Where("id = ?", rebooked.ID).
			Where("reminder_sent_at IS NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("first reminder flag write affected %d rows", n)
		}
		res, err = tx.NewUpdate().
			TableExpr("appointments").
			Set("reminder_sent_at = ?", time.Now().UTC()).
			Where("id = ?", rebooked.ID).
			Where("reminder_sent_at IS NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 0 {
			return fmt.Errorf("second reminder flag write affected %d rows", n)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("integration error: %v", err)
	}
}

func randomHex(t *testing.T, n int) string {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}
