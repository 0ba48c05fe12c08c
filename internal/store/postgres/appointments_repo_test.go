package postgres

import (
	"errors"
	"fmt"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/store"
)

func TestMapInsertError(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "active slot", err: &pgconn.PgError{Code: "23505", ConstraintName: activeSlotIndex}, want: store.ErrConflict},
		{name: "primary key", err: &pgconn.PgError{Code: "23505", ConstraintName: appointmentsPKey}, want: store.ErrIdempotencyConflict},
		{name: "wrapped", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: activeSlotIndex}), want: store.ErrConflict},
		{name: "check violation passes through", err: &pgconn.PgError{Code: "23514"}, want: nil},
		{name: "non pg error passes through", err: other, want: other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapInsertError(tt.err)
			if tt.want == nil {
				if got != tt.err {
					t.Fatalf("mapInsertError = %v, want original error", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("mapInsertError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLockKeys_SortedAndDeduplicated(t *testing.T) {
	a, _ := domain.ParseDate("2026-03-05")
	b, _ := domain.ParseDate("2026-03-01")

	keys := lockKeys([]domain.LocalDate{a, b, a})
	want := []string{"appointments:2026-03-01", "appointments:2026-03-05"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func TestSQLDateScan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want string
	}{
		{name: "time", src: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), want: "2026-03-01"},
		{name: "string", src: "2026-03-01", want: "2026-03-01"},
		{name: "timestamp text", src: []byte("2026-03-01T00:00:00Z"), want: "2026-03-01"},
		{name: "null", src: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d sqlDate
			if err := d.Scan(tt.src); err != nil {
				t.Fatalf("Scan error: %v", err)
			}
			if string(d) != tt.want {
				t.Fatalf("Scan = %q, want %q", d, tt.want)
			}
		})
	}

	var d sqlDate
	if err := d.Scan(42); err == nil {
		t.Fatalf("expected error scanning int")
	}
}

func TestSQLClockRoundTrip(t *testing.T) {
	var c sqlClock
	if err := c.Scan("09:30:00"); err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	lt, err := c.local()
	if err != nil {
		t.Fatalf("local error: %v", err)
	}
	if domain.FormatClock(lt) != "09:30" {
		t.Fatalf("clock = %s, want 09:30", domain.FormatClock(lt))
	}
	if v, _ := toSQLClock(lt).Value(); v != "09:30:00" {
		t.Fatalf("Value = %v, want 09:30:00", v)
	}
}

func TestAppointmentRowConversion(t *testing.T) {
	d, _ := domain.ParseDate("2026-03-02")
	sent := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	in := domain.Appointment{
		ID:              uuid.MustParse("00000000-0000-0000-0000-000000000101"),
		Date:            d,
		StartTime:       domain.Clock(14, 30),
		DurationMinutes: 45,
		Customer:        domain.Customer{Name: "Ada", Email: "ada@example.com", Phone: "+49 30 1234"},
		Notes:           "bring samples",
		Status:          domain.StatusConfirmed,
		ReminderSentAt:  &sent,
		CreatedAt:       sent.Add(-48 * time.Hour),
		UpdatedAt:       sent,
	}

	out, err := appointmentRowFromDomain(in).toDomain()
	if err != nil {
		t.Fatalf("toDomain error: %v", err)
	}
	if out.Date != in.Date || out.StartTime != in.StartTime || out.Customer != in.Customer || out.Status != in.Status {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
	if out.ReminderSentAt == nil || !out.ReminderSentAt.Equal(sent) {
		t.Fatalf("reminder_sent_at lost: %v", out.ReminderSentAt)
	}

	bad := appointmentRowFromDomain(in)
	bad.Status = "archived"
	if _, err := bad.toDomain(); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestOverrideRowConversion(t *testing.T) {
	start, _ := domain.ParseDate("2025-12-24")
	end, _ := domain.ParseDate("2025-12-26")
	open, closing := domain.Clock(10, 0), domain.Clock(13, 0)

	in := domain.DateOverride{
		ID:            uuid.MustParse("00000000-0000-0000-0000-000000000201"),
		Date:          start,
		EndDate:       &end,
		OpenTime:      &open,
		CloseTime:     &closing,
		Reason:        "Holiday hours",
		ShowOnWebsite: true,
	}

	out, err := overrideRowFromDomain(in).toDomain()
	if err != nil {
		t.Fatalf("toDomain error: %v", err)
	}
	if out.EndDate == nil || *out.EndDate != end {
		t.Fatalf("end_date = %v, want %v", out.EndDate, end)
	}
	if out.OpenTime == nil || *out.OpenTime != open || out.CloseTime == nil || *out.CloseTime != closing {
		t.Fatalf("times lost: %+v", out)
	}

	closed := overrideRowFromDomain(domain.DateOverride{Date: start, IsClosed: true})
	got, err := closed.toDomain()
	if err != nil {
		t.Fatalf("toDomain error: %v", err)
	}
	if got.EndDate != nil || got.OpenTime != nil || got.CloseTime != nil {
		t.Fatalf("closure should have no optional fields: %+v", got)
	}
}

func TestExtractGooseUp(t *testing.T) {
	up, err := extractGooseUp("-- +goose Up\nCREATE TABLE a (id int);\nCREATE TABLE b (id int);\n-- +goose Down\nDROP TABLE a;\n")
	if err != nil {
		t.Fatalf("extractGooseUp error: %v", err)
	}
	stmts := splitSQLStatements(up)
	if len(stmts) != 2 || stmts[1] != "CREATE TABLE b (id int)" {
		t.Fatalf("statements = %q", stmts)
	}

	if _, err := extractGooseUp("CREATE TABLE a (id int);"); err == nil {
		t.Fatalf("expected error for missing marker")
	}
}

func TestMigrationFilesSorted(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_more.sql": {Data: []byte("-- +goose Up\nSELECT 1;")},
		"0001_init.sql": {Data: []byte("-- +goose Up\nSELECT 1;")},
		"README.md":     {Data: []byte("ignored")},
	}
	names, err := migrationFiles(fsys)
	if err != nil {
		t.Fatalf("migrationFiles error: %v", err)
	}
	if len(names) != 2 || names[0] != "0001_init.sql" || names[1] != "0002_more.sql" {
		t.Fatalf("names = %v", names)
	}
}
