package calfeed

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/store"
	"showroom/backend/internal/store/memory"
)

func mustDate(t *testing.T, s string) domain.LocalDate {
	t.Helper()
	d, err := domain.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate error: %v", err)
	}
	return d
}

func seed(t *testing.T, st *memory.Store, a domain.Appointment) domain.Appointment {
	t.Helper()
	var out domain.Appointment
	err := st.InDateTransaction(context.Background(), []domain.LocalDate{a.Date}, func(ctx context.Context, tx store.BookingTx) error {
		var err error
		out, err = tx.InsertAppointment(ctx, a)
		return err
	})
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}
	return out
}

func newExporter(st store.AppointmentStore, tz string) *Exporter {
	return NewExporter(st, nil, Config{
		Timezone:     tz,
		CalendarName: "Showroom",
		Address:      "Hauptstrasse 1, Berlin",
		Domain:       "showroom.test",
	}, nil)
}

func TestGenerateFeed_RendersDeterministicEvents(t *testing.T) {
	st := memory.New()
	created := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	id := uuid.MustParse("0190f5a4-0000-7000-8000-000000000001")
	seed(t, st, domain.Appointment{
		ID:              id,
		Date:            mustDate(t, "2026-03-02"),
		StartTime:       domain.Clock(10, 0),
		DurationMinutes: 45,
		Customer:        domain.Customer{Name: "Doe, Jane", Email: "jane@example.com", Phone: "+49 30 1234"},
		Status:          domain.StatusConfirmed,
		CreatedAt:       created,
		UpdatedAt:       created,
	})
	seed(t, st, domain.Appointment{
		Date:            mustDate(t, "2026-03-03"),
		StartTime:       domain.Clock(11, 0),
		DurationMinutes: 60,
		Customer:        domain.Customer{Name: "Gone", Email: "gone@example.com"},
		Status:          domain.StatusCancelled,
	})

	e := newExporter(st, "Europe/Berlin")
	from, to := mustDate(t, "2026-03-01"), mustDate(t, "2026-03-31")

	first, err := e.GenerateFeed(context.Background(), from, to, "")
	if err != nil {
		t.Fatalf("GenerateFeed error: %v", err)
	}
	second, err := e.GenerateFeed(context.Background(), from, to, "")
	if err != nil {
		t.Fatalf("GenerateFeed error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("feed not byte-stable:\n%s\n---\n%s", first, second)
	}

	body := string(first)
	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"VERSION:2.0\r\n",
		"METHOD:PUBLISH\r\n",
		"X-WR-TIMEZONE:Europe/Berlin\r\n",
		"BEGIN:VEVENT\r\n",
		"UID:appointment-" + id.String() + "@showroom.test\r\n",
		"DTSTART:20260302T090000Z\r\n",
		"DTEND:20260302T094500Z\r\n",
		"DTSTAMP:20260201T093000Z\r\n",
		`SUMMARY:Appointment: Doe\, Jane` + "\r\n",
		"STATUS:CONFIRMED\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("feed missing %q:\n%s", want, body)
		}
	}
	if strings.Count(body, "BEGIN:VEVENT") != 1 {
		t.Fatalf("cancelled appointments must not appear in the confirmed feed:\n%s", body)
	}
	if strings.Contains(strings.ReplaceAll(body, "\r\n", ""), "\n") {
		t.Fatalf("feed contains bare LF line endings")
	}

	cancelled, err := e.GenerateFeed(context.Background(), from, to, domain.StatusCancelled)
	if err != nil {
		t.Fatalf("GenerateFeed cancelled error: %v", err)
	}
	if !strings.Contains(string(cancelled), "STATUS:CANCELLED\r\n") {
		t.Fatalf("cancelled feed:\n%s", cancelled)
	}
}

func TestGenerateFeed_EmptyRangeIsValidCalendar(t *testing.T) {
	e := newExporter(memory.New(), "UTC")
	d := mustDate(t, "2026-03-01")
	body, err := e.GenerateFeed(context.Background(), d, d, "")
	if err != nil {
		t.Fatalf("GenerateFeed error: %v", err)
	}
	if !strings.HasPrefix(string(body), "BEGIN:VCALENDAR\r\n") || !strings.HasSuffix(string(body), "END:VCALENDAR\r\n") {
		t.Fatalf("body = %q", body)
	}
}

type failingStore struct {
	store.AppointmentStore
}

func (failingStore) ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
	return nil, errors.New("connection refused")
}

func TestGenerateFeed_FailsClosed(t *testing.T) {
	from, to := mustDate(t, "2026-03-01"), mustDate(t, "2026-03-31")

	tests := []struct {
		name     string
		exporter *Exporter
		from, to domain.LocalDate
	}{
		{name: "unknown timezone", exporter: newExporter(memory.New(), "Mars/Olympus_Mons"), from: from, to: to},
		{name: "empty timezone", exporter: newExporter(memory.New(), ""), from: from, to: to},
		{name: "inverted range", exporter: newExporter(memory.New(), "UTC"), from: to, to: from},
		{name: "invalid date", exporter: newExporter(memory.New(), "UTC"), from: domain.LocalDate{Year: 2026, Month: 2, Day: 30}, to: to},
		{name: "store failure", exporter: newExporter(failingStore{}, "UTC"), from: from, to: to},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := tt.exporter.GenerateFeed(context.Background(), tt.from, tt.to, "")
			var exErr *domain.ExportError
			if !errors.As(err, &exErr) {
				t.Fatalf("err = %v, want *ExportError", err)
			}
			if body != nil {
				t.Fatalf("body must be empty on failure")
			}
		})
	}
}

func TestFeedWindow(t *testing.T) {
	from, to := FeedWindow(mustDate(t, "2026-03-01"))
	if from != mustDate(t, "2026-01-30") || to != mustDate(t, "2027-03-01") {
		t.Fatalf("window = %s..%s", from, to)
	}
}

func TestGenerateFeed_FoldedLinesUseCRLF(t *testing.T) {
	st := memory.New()
	name := strings.Repeat("Long Customer Name ", 8)
	seed(t, st, domain.Appointment{
		Date:            mustDate(t, "2026-03-02"),
		StartTime:       domain.Clock(10, 0),
		DurationMinutes: 60,
		Customer:        domain.Customer{Name: name, Email: "long@example.com"},
		Notes:           strings.Repeat("needs a long consultation about shelving\n", 6),
		Status:          domain.StatusConfirmed,
	})

	e := newExporter(st, "UTC")
	body, err := e.GenerateFeed(context.Background(), mustDate(t, "2026-03-01"), mustDate(t, "2026-03-31"), "")
	if err != nil {
		t.Fatalf("GenerateFeed error: %v", err)
	}
	if !strings.Contains(string(body), "\r\n ") {
		t.Fatalf("expected folded continuation lines:\n%s", body)
	}
	for i, line := range strings.Split(string(body), "\r\n") {
		if strings.Contains(line, "\n") || strings.Contains(line, "\r") {
			t.Fatalf("line %d has a stray line break: %q", i, line)
		}
	}
}
