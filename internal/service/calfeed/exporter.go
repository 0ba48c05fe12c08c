// Package calfeed renders appointments as an iCalendar subscription feed.
package calfeed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/metrics"
	"showroom/backend/internal/store"
)

const (
	feedDaysBack  = 30
	feedDaysAhead = 365
)

type Config struct {
	Timezone     string
	CalendarName string
	Address      string
	// Domain is the right-hand side of every event UID.
	Domain    string
	ProductID string
}

type Exporter struct {
	appts   store.AppointmentStore
	metrics *metrics.Metrics
	cfg     Config
	log     *slog.Logger
}

func NewExporter(appts store.AppointmentStore, m *metrics.Metrics, cfg Config, log *slog.Logger) *Exporter {
	if log == nil {
		log = slog.Default()
	}
	if cfg.CalendarName == "" {
		cfg.CalendarName = "Appointments"
	}
	if cfg.Domain == "" {
		cfg.Domain = "showroom.local"
	}
	if cfg.ProductID == "" {
		cfg.ProductID = "-//Showroom//Appointments//EN"
	}
	return &Exporter{
		appts:   appts,
		metrics: m,
		cfg:     cfg,
		log:     log.With(slog.String("component", "calfeed")),
	}
}

// FeedWindow is the default range served to calendar subscribers.
func FeedWindow(today domain.LocalDate) (from, to domain.LocalDate) {
	return today.AddDays(-feedDaysBack), today.AddDays(feedDaysAhead)
}

// Location resolves the configured timezone.
func (e *Exporter) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(e.cfg.Timezone)
	if err != nil || e.cfg.Timezone == "" {
		return nil, &domain.ExportError{Reason: fmt.Sprintf("unknown timezone %q", e.cfg.Timezone), Err: err}
	}
	return loc, nil
}

// GenerateFeed renders one VEVENT per appointment with the given status in
// [from, to]. An empty status selects confirmed appointments. Output is
// byte-stable for unchanged data.
func (e *Exporter) GenerateFeed(ctx context.Context, from, to domain.LocalDate, status domain.AppointmentStatus) ([]byte, error) {
	body, err := e.generate(ctx, from, to, status)
	if err != nil {
		e.metrics.IncFeedRender("error")
		e.log.Error("calendar feed failed",
			slog.Any("err", err),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		return nil, err
	}
	e.metrics.IncFeedRender("ok")
	return body, nil
}

func (e *Exporter) generate(ctx context.Context, from, to domain.LocalDate, status domain.AppointmentStatus) ([]byte, error) {
	loc, err := e.Location()
	if err != nil {
		return nil, err
	}
	if !from.IsValid() || !to.IsValid() {
		return nil, &domain.ExportError{Reason: "invalid date range"}
	}
	if to.Before(from) {
		return nil, &domain.ExportError{Reason: fmt.Sprintf("end date %s is before start date %s", to, from)}
	}
	if status == "" {
		status = domain.StatusConfirmed
	}
	if status == domain.StatusCompleted {
		return nil, &domain.ExportError{Reason: "completed is derived and cannot be exported directly"}
	}

	appts, err := e.appts.ListAppointments(ctx, store.AppointmentFilter{
		From:     from,
		To:       to,
		Statuses: []domain.AppointmentStatus{status},
	})
	if err != nil {
		return nil, &domain.ExportError{Reason: "load appointments", Err: err}
	}
	domain.SortAppointments(appts)

	cal := ics.NewCalendar()
	cal.SetProductId(e.cfg.ProductID)
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(e.cfg.CalendarName)
	cal.SetXWRTimezone(loc.String())

	for _, a := range appts {
		e.addEvent(cal, a, loc)
	}

	var b strings.Builder
	if err := cal.SerializeTo(&b, ics.WithNewLineWindows); err != nil {
		return nil, &domain.ExportError{Reason: "serialize", Err: err}
	}
	return []byte(b.String()), nil
}

func (e *Exporter) addEvent(cal *ics.Calendar, a domain.Appointment, loc *time.Location) {
	ev := cal.AddEvent(fmt.Sprintf("appointment-%s@%s", a.ID, e.cfg.Domain))
	ev.SetDtStampTime(a.CreatedAt)
	ev.SetCreatedTime(a.CreatedAt)
	ev.SetModifiedAt(a.UpdatedAt)
	ev.SetStartAt(a.Start(loc))
	ev.SetEndAt(a.End(loc))
	ev.SetSummary("Appointment: " + a.Customer.Name)
	ev.SetDescription(describe(a))
	if e.cfg.Address != "" {
		ev.SetLocation(e.cfg.Address)
	}
	if a.Status == domain.StatusCancelled {
		ev.SetStatus(ics.ObjectStatusCancelled)
	} else {
		ev.SetStatus(ics.ObjectStatusConfirmed)
	}
}

func describe(a domain.Appointment) string {
	lines := []string{"Email: " + a.Customer.Email}
	if a.Customer.Phone != "" {
		lines = append(lines, "Phone: "+a.Customer.Phone)
	}
	lines = append(lines, fmt.Sprintf("Duration: %d minutes", a.DurationMinutes))
	if a.Notes != "" {
		lines = append(lines, "Notes: "+a.Notes)
	}
	return strings.Join(lines, "\n")
}
