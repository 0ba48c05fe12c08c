// Package metrics holds the Prometheus collectors for bookings, reminders
// and the HTTP surface. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "showroom"

type Metrics struct {
	BookingsTotal        *prometheus.CounterVec
	CancellationsTotal   prometheus.Counter
	RemindersTotal       *prometheus.CounterVec
	ReminderPassDuration prometheus.Histogram
	FeedRendersTotal     *prometheus.CounterVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
}

// New registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BookingsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_total",
				Help:      "Booking attempts by outcome.",
			},
			[]string{"result"},
		),
		CancellationsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cancellations_total",
				Help:      "Appointments moved to cancelled.",
			},
		),
		RemindersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_total",
				Help:      "Reminder dispatches by status and channel.",
			},
			[]string{"status", "channel"},
		),
		ReminderPassDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reminder_pass_duration_seconds",
				Help:      "Wall time of one reminder pass.",
				Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300},
			},
		),
		FeedRendersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calendar_feed_renders_total",
				Help:      "Calendar feed renders by result.",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code.",
			},
			[]string{"method", "route", "code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) IncBooking(result string) {
	if m == nil {
		return
	}
	m.BookingsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncCancellation() {
	if m == nil {
		return
	}
	m.CancellationsTotal.Inc()
}

func (m *Metrics) IncReminder(status, channel string) {
	if m == nil {
		return
	}
	m.RemindersTotal.WithLabelValues(status, channel).Inc()
}

func (m *Metrics) ObserveReminderPass(d time.Duration) {
	if m == nil {
		return
	}
	m.ReminderPassDuration.Observe(d.Seconds())
}

func (m *Metrics) IncFeedRender(result string) {
	if m == nil {
		return
	}
	m.FeedRendersTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
