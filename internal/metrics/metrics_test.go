package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncBooking("created")
	m.IncBooking("created")
	m.IncBooking("conflict")
	m.IncReminder("sent", "email")
	m.IncCancellation()

	if got := testutil.ToFloat64(m.BookingsTotal.WithLabelValues("created")); got != 2 {
		t.Fatalf("bookings created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BookingsTotal.WithLabelValues("conflict")); got != 1 {
		t.Fatalf("bookings conflict = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RemindersTotal.WithLabelValues("sent", "email")); got != 1 {
		t.Fatalf("reminders sent = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CancellationsTotal); got != 1 {
		t.Fatalf("cancellations = %v, want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.IncBooking("created")
	m.IncCancellation()
	m.IncReminder("sent", "email")
	m.ObserveReminderPass(time.Second)
	m.IncFeedRender("ok")
	m.ObserveHTTP("GET", "/healthz", "200", time.Millisecond)
}
