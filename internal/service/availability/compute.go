package availability

import (
	"time"

	"showroom/backend/internal/domain"
)

type Input struct {
	Start, End   domain.LocalDate
	SlotMinutes  int
	Weekly       []domain.WeeklyHoursEntry
	Overrides    []domain.DateOverride
	Appointments []domain.Appointment
	// Earliest is the first instant a slot may start at.
	Earliest time.Time
	Location *time.Location
}

// Compute is the pure core of ComputeAvailability. Inputs are assumed to be
// validated.
func Compute(in Input) []domain.DayAvailability {
	byDate := make(map[domain.LocalDate][]domain.Appointment)
	for _, a := range in.Appointments {
		if !a.Active() {
			continue
		}
		byDate[a.Date] = append(byDate[a.Date], a)
	}

	days := make([]domain.DayAvailability, 0, domain.DaysInRange(in.Start, in.End))
	for d := in.Start; !d.After(in.End); d = d.AddDays(1) {
		hours := domain.ResolveHours(d, in.Weekly, in.Overrides)
		days = append(days, DaySlots(hours, in.SlotMinutes, byDate[d], in.Earliest, in.Location))
	}
	return days
}

// DaySlots lays fixed-length slots over one day's effective hours. A slot is
// offered only if it ends by closing time.
func DaySlots(hours domain.EffectiveHours, slotMinutes int, appts []domain.Appointment, earliest time.Time, loc *time.Location) domain.DayAvailability {
	day := domain.DayAvailability{Date: hours.Date, IsOpen: hours.IsOpen, Slots: []domain.Slot{}}
	if !hours.IsOpen || slotMinutes <= 0 {
		day.IsOpen = false
		return day
	}
	if loc == nil {
		loc = time.UTC
	}

	open, closing := domain.MinuteOfDay(hours.Open), domain.MinuteOfDay(hours.Close)
	for start := open; start+slotMinutes <= closing; start += slotMinutes {
		t := domain.ClockFromMinutes(start)
		available := !domain.Instant(hours.Date, t, loc).Before(earliest)
		if available {
			for _, a := range appts {
				if a.Active() && a.Overlaps(start, start+slotMinutes) {
					available = false
					break
				}
			}
		}
		day.Slots = append(day.Slots, domain.Slot{Time: t, Available: available})
	}
	return day
}
