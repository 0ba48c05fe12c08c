package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// LocalDate and LocalTime carry no zone; they are interpreted in the
// business timezone.
type (
	LocalDate = civil.Date
	LocalTime = civil.Time
)

func ParseDate(s string) (LocalDate, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil || !d.IsValid() {
		return LocalDate{}, Validationf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseClock accepts "HH:MM" and "HH:MM:SS" with zero seconds.
func ParseClock(s string) (LocalTime, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil || t.Second() != 0 {
		return LocalTime{}, Validationf("invalid time %q, want HH:MM", s)
	}
	return civil.TimeOf(t), nil
}

func Clock(hour, minute int) LocalTime {
	return LocalTime{Hour: hour, Minute: minute}
}

func FormatClock(t LocalTime) string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func MinuteOfDay(t LocalTime) int {
	return t.Hour*60 + t.Minute
}

func ClockFromMinutes(m int) LocalTime {
	return LocalTime{Hour: m / 60, Minute: m % 60}
}

func Weekday(d LocalDate) time.Weekday {
	return d.In(time.UTC).Weekday()
}

func CompareDates(a, b LocalDate) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// DaysInRange counts both ends.
func DaysInRange(start, end LocalDate) int {
	return end.DaysSince(start) + 1
}

func Instant(d LocalDate, t LocalTime, loc *time.Location) time.Time {
	return civil.DateTime{Date: d, Time: t}.In(loc)
}

func DateOf(t time.Time, loc *time.Location) LocalDate {
	return civil.DateOf(t.In(loc))
}

func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
