package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type WeeklyHoursEntry struct {
	DayOfWeek time.Weekday
	IsOpen    bool
	OpenTime  *LocalTime
	CloseTime *LocalTime
}

func (e WeeklyHoursEntry) Validate() error {
	if e.DayOfWeek < time.Sunday || e.DayOfWeek > time.Saturday {
		return Validationf("invalid day_of_week %d", e.DayOfWeek)
	}
	if !e.IsOpen {
		if e.OpenTime != nil || e.CloseTime != nil {
			return Validationf("%s: closed days must not have opening times", e.DayOfWeek)
		}
		return nil
	}
	if e.OpenTime == nil || e.CloseTime == nil {
		return Validationf("%s: open_time and close_time are required", e.DayOfWeek)
	}
	if MinuteOfDay(*e.OpenTime) >= MinuteOfDay(*e.CloseTime) {
		return Validationf("%s: open_time must be before close_time", e.DayOfWeek)
	}
	return nil
}

// ValidateWeek requires exactly one valid entry per day of week.
func ValidateWeek(entries []WeeklyHoursEntry) error {
	if len(entries) != 7 {
		return Validationf("weekly hours need 7 entries, got %d", len(entries))
	}
	var seen [7]bool
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
		if seen[e.DayOfWeek] {
			return Validationf("duplicate entry for %s", e.DayOfWeek)
		}
		seen[e.DayOfWeek] = true
	}
	return nil
}

func DefaultWeeklyHours() []WeeklyHoursEntry {
	open := func(d time.Weekday, from, to int) WeeklyHoursEntry {
		o, c := Clock(from, 0), Clock(to, 0)
		return WeeklyHoursEntry{DayOfWeek: d, IsOpen: true, OpenTime: &o, CloseTime: &c}
	}
	return []WeeklyHoursEntry{
		{DayOfWeek: time.Sunday},
		open(time.Monday, 9, 18),
		open(time.Tuesday, 9, 18),
		open(time.Wednesday, 9, 18),
		open(time.Thursday, 9, 18),
		open(time.Friday, 9, 18),
		open(time.Saturday, 10, 14),
	}
}

type DateOverride struct {
	ID            uuid.UUID
	Date          LocalDate
	EndDate       *LocalDate
	IsClosed      bool
	OpenTime      *LocalTime
	CloseTime     *LocalTime
	Reason        string
	ShowOnWebsite bool
	IsRecurring   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (o DateOverride) Validate() error {
	if !o.Date.IsValid() {
		return Validationf("invalid override date")
	}
	if o.EndDate != nil {
		if !o.EndDate.IsValid() {
			return Validationf("invalid override end_date")
		}
		if o.EndDate.Before(o.Date) {
			return Validationf("end_date must not be before date")
		}
		if o.IsRecurring && *o.EndDate != o.Date &&
			(o.EndDate.DaysSince(o.Date) >= 365 || ordinal(*o.EndDate) == ordinal(o.Date)) {
			return Validationf("recurring overrides must span less than a year")
		}
	}
	if len(o.Reason) > 500 {
		return Validationf("reason must be at most 500 characters")
	}
	if o.IsClosed {
		if o.OpenTime != nil || o.CloseTime != nil {
			return Validationf("closures must not have opening times")
		}
		return nil
	}
	if o.OpenTime == nil || o.CloseTime == nil {
		return Validationf("custom hours need open_time and close_time")
	}
	if MinuteOfDay(*o.OpenTime) >= MinuteOfDay(*o.CloseTime) {
		return Validationf("open_time must be before close_time")
	}
	return nil
}

func (o DateOverride) LastDate() LocalDate {
	if o.EndDate != nil {
		return *o.EndDate
	}
	return o.Date
}

// Matches reports whether the override applies to d. Recurring overrides
// compare month and day only; a range whose end falls before its start in
// the calendar year wraps across New Year.
func (o DateOverride) Matches(d LocalDate) bool {
	if !o.IsRecurring {
		return !d.Before(o.Date) && !d.After(o.LastDate())
	}
	from, to, target := ordinal(o.Date), ordinal(o.LastDate()), ordinal(d)
	if from <= to {
		return target >= from && target <= to
	}
	return target >= from || target <= to
}

// Past overrides are retained for history but hidden from listings.
func (o DateOverride) Past(today LocalDate) bool {
	return !o.IsRecurring && o.LastDate().Before(today)
}

func ordinal(d LocalDate) int {
	return int(d.Month)*100 + d.Day
}

// EffectiveHours is the open window for one date after override resolution.
type EffectiveHours struct {
	Date       LocalDate
	IsOpen     bool
	Open       LocalTime
	Close      LocalTime
	OverrideID *uuid.UUID
}

// Contains reports whether [start, end) in minutes lies within the window.
func (h EffectiveHours) Contains(start, end int) bool {
	if !h.IsOpen {
		return false
	}
	return start >= MinuteOfDay(h.Open) && end <= MinuteOfDay(h.Close) && start < end
}

// ResolveHours merges the weekly policy and overrides for a single date.
// When several overrides match, a closure wins; otherwise a dated override
// beats a recurring one and the newest of equals wins.
func ResolveHours(d LocalDate, weekly []WeeklyHoursEntry, overrides []DateOverride) EffectiveHours {
	if o, ok := pickOverride(d, overrides); ok {
		id := o.ID
		h := EffectiveHours{Date: d, OverrideID: &id}
		if o.IsClosed || o.OpenTime == nil || o.CloseTime == nil {
			return h
		}
		h.IsOpen = true
		h.Open = *o.OpenTime
		h.Close = *o.CloseTime
		return h
	}

	wd := Weekday(d)
	for _, e := range weekly {
		if e.DayOfWeek != wd {
			continue
		}
		if !e.IsOpen || e.OpenTime == nil || e.CloseTime == nil {
			return EffectiveHours{Date: d}
		}
		return EffectiveHours{Date: d, IsOpen: true, Open: *e.OpenTime, Close: *e.CloseTime}
	}
	return EffectiveHours{Date: d}
}

func pickOverride(d LocalDate, overrides []DateOverride) (DateOverride, bool) {
	var matched []DateOverride
	for _, o := range overrides {
		if o.Matches(d) {
			matched = append(matched, o)
		}
	}
	if len(matched) == 0 {
		return DateOverride{}, false
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.IsClosed != b.IsClosed {
			return a.IsClosed
		}
		if a.IsRecurring != b.IsRecurring {
			return !a.IsRecurring
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return matched[0], true
}
