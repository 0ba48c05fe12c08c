package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustDate(t *testing.T, s string) LocalDate {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) error: %v", s, err)
	}
	return d
}

func clockPtr(h, m int) *LocalTime {
	c := Clock(h, m)
	return &c
}

func datePtr(d LocalDate) *LocalDate {
	return &d
}

func TestResolveHours_WeeklyFallback(t *testing.T) {
	weekly := DefaultWeeklyHours()

	monday := ResolveHours(mustDate(t, "2025-12-22"), weekly, nil)
	if !monday.IsOpen {
		t.Fatalf("monday should be open")
	}
	if FormatClock(monday.Open) != "09:00" || FormatClock(monday.Close) != "18:00" {
		t.Fatalf("monday hours = %s-%s, want 09:00-18:00", FormatClock(monday.Open), FormatClock(monday.Close))
	}
	if monday.OverrideID != nil {
		t.Fatalf("weekly hours must not carry an override id")
	}

	sunday := ResolveHours(mustDate(t, "2025-12-21"), weekly, nil)
	if sunday.IsOpen {
		t.Fatalf("sunday should be closed")
	}
}

func TestResolveHours_ClosureOverridesWeekly(t *testing.T) {
	closure := DateOverride{ID: uuid.New(), Date: mustDate(t, "2025-12-24"), IsClosed: true}

	h := ResolveHours(mustDate(t, "2025-12-24"), DefaultWeeklyHours(), []DateOverride{closure})
	if h.IsOpen {
		t.Fatalf("2025-12-24 should be closed by override")
	}
	if h.OverrideID == nil || *h.OverrideID != closure.ID {
		t.Fatalf("override id = %v, want %v", h.OverrideID, closure.ID)
	}
}

func TestResolveHours_CustomHoursReplaceWeekly(t *testing.T) {
	custom := DateOverride{
		ID:        uuid.New(),
		Date:      mustDate(t, "2025-12-23"),
		OpenTime:  clockPtr(11, 0),
		CloseTime: clockPtr(13, 30),
	}

	h := ResolveHours(mustDate(t, "2025-12-23"), DefaultWeeklyHours(), []DateOverride{custom})
	if !h.IsOpen {
		t.Fatalf("custom hours should be open")
	}
	if FormatClock(h.Open) != "11:00" || FormatClock(h.Close) != "13:30" {
		t.Fatalf("hours = %s-%s, want 11:00-13:30", FormatClock(h.Open), FormatClock(h.Close))
	}
}

func TestResolveHours_CustomHoursOpenOnWeeklyClosedDay(t *testing.T) {
	custom := DateOverride{
		ID:        uuid.New(),
		Date:      mustDate(t, "2025-12-21"),
		OpenTime:  clockPtr(12, 0),
		CloseTime: clockPtr(16, 0),
	}

	h := ResolveHours(mustDate(t, "2025-12-21"), DefaultWeeklyHours(), []DateOverride{custom})
	if !h.IsOpen {
		t.Fatalf("override should open a weekly closed sunday")
	}
}

func TestResolveHours_Precedence(t *testing.T) {
	day := mustDate(t, "2025-12-24")
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	recurringHours := DateOverride{ID: uuid.New(), Date: mustDate(t, "2020-12-24"), IsRecurring: true, OpenTime: clockPtr(10, 0), CloseTime: clockPtr(12, 0), CreatedAt: newer}
	datedHours := DateOverride{ID: uuid.New(), Date: day, OpenTime: clockPtr(14, 0), CloseTime: clockPtr(16, 0), CreatedAt: older}
	datedHoursNewer := DateOverride{ID: uuid.New(), Date: day, OpenTime: clockPtr(15, 0), CloseTime: clockPtr(17, 0), CreatedAt: newer}
	recurringClosure := DateOverride{ID: uuid.New(), Date: mustDate(t, "2019-12-24"), IsRecurring: true, IsClosed: true, CreatedAt: older}

	tests := []struct {
		name      string
		overrides []DateOverride
		want      uuid.UUID
	}{
		{name: "dated beats recurring", overrides: []DateOverride{recurringHours, datedHours}, want: datedHours.ID},
		{name: "newest dated wins", overrides: []DateOverride{datedHours, datedHoursNewer}, want: datedHoursNewer.ID},
		{name: "closure wins outright", overrides: []DateOverride{datedHoursNewer, recurringClosure, datedHours}, want: recurringClosure.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ResolveHours(day, DefaultWeeklyHours(), tt.overrides)
			if h.OverrideID == nil {
				t.Fatalf("expected an override to apply")
			}
			if *h.OverrideID != tt.want {
				t.Fatalf("override = %v, want %v", *h.OverrideID, tt.want)
			}
		})
	}
}

func TestDateOverrideMatches(t *testing.T) {
	tests := []struct {
		name     string
		override DateOverride
		date     string
		want     bool
	}{
		{name: "single day", override: DateOverride{Date: mustDate(t, "2025-12-24")}, date: "2025-12-24", want: true},
		{name: "single day other year", override: DateOverride{Date: mustDate(t, "2025-12-24")}, date: "2026-12-24", want: false},
		{name: "range inside", override: DateOverride{Date: mustDate(t, "2025-12-24"), EndDate: datePtr(mustDate(t, "2026-01-02"))}, date: "2025-12-31", want: true},
		{name: "range end inclusive", override: DateOverride{Date: mustDate(t, "2025-12-24"), EndDate: datePtr(mustDate(t, "2026-01-02"))}, date: "2026-01-02", want: true},
		{name: "range after", override: DateOverride{Date: mustDate(t, "2025-12-24"), EndDate: datePtr(mustDate(t, "2026-01-02"))}, date: "2026-01-03", want: false},
		{name: "recurring next year", override: DateOverride{Date: mustDate(t, "2024-12-25"), IsRecurring: true}, date: "2025-12-25", want: true},
		{name: "recurring many years later", override: DateOverride{Date: mustDate(t, "2024-12-25"), IsRecurring: true}, date: "2031-12-25", want: true},
		{name: "recurring before first year", override: DateOverride{Date: mustDate(t, "2024-12-25"), IsRecurring: true}, date: "2023-12-25", want: true},
		{name: "recurring other day", override: DateOverride{Date: mustDate(t, "2024-12-25"), IsRecurring: true}, date: "2025-12-26", want: false},
		{name: "recurring wraps year end", override: DateOverride{Date: mustDate(t, "2024-12-30"), EndDate: datePtr(mustDate(t, "2025-01-02")), IsRecurring: true}, date: "2027-01-01", want: true},
		{name: "recurring wrap excludes middle", override: DateOverride{Date: mustDate(t, "2024-12-30"), EndDate: datePtr(mustDate(t, "2025-01-02")), IsRecurring: true}, date: "2027-06-01", want: false},
		{name: "recurring near-year range covers mid-year", override: DateOverride{Date: mustDate(t, "2025-12-24"), EndDate: datePtr(mustDate(t, "2026-12-23")), IsRecurring: true}, date: "2027-06-01", want: true},
		{name: "recurring leap day skips common years", override: DateOverride{Date: mustDate(t, "2024-02-29"), IsRecurring: true}, date: "2025-03-01", want: false},
		{name: "recurring leap day next leap year", override: DateOverride{Date: mustDate(t, "2024-02-29"), IsRecurring: true}, date: "2028-02-29", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.override.Matches(mustDate(t, tt.date)); got != tt.want {
				t.Fatalf("Matches(%s) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestDateOverrideValidate(t *testing.T) {
	base := mustDate(t, "2025-12-24")

	tests := []struct {
		name     string
		override DateOverride
		wantErr  string
	}{
		{name: "closure ok", override: DateOverride{Date: base, IsClosed: true}},
		{name: "custom ok", override: DateOverride{Date: base, OpenTime: clockPtr(9, 0), CloseTime: clockPtr(12, 0)}},
		{name: "end before start", override: DateOverride{Date: base, EndDate: datePtr(mustDate(t, "2025-12-23")), IsClosed: true}, wantErr: "end_date must not be before date"},
		{name: "closure with times", override: DateOverride{Date: base, IsClosed: true, OpenTime: clockPtr(9, 0)}, wantErr: "closures must not have opening times"},
		{name: "custom missing times", override: DateOverride{Date: base}, wantErr: "custom hours need open_time and close_time"},
		{name: "custom inverted", override: DateOverride{Date: base, OpenTime: clockPtr(12, 0), CloseTime: clockPtr(9, 0)}, wantErr: "open_time must be before close_time"},
		{name: "recurring spanning a year", override: DateOverride{Date: base, EndDate: datePtr(mustDate(t, "2026-12-24")), IsRecurring: true, IsClosed: true}, wantErr: "recurring overrides must span less than a year"},
		{name: "recurring leap-year span", override: DateOverride{Date: mustDate(t, "2024-02-29"), EndDate: datePtr(mustDate(t, "2025-02-28")), IsRecurring: true, IsClosed: true}, wantErr: "recurring overrides must span less than a year"},
		{name: "recurring just under a year", override: DateOverride{Date: base, EndDate: datePtr(mustDate(t, "2026-12-23")), IsRecurring: true, IsClosed: true}},
		{name: "recurring single day with end", override: DateOverride{Date: base, EndDate: datePtr(base), IsRecurring: true, IsClosed: true}},
		{name: "non-recurring spanning a year", override: DateOverride{Date: base, EndDate: datePtr(mustDate(t, "2026-12-24")), IsClosed: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.override.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q", tt.wantErr)
			}
			if _, ok := err.(*ValidationError); !ok {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateWeek(t *testing.T) {
	if err := ValidateWeek(DefaultWeeklyHours()); err != nil {
		t.Fatalf("default week invalid: %v", err)
	}

	short := DefaultWeeklyHours()[:6]
	if err := ValidateWeek(short); err == nil {
		t.Fatalf("expected error for 6 entries")
	}

	dup := DefaultWeeklyHours()
	dup[0] = dup[1]
	if err := ValidateWeek(dup); err == nil {
		t.Fatalf("expected error for duplicate day")
	}

	closedWithTimes := DefaultWeeklyHours()
	closedWithTimes[0].OpenTime = clockPtr(9, 0)
	if err := ValidateWeek(closedWithTimes); err == nil {
		t.Fatalf("expected error for closed day with times")
	}
}

func TestDateOverridePast(t *testing.T) {
	today := mustDate(t, "2026-01-10")

	if !(DateOverride{Date: mustDate(t, "2026-01-09")}).Past(today) {
		t.Fatalf("yesterday's override should be past")
	}
	if (DateOverride{Date: mustDate(t, "2026-01-05"), EndDate: datePtr(mustDate(t, "2026-01-10"))}).Past(today) {
		t.Fatalf("range ending today is not past")
	}
	if (DateOverride{Date: mustDate(t, "2020-01-01"), IsRecurring: true}).Past(today) {
		t.Fatalf("recurring overrides never become past")
	}
}
