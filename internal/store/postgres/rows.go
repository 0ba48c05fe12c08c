package postgres

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"showroom/backend/internal/domain"
)

// sqlDate moves a calendar date through database/sql as YYYY-MM-DD so no
// session time zone can shift it.
type sqlDate string

func (d sqlDate) Value() (driver.Value, error) {
	return string(d), nil
}

func (d *sqlDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = sqlDate(v.Format("2006-01-02"))
	case string:
		*d = sqlDate(firstN(v, 10))
	case []byte:
		*d = sqlDate(firstN(string(v), 10))
	default:
		return fmt.Errorf("cannot scan %T into date", src)
	}
	return nil
}

type sqlClock string

func (c sqlClock) Value() (driver.Value, error) {
	return string(c), nil
}

func (c *sqlClock) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = ""
	case time.Time:
		*c = sqlClock(v.Format("15:04:05"))
	case string:
		*c = sqlClock(v)
	case []byte:
		*c = sqlClock(string(v))
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
	return nil
}

func firstN(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func toSQLDate(d domain.LocalDate) sqlDate {
	return sqlDate(d.String())
}

func toSQLDatePtr(d *domain.LocalDate) *sqlDate {
	if d == nil {
		return nil
	}
	v := toSQLDate(*d)
	return &v
}

func toSQLClock(t domain.LocalTime) sqlClock {
	return sqlClock(fmt.Sprintf("%02d:%02d:00", t.Hour, t.Minute))
}

func toSQLClockPtr(t *domain.LocalTime) *sqlClock {
	if t == nil {
		return nil
	}
	v := toSQLClock(*t)
	return &v
}

func (d sqlDate) local() (domain.LocalDate, error) {
	return domain.ParseDate(string(d))
}

func (c sqlClock) local() (domain.LocalTime, error) {
	return domain.ParseClock(string(c))
}

func localDatePtr(d *sqlDate) (*domain.LocalDate, error) {
	if d == nil || *d == "" {
		return nil, nil
	}
	v, err := d.local()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func localClockPtr(c *sqlClock) (*domain.LocalTime, error) {
	if c == nil || *c == "" {
		return nil, nil
	}
	v, err := c.local()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type weeklyHoursRow struct {
	bun.BaseModel `bun:"table:weekly_hours"`

	DayOfWeek int16     `bun:"day_of_week,pk"`
	IsOpen    bool      `bun:"is_open,notnull"`
	OpenTime  *sqlClock `bun:"open_time"`
	CloseTime *sqlClock `bun:"close_time"`
}

func weeklyRowFromDomain(e domain.WeeklyHoursEntry) weeklyHoursRow {
	return weeklyHoursRow{
		DayOfWeek: int16(e.DayOfWeek),
		IsOpen:    e.IsOpen,
		OpenTime:  toSQLClockPtr(e.OpenTime),
		CloseTime: toSQLClockPtr(e.CloseTime),
	}
}

func (r weeklyHoursRow) toDomain() (domain.WeeklyHoursEntry, error) {
	open, err := localClockPtr(r.OpenTime)
	if err != nil {
		return domain.WeeklyHoursEntry{}, err
	}
	closing, err := localClockPtr(r.CloseTime)
	if err != nil {
		return domain.WeeklyHoursEntry{}, err
	}
	return domain.WeeklyHoursEntry{
		DayOfWeek: time.Weekday(r.DayOfWeek),
		IsOpen:    r.IsOpen,
		OpenTime:  open,
		CloseTime: closing,
	}, nil
}

type dateOverrideRow struct {
	bun.BaseModel `bun:"table:date_overrides"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	Date          sqlDate   `bun:"date,notnull"`
	EndDate       *sqlDate  `bun:"end_date"`
	IsClosed      bool      `bun:"is_closed,notnull"`
	OpenTime      *sqlClock `bun:"open_time"`
	CloseTime     *sqlClock `bun:"close_time"`
	Reason        string    `bun:"reason,nullzero"`
	ShowOnWebsite bool      `bun:"show_on_website,notnull"`
	IsRecurring   bool      `bun:"is_recurring,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func (r *dateOverrideRow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

func overrideRowFromDomain(o domain.DateOverride) dateOverrideRow {
	return dateOverrideRow{
		ID:            o.ID,
		Date:          toSQLDate(o.Date),
		EndDate:       toSQLDatePtr(o.EndDate),
		IsClosed:      o.IsClosed,
		OpenTime:      toSQLClockPtr(o.OpenTime),
		CloseTime:     toSQLClockPtr(o.CloseTime),
		Reason:        o.Reason,
		ShowOnWebsite: o.ShowOnWebsite,
		IsRecurring:   o.IsRecurring,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func (r dateOverrideRow) toDomain() (domain.DateOverride, error) {
	d, err := r.Date.local()
	if err != nil {
		return domain.DateOverride{}, err
	}
	end, err := localDatePtr(r.EndDate)
	if err != nil {
		return domain.DateOverride{}, err
	}
	open, err := localClockPtr(r.OpenTime)
	if err != nil {
		return domain.DateOverride{}, err
	}
	closing, err := localClockPtr(r.CloseTime)
	if err != nil {
		return domain.DateOverride{}, err
	}
	return domain.DateOverride{
		ID:            r.ID,
		Date:          d,
		EndDate:       end,
		IsClosed:      r.IsClosed,
		OpenTime:      open,
		CloseTime:     closing,
		Reason:        r.Reason,
		ShowOnWebsite: r.ShowOnWebsite,
		IsRecurring:   r.IsRecurring,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

type appointmentRow struct {
	bun.BaseModel `bun:"table:appointments"`

	ID              uuid.UUID  `bun:"id,pk,type:uuid"`
	Date            sqlDate    `bun:"date,notnull"`
	StartTime       sqlClock   `bun:"start_time,notnull"`
	DurationMinutes int        `bun:"duration_minutes,notnull"`
	CustomerName    string     `bun:"customer_name,notnull"`
	CustomerEmail   string     `bun:"customer_email,notnull"`
	CustomerPhone   string     `bun:"customer_phone,nullzero"`
	Notes           string     `bun:"notes,nullzero"`
	Status          string     `bun:"status,notnull"`
	ReminderSentAt  *time.Time `bun:"reminder_sent_at"`
	CancelledAt     *time.Time `bun:"cancelled_at"`
	CreatedAt       time.Time  `bun:"created_at,notnull"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull"`
}

func (r *appointmentRow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

func appointmentRowFromDomain(a domain.Appointment) appointmentRow {
	return appointmentRow{
		ID:              a.ID,
		Date:            toSQLDate(a.Date),
		StartTime:       toSQLClock(a.StartTime),
		DurationMinutes: a.DurationMinutes,
		CustomerName:    a.Customer.Name,
		CustomerEmail:   a.Customer.Email,
		CustomerPhone:   a.Customer.Phone,
		Notes:           a.Notes,
		Status:          string(a.Status),
		ReminderSentAt:  a.ReminderSentAt,
		CancelledAt:     a.CancelledAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func (r appointmentRow) toDomain() (domain.Appointment, error) {
	d, err := r.Date.local()
	if err != nil {
		return domain.Appointment{}, err
	}
	start, err := r.StartTime.local()
	if err != nil {
		return domain.Appointment{}, err
	}
	st, err := domain.ParseStatus(r.Status)
	if err != nil {
		return domain.Appointment{}, err
	}
	return domain.Appointment{
		ID:              r.ID,
		Date:            d,
		StartTime:       start,
		DurationMinutes: r.DurationMinutes,
		Customer: domain.Customer{
			Name:  r.CustomerName,
			Email: r.CustomerEmail,
			Phone: r.CustomerPhone,
		},
		Notes:          r.Notes,
		Status:         st,
		ReminderSentAt: r.ReminderSentAt,
		CancelledAt:    r.CancelledAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func appointmentsToDomain(rows []appointmentRow) ([]domain.Appointment, error) {
	out := make([]domain.Appointment, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("appointment %s: %w", r.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}
