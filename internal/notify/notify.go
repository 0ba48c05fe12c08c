// Package notify delivers customer notifications. Email is the primary
// channel; SMS is an optional companion for reminders.
package notify

import "context"

const (
	TemplateBookingConfirmation = "booking-confirmation"
	TemplateBookingCancelled    = "booking-cancelled"
	TemplateAppointmentReminder = "appointment-reminder"
)

type Template struct {
	Name  string
	Props map[string]any
}

type Recipient struct {
	Name  string
	Email string
}

type Mailer interface {
	SendEmail(ctx context.Context, tpl Template, to Recipient) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}
