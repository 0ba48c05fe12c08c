package notify

import (
	"context"
	"log/slog"
)

// LogMailer records emails in the log instead of sending them. It is used
// when no mail provider is configured.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	if log == nil {
		log = slog.Default()
	}
	return &LogMailer{log: log.With(slog.String("component", "notify.log_mailer"))}
}

func (m *LogMailer) SendEmail(ctx context.Context, tpl Template, to Recipient) error {
	m.log.Info("email not sent, no provider configured",
		slog.String("template", tpl.Name),
		slog.String("to", to.Email),
	)
	return nil
}
