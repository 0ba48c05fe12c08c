package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioSMS struct {
	api  messageCreator
	from string
	log  *slog.Logger
}

func NewTwilioSMS(cfg TwilioConfig, log *slog.Logger) *TwilioSMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioSMS(client.Api, cfg.From, log)
}

func newTwilioSMS(api messageCreator, from string, log *slog.Logger) *TwilioSMS {
	if log == nil {
		log = slog.Default()
	}
	return &TwilioSMS{api: api, from: from, log: log.With(slog.String("component", "notify.twilio"))}
}

func (s *TwilioSMS) SendSMS(ctx context.Context, to, body string) error {
	if to == "" {
		return errors.New("sms recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return err
	}
	if resp != nil && resp.Sid != nil {
		s.log.Debug("sms sent", slog.String("sid", *resp.Sid))
	}
	return nil
}
