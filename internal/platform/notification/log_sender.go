package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LogEmailSender writes emails to the log instead of delivering them. Used
// until a real provider is wired; keeps the notification path exercised in
// development deployments.
type LogEmailSender struct {
	logger zerolog.Logger
}

func NewLogEmailSender(logger zerolog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger.With().Str("component", "email").Logger()}
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("email dispatched")
	return nil
}

// LogSMSSender is the SMS counterpart of LogEmailSender.
type LogSMSSender struct {
	logger zerolog.Logger
}

func NewLogSMSSender(logger zerolog.Logger) *LogSMSSender {
	return &LogSMSSender{logger: logger.With().Str("component", "sms").Logger()}
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info().Str("to", to).Str("body", body).Msg("sms dispatched")
	return nil
}
