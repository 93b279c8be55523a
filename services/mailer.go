package services

import (
	"context"
	"fmt"

	"ratemylandlord-server/config"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	logger zerolog.Logger
}

func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With().Str("component", "mailer").Logger()}
}

func (m *LogMailer) Send(_ context.Context, to, subject, html string) error {
	m.logger.Info().Str("to", to).Str("subject", subject).Str("body", html).Msg("mail not delivered, SMTP is not configured")
	return nil
}

// NewMailer picks SMTP delivery when a host is configured.
func NewMailer(cfg config.SMTPConfig, logger zerolog.Logger) Mailer {
	if cfg.Host == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg)
}
