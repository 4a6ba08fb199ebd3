// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"

	"github.com/samber/oops"
	"gopkg.in/gomail.v2"

	"github.com/holomush/tasktrack/internal/auth"
)

// mailDialer is satisfied by *gomail.Dialer.
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig holds SMTP server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends plain-text email through an SMTP server.
type SMTPNotifier struct {
	from   string
	dialer mailDialer
}

var _ auth.Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier creates an SMTPNotifier. From defaults to Username.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").
			With("host", cfg.Host).
			With("port", cfg.Port).
			Errorf("smtp host and port are required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	if from == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("smtp sender address is required")
	}
	return newSMTPNotifier(from, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)), nil
}

func newSMTPNotifier(from string, dialer mailDialer) *SMTPNotifier {
	return &SMTPNotifier{from: from, dialer: dialer}
}

// Send delivers msg. gomail has no context support, so cancellation is only
// honored before dialing.
func (n *SMTPNotifier) Send(ctx context.Context, msg auth.Message) error {
	if err := ctx.Err(); err != nil {
		return sendFailed(KindSMTP, msg, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return sendFailed(KindSMTP, msg, err)
	}
	return nil
}
