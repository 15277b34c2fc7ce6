// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

// Package mail delivers transactional email over SMTP.
package mail

import (
	"context"
	"html/template"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	gomail "github.com/wneessen/go-mail"
)

const (
	// DefaultPort is the SMTP submission port used when none is configured.
	DefaultPort = 587

	// sendMaxRetries bounds delivery attempts for a single message.
	sendMaxRetries = 3

	// sendBaseDelay seeds the fibonacci backoff between attempts.
	sendBaseDelay = 500 * time.Millisecond
)

var resetTemplate = template.Must(template.New("reset").Parse(`<p>Hi {{.Username}},</p>
<p>Someone requested a password reset for your account. If this was you,
follow the link below. The link expires in 10 minutes.</p>
<p><a href="{{.Link}}">reset password</a></p>
<p>If you did not request this, you can safely ignore this email.</p>
`))

// smtpSender abstracts the SMTP client so delivery can be faked in tests.
type smtpSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the sender address for all outgoing mail.
	From string
}

// Mailer sends account email over SMTP with bounded retry. It implements
// auth.Notifier.
type Mailer struct {
	client smtpSender
	from   string
}

// NewMailer creates a Mailer from cfg. Authentication is enabled only when
// a username is configured, so local development against an open relay
// (mailpit, mailhog) works without credentials.
func NewMailer(cfg Config) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("from address is required")
	}

	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	opts := []gomail.Option{
		gomail.WithPort(port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("host", cfg.Host).Wrap(err)
	}

	return &Mailer{client: client, from: cfg.From}, nil
}

// SendResetEmail delivers a password-reset email containing resetLink.
// Transient SMTP failures are retried with fibonacci backoff before the
// error is surfaced to the caller.
func (m *Mailer) SendResetEmail(ctx context.Context, to, resetLink, username string) error {
	body, err := renderResetBody(resetLink, username)
	if err != nil {
		return oops.Code("MAIL_COMPOSE_FAILED").With("to", to).Wrap(err)
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return oops.Code("MAIL_COMPOSE_FAILED").With("from", m.from).Wrap(err)
	}
	if err := msg.To(to); err != nil {
		return oops.Code("MAIL_COMPOSE_FAILED").With("to", to).Wrap(err)
	}
	msg.Subject("Reset your password")
	msg.SetBodyString(gomail.TypeTextHTML, body)

	backoff := retry.WithMaxRetries(sendMaxRetries, retry.NewFibonacci(sendBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("to", to).Wrap(err)
	}
	return nil
}

func renderResetBody(link, username string) (string, error) {
	var b strings.Builder
	err := resetTemplate.Execute(&b, struct {
		Username string
		Link     string
	}{Username: username, Link: link})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
