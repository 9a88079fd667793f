// Package mailer delivers outbound email over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/noah-isme/docaccess-api/pkg/config"
)

// Message is one outbound email with plain and HTML alternatives.
type Message struct {
	To        string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Sender is implemented by SMTP and test doubles.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends messages with a gomail dialer.
type SMTPMailer struct {
	from     string
	fromName string
	dialer   dialer
}

// NewSMTPMailer builds a mailer from configuration.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.InsecureSkipVerify {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for local relays
	}
	return &SMTPMailer{from: cfg.FromAddress, fromName: cfg.FromName, dialer: d}
}

// Send delivers msg and returns when it is sent or ctx is done. gomail sets no read or
// write deadline, so a stalled relay is abandoned on ctx expiry and its goroutine exits
// whenever the connection finally fails.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("mailer: recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	if m.fromName != "" {
		gm.SetAddressHeader("From", m.from, m.fromName)
	} else {
		gm.SetHeader("From", m.from)
	}
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.PlainBody)
	if msg.HTMLBody != "" {
		gm.AddAlternative("text/html", msg.HTMLBody)
	}

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(gm) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email: %w", ctx.Err())
	}
}
