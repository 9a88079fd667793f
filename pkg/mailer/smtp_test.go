package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type recordingDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *recordingDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestSMTPMailerSend(t *testing.T) {
	d := &recordingDialer{}
	m := &SMTPMailer{from: "noreply@example.edu", fromName: "Library", dialer: d}

	err := m.Send(context.Background(), Message{
		To:        "student@example.edu",
		Subject:   "Your document request has been approved",
		PlainBody: "plain",
		HTMLBody:  "<p>html</p>",
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	assert.Equal(t, []string{"student@example.edu"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Your document request has been approved"}, d.sent[0].GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = d.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/html")
}

func TestSMTPMailerSendErrors(t *testing.T) {
	d := &recordingDialer{err: errors.New("connection refused")}
	m := &SMTPMailer{from: "noreply@example.edu", dialer: d}

	err := m.Send(context.Background(), Message{To: "a@b.co", Subject: "s", PlainBody: "p"})
	require.ErrorContains(t, err, "connection refused")

	err = m.Send(context.Background(), Message{Subject: "s"})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Send(ctx, Message{To: "a@b.co"}), context.Canceled)
}

type stalledDialer struct {
	release chan struct{}
}

func (d *stalledDialer) DialAndSend(m ...*gomail.Message) error {
	<-d.release
	return nil
}

func TestSMTPMailerSendHonoursDeadline(t *testing.T) {
	d := &stalledDialer{release: make(chan struct{})}
	defer close(d.release)
	m := &SMTPMailer{from: "noreply@example.edu", dialer: d}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := m.Send(ctx, Message{To: "a@b.co", Subject: "s", PlainBody: "p"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
