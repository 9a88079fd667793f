package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docaccess-api/internal/models"
	"github.com/noah-isme/docaccess-api/pkg/mailer"
)

type senderStub struct {
	mu    sync.Mutex
	sent  []mailer.Message
	calls int
	err   error
}

func (s *senderStub) Send(ctx context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *senderStub) messages() []mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mailer.Message(nil), s.sent...)
}

func resolvedRequest(status models.RequestStatus, remarks string) *models.Request {
	return &models.Request{
		ID:          "req-1",
		DocumentID:  "2025-0001",
		Requester:   models.Requester{Email: "a@gmail.com"},
		Status:      status,
		DeanRemarks: remarks,
	}
}

func TestNotificationComposeApproved(t *testing.T) {
	svc := NewNotificationService(&senderStub{}, nil, fastRetry(), NotificationConfig{}, nil, nil)
	expires := time.Date(2025, 5, 3, 8, 0, 0, 0, time.UTC)

	msg, err := svc.Compose(Outcome{
		Request:     resolvedRequest(models.RequestStatusApproved, "Chapters **1-2** only <script>x()</script>"),
		DownloadURL: "https://bucket.s3.amazonaws.com/approved-requests/req-1.pdf?X-Amz-Signature=abc&X-Amz-Expires=172800",
		ExpiresAt:   expires,
	})
	require.NoError(t, err)

	assert.Equal(t, "a@gmail.com", msg.To)
	assert.Equal(t, "Your document request has been approved", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Your request for 2025-0001 was approved.")
	assert.Contains(t, msg.HTMLBody, "<strong>1-2</strong>")
	assert.NotContains(t, msg.HTMLBody, "<script>")
	assert.Contains(t, msg.HTMLBody, "valid for 2 days")
	assert.Contains(t, msg.HTMLBody, "X-Amz-Signature=abc&amp;X-Amz-Expires=172800")
	assert.Contains(t, msg.PlainBody, "Remarks: Chapters **1-2** only")
	assert.Contains(t, msg.PlainBody, expires.Format(time.RFC1123))
}

func TestNotificationComposeRejectedHasNoLink(t *testing.T) {
	svc := NewNotificationService(&senderStub{}, nil, fastRetry(), NotificationConfig{}, nil, nil)

	msg, err := svc.Compose(Outcome{
		Request:     resolvedRequest(models.RequestStatusRejected, "Out of scope"),
		DownloadURL: "https://should-not-appear",
	})
	require.NoError(t, err)
	assert.Equal(t, "Your document request has been rejected", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Reason:")
	assert.NotContains(t, msg.HTMLBody, "should-not-appear")
	assert.NotContains(t, msg.PlainBody, "download")
}

func TestNotificationDeliversThroughQueue(t *testing.T) {
	sender := &senderStub{}
	svc := NewNotificationService(sender, nil, fastRetry(), NotificationConfig{Workers: 1}, nil, NewMetricsService())
	svc.Start(context.Background())

	svc.NotifyOutcome(Outcome{Request: resolvedRequest(models.RequestStatusRejected, "")})
	svc.Stop(context.Background())

	require.Len(t, sender.messages(), 1)
}

func TestNotificationFailuresAreSwallowed(t *testing.T) {
	sender := &senderStub{err: errors.New("smtp down")}
	svc := NewNotificationService(sender, nil, fastRetry(), NotificationConfig{Workers: 1}, nil, nil)
	svc.Start(context.Background())

	svc.NotifyOutcome(Outcome{Request: resolvedRequest(models.RequestStatusApproved, "ok")})
	svc.Stop(context.Background())

	assert.Equal(t, 3, sender.calls)
	assert.Empty(t, sender.messages())
}
