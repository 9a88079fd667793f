package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/docaccess-api/internal/models"
	"github.com/noah-isme/docaccess-api/pkg/jobs"
	"github.com/noah-isme/docaccess-api/pkg/mailer"
	"github.com/noah-isme/docaccess-api/pkg/markdown"
	"github.com/noah-isme/docaccess-api/pkg/retry"
)

const (
	subjectApproved = "Your document request has been approved"
	subjectRejected = "Your document request has been rejected"
)

var outcomeTemplate = template.Must(template.New("outcome").Parse(`<p>Your request for {{.DocumentID}} was {{.Status}}.</p>
{{- if .Remarks}}
<p>{{if .Approved}}Remarks{{else}}Reason{{end}}:</p>
{{.Remarks}}
{{- end}}
{{- if .DownloadURL}}
<p>You can download the file here (valid for 2 days): <a href="{{.DownloadURL}}">{{.DownloadURL}}</a></p>
<p>This link expires on {{.ExpiresAt}}.</p>
{{- end}}`))

type outcomeView struct {
	DocumentID  string
	Status      string
	Approved    bool
	Remarks     template.HTML
	DownloadURL string
	ExpiresAt   string
}

// Outcome is what a requester is told after a decision.
type Outcome struct {
	Request     *models.Request
	DownloadURL string
	ExpiresAt   time.Time
}

// NotificationService emails requesters about decisions. Delivery runs on its own queue
// and failures never reach the reviewer.
type NotificationService struct {
	sender   mailer.Sender
	renderer *markdown.Renderer
	retry    *retry.Executor
	queue    *jobs.Queue
	logger   *zap.Logger
	metrics  *MetricsService
	timeout  time.Duration
}

// NotificationConfig sizes the mail queue.
type NotificationConfig struct {
	Workers     int
	BufferSize  int
	SendTimeout time.Duration
}

// NewNotificationService wires the notifier and its queue.
func NewNotificationService(sender mailer.Sender, renderer *markdown.Renderer, executor *retry.Executor, cfg NotificationConfig, logger *zap.Logger, metrics *MetricsService) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = markdown.NewRenderer()
	}
	if executor == nil {
		executor = retry.New(retry.Config{Logger: logger})
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	s := &NotificationService{
		sender:   sender,
		renderer: renderer,
		retry:    executor,
		logger:   logger.Named("notifier"),
		metrics:  metrics,
		timeout:  cfg.SendTimeout,
	}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     s.logger,
	})
	return s
}

// Start launches the mail workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending mail until ctx expires.
func (s *NotificationService) Stop(ctx context.Context) {
	s.queue.Stop(ctx)
}

// NotifyOutcome queues the decision email for the requester.
func (s *NotificationService) NotifyOutcome(outcome Outcome) {
	if outcome.Request == nil {
		return
	}
	job := jobs.Job{ID: outcome.Request.ID, Type: "outcome", Payload: outcome}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("dropping outcome email", zap.String("request_id", outcome.Request.ID), zap.Error(err))
		s.metrics.RecordNotification(ResultDropped)
	}
}

// Compose builds the email for an outcome.
func (s *NotificationService) Compose(outcome Outcome) (mailer.Message, error) {
	req := outcome.Request
	approved := req.Status == models.RequestStatusApproved

	view := outcomeView{
		DocumentID: req.DocumentID,
		Status:     string(req.Status),
		Approved:   approved,
	}
	if strings.TrimSpace(req.DeanRemarks) != "" {
		rendered, err := s.renderer.Render(req.DeanRemarks)
		if err != nil {
			return mailer.Message{}, err
		}
		view.Remarks = template.HTML(rendered) //nolint:gosec // sanitized by the renderer policy
	}
	if approved && outcome.DownloadURL != "" {
		view.DownloadURL = outcome.DownloadURL
		view.ExpiresAt = outcome.ExpiresAt.UTC().Format(time.RFC1123)
	}

	var html bytes.Buffer
	if err := outcomeTemplate.Execute(&html, view); err != nil {
		return mailer.Message{}, fmt.Errorf("render outcome email: %w", err)
	}

	subject := subjectRejected
	if approved {
		subject = subjectApproved
	}
	return mailer.Message{
		To:        req.Requester.Email,
		Subject:   subject,
		HTMLBody:  html.String(),
		PlainBody: plainOutcome(req, view),
	}, nil
}

func plainOutcome(req *models.Request, view outcomeView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your request for %s was %s.\n", req.DocumentID, req.Status)
	if remarks := strings.TrimSpace(req.DeanRemarks); remarks != "" {
		label := "Reason"
		if view.Approved {
			label = "Remarks"
		}
		fmt.Fprintf(&b, "\n%s: %s\n", label, remarks)
	}
	if view.DownloadURL != "" {
		fmt.Fprintf(&b, "\nYou can download the file here (valid for 2 days):\n%s\nThis link expires on %s.\n", view.DownloadURL, view.ExpiresAt)
	}
	return b.String()
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	outcome, ok := job.Payload.(Outcome)
	if !ok {
		return fmt.Errorf("unsupported notification payload %T", job.Payload)
	}
	msg, err := s.Compose(outcome)
	if err != nil {
		s.logger.Error("outcome email not composed", zap.String("request_id", job.ID), zap.Error(err))
		s.metrics.RecordNotification(ResultFailure)
		return nil
	}

	err = retry.Run(ctx, s.retry, "notification.send", func(ctx context.Context) error {
		sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.sender.Send(sendCtx, msg)
	})
	if err != nil {
		s.logger.Error("outcome email not delivered",
			zap.String("request_id", job.ID),
			zap.String("status", string(outcome.Request.Status)),
			zap.Error(err),
		)
		s.metrics.RecordNotification(ResultFailure)
		return nil
	}
	s.logger.Info("outcome email sent", zap.String("request_id", job.ID), zap.String("status", string(outcome.Request.Status)))
	s.metrics.RecordNotification(ResultSuccess)
	return nil
}
