// Package alert sends an operational notification when a job is
// permanently discarded. This is an (expansion) repurposing of the
// teacher's internal/email package — same Sender interface and
// LogSender/ResendSender split, swapped from "email a user a magic link"
// to "email an operator a discard alert" — since the teacher's
// github.com/resend/resend-go/v2 dependency has no other home in this
// domain.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"github.com/pgjobs/goodjob/internal/domain"
)

// Sender delivers a single discard alert. LogSender and ResendSender are
// the two implementations; which one is wired is an operator deployment
// choice, following the teacher's internal/email.NewSender switch.
type Sender interface {
	Send(ctx context.Context, subject, body string) error
}

// LogSender writes the alert to the structured logger instead of sending
// email, for local development (teacher's internal/email.LogSender).
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, subject, body string) error {
	s.logger.Info("job discard alert", "subject", subject, "body", body)
	return nil
}

// ResendSender delivers through the Resend transactional email API
// (teacher's internal/email.ResendSender).
type ResendSender struct {
	client *resend.Client
	from   string
	to     string
}

func NewResendSender(apiKey, from, to string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from, to: to}
}

func (s *ResendSender) Send(ctx context.Context, subject, body string) error {
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{s.to},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("send discard alert: %w", err)
	}
	return nil
}

// NewSender picks ResendSender only when env is "production" and an API key
// is configured; every other environment, staging included, gets
// LogSender. Mirrors the teacher's internal/email.NewSender.
func NewSender(env, apiKey, from, to string, logger *slog.Logger) Sender {
	if env == "production" && apiKey != "" {
		return NewResendSender(apiKey, from, to)
	}
	return NewLogSender(logger)
}

// Notifier wraps a Sender with discard-specific formatting.
type Notifier struct {
	sender Sender
	logger *slog.Logger
}

func NewNotifier(sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

// NotifyDiscard sends an alert for a job that will never run again. Errors
// are logged, not returned — a failed alert must never block the job
// outcome it is reporting on.
func (n *Notifier) NotifyDiscard(ctx context.Context, job *domain.Job, reason string) {
	subject := fmt.Sprintf("job discarded: %s (queue %s)", job.JobClass, job.QueueName)
	body := fmt.Sprintf("job_id=%d external_job_id=%s executions_count=%d reason=%s",
		job.ID, job.ExternalJobID, job.ExecutionsCount, reason)
	if err := n.sender.Send(ctx, subject, body); err != nil {
		n.logger.Error("discard alert send failed", "job_id", job.ID, "error", err)
	}
}
