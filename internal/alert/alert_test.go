package alert_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/pgjobs/goodjob/internal/alert"
	"github.com/pgjobs/goodjob/internal/domain"
)

type fakeSender struct {
	subject, body string
	err           error
}

func (s *fakeSender) Send(_ context.Context, subject, body string) error {
	s.subject, s.body = subject, body
	return s.err
}

func TestNewSender_PicksLogSenderOutsideProduction(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	s := alert.NewSender("development", "some-key", "from@x.com", "to@x.com", logger)
	if _, ok := s.(*alert.LogSender); !ok {
		t.Errorf("expected *LogSender outside production, got %T", s)
	}
}

func TestNewSender_PicksLogSenderWhenNoAPIKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	s := alert.NewSender("production", "", "from@x.com", "to@x.com", logger)
	if _, ok := s.(*alert.LogSender); !ok {
		t.Errorf("expected *LogSender when no API key is configured, got %T", s)
	}
}

func TestNewSender_PicksResendSenderInProductionWithKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	s := alert.NewSender("production", "re_123", "from@x.com", "to@x.com", logger)
	if _, ok := s.(*alert.ResendSender); !ok {
		t.Errorf("expected *ResendSender in production with an API key, got %T", s)
	}
}

func TestNotifier_NotifyDiscard_FormatsJobDetails(t *testing.T) {
	sender := &fakeSender{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	n := alert.NewNotifier(sender, logger)

	job := &domain.Job{
		ID:              42,
		ExternalJobID:   "ext-abc",
		JobClass:        "Billing::ChargeCard",
		QueueName:       "mailers",
		ExecutionsCount: 3,
	}
	n.NotifyDiscard(context.Background(), job, "too many retries")

	if !strings.Contains(sender.subject, "Billing::ChargeCard") || !strings.Contains(sender.subject, "mailers") {
		t.Errorf("subject = %q, want it to mention the job class and queue", sender.subject)
	}
	if !strings.Contains(sender.body, "ext-abc") || !strings.Contains(sender.body, "too many retries") {
		t.Errorf("body = %q, want it to mention the external id and reason", sender.body)
	}
}

func TestNotifier_NotifyDiscard_SwallowsSendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("resend api down")}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	n := alert.NewNotifier(sender, logger)

	job := &domain.Job{ID: 1, JobClass: "EchoJob", QueueName: "default"}

	// Must not panic or otherwise propagate the send failure: a failed
	// alert can never block the job outcome it is reporting on.
	n.NotifyDiscard(context.Background(), job, "boom")
}
