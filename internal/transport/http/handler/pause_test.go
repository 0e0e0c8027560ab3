package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pgjobs/goodjob/internal/pause"
	"github.com/pgjobs/goodjob/internal/transport/http/handler"
)

type fakePauseRepo struct {
	pause  func(ctx context.Context, targetKind, target string) error
	resume func(ctx context.Context, targetKind, target string) error
}

func (r *fakePauseRepo) Pause(ctx context.Context, targetKind, target string) error {
	return r.pause(ctx, targetKind, target)
}

func (r *fakePauseRepo) Resume(ctx context.Context, targetKind, target string) error {
	return r.resume(ctx, targetKind, target)
}

func (r *fakePauseRepo) PausedTargets(ctx context.Context) ([]string, []string, error) {
	return nil, nil, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestPauseHandler_PauseQueue(t *testing.T) {
	var capturedKind, capturedTarget string
	repo := &fakePauseRepo{
		pause: func(_ context.Context, kind, target string) error {
			capturedKind, capturedTarget = kind, target
			return nil
		},
	}
	h := handler.NewPauseHandler(pause.New(repo))

	r := gin.New()
	r.POST("/queues/:name/pause", h.PauseQueue)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/queues/mailers/pause", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if capturedKind != "queue" || capturedTarget != "mailers" {
		t.Errorf("expected Pause(queue, mailers), got Pause(%q, %q)", capturedKind, capturedTarget)
	}
}

func TestPauseHandler_MissingTarget(t *testing.T) {
	repo := &fakePauseRepo{}
	h := handler.NewPauseHandler(pause.New(repo))

	r := gin.New()
	r.POST("/job-classes/:name/resume", h.ResumeJobClass)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/job-classes//resume", nil)
	r.ServeHTTP(w, req)

	if w.Code == http.StatusOK {
		t.Fatal("expected a non-200 status for an empty target name")
	}
}
