package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pgjobs/goodjob/internal/domain"
	"github.com/pgjobs/goodjob/internal/repository"
	"github.com/pgjobs/goodjob/internal/transport/http/handler"
)

// fakeJobStore embeds the repository.JobStore interface (nil) so only the
// methods a given test exercises need overriding; any other call panics
// loudly rather than silently doing the wrong thing.
type fakeJobStore struct {
	repository.JobStore
	stats func(ctx context.Context) ([]domain.StatsCount, error)
}

func (f *fakeJobStore) Stats(ctx context.Context) ([]domain.StatsCount, error) {
	return f.stats(ctx)
}

func TestStatsHandler_ReturnsPerQueueCounts(t *testing.T) {
	store := &fakeJobStore{
		stats: func(ctx context.Context) ([]domain.StatsCount, error) {
			return []domain.StatsCount{
				{QueueName: "default", State: domain.StateQueued, Count: 3},
				{QueueName: "mailers", State: domain.StateRunning, Count: 1},
			}, nil
		},
	}
	h := handler.NewStatsHandler(store)

	r := gin.New()
	r.GET("/stats", h.Stats)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{`"queue_name":"default"`, `"state":"queued"`, `"count":3`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got: %s", want, body)
		}
	}
}
