package http_test

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pgjobs/goodjob/internal/domain"
	"github.com/pgjobs/goodjob/internal/health"
	"github.com/pgjobs/goodjob/internal/pause"
	"github.com/pgjobs/goodjob/internal/repository"
	goodjobhttp "github.com/pgjobs/goodjob/internal/transport/http"
	"github.com/pgjobs/goodjob/internal/transport/http/handler"
)

const routerTestKey = "router-test-secret-key-32-chars!"

type fakePinger struct{}

func (fakePinger) Ping(ctx context.Context) error { return nil }

type fakeJobStore struct {
	repository.JobStore
}

func (fakeJobStore) Stats(ctx context.Context) ([]domain.StatsCount, error) {
	return []domain.StatsCount{{QueueName: "default", State: domain.StateQueued, Count: 1}}, nil
}

type fakePauseRepo struct{}

func (fakePauseRepo) Pause(ctx context.Context, targetKind, target string) error { return nil }
func (fakePauseRepo) Resume(ctx context.Context, targetKind, target string) error { return nil }
func (fakePauseRepo) PausedTargets(ctx context.Context) ([]string, []string, error) {
	return nil, nil, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	checker := health.NewChecker(fakePinger{}, logger, prometheus.NewRegistry())

	healthHandler := handler.NewHealthHandler(checker)
	statsHandler := handler.NewStatsHandler(fakeJobStore{})
	pauseHandler := handler.NewPauseHandler(pause.New(fakePauseRepo{}))

	return goodjobhttp.NewRouter(healthHandler, statsHandler, pauseHandler, []byte(routerTestKey), logger)
}

func operatorToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "operator",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(routerTestKey))
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return s
}

func TestRouter_OpenRoutesRequireNoAuth(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/healthz", "/readyz", "/stats"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)
		if w.Code != 200 {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}
}

func TestRouter_PauseRouteRejectsWithoutToken(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/queues/mailers/pause", nil)
	r.ServeHTTP(w, req)

	if w.Code != 401 {
		t.Errorf("status = %d, want 401 without a bearer token", w.Code)
	}
}

func TestRouter_PauseRouteAcceptsValidOperatorToken(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/queues/mailers/pause", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t))
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Errorf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
}
