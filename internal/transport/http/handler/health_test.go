package handler_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pgjobs/goodjob/internal/health"
	"github.com/pgjobs/goodjob/internal/transport/http/handler"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newTestChecker(pingErr error) *health.Checker {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return health.NewChecker(fakePinger{err: pingErr}, logger, prometheus.NewRegistry())
}

func TestHealthHandler_Liveness_AlwaysUp(t *testing.T) {
	h := handler.NewHealthHandler(newTestChecker(errors.New("db down")))

	r := gin.New()
	r.GET("/healthz", h.Liveness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 regardless of dependency health", w.Code)
	}
}

func TestHealthHandler_Readiness_ReflectsDependencyFailure(t *testing.T) {
	h := handler.NewHealthHandler(newTestChecker(errors.New("db down")))

	r := gin.New()
	r.GET("/readyz", h.Readiness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when postgres is unreachable", w.Code)
	}
}

func TestHealthHandler_Readiness_OKWhenHealthy(t *testing.T) {
	h := handler.NewHealthHandler(newTestChecker(nil))

	r := gin.New()
	r.GET("/readyz", h.Readiness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when postgres is reachable", w.Code)
	}
}
