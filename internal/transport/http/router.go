// Package http wires the operator API's gin routes (spec.md §6.5).
// Grounded on the teacher's internal/transport/http/router.go: a gin.Engine
// with slog-gin request logging, the requestid/metrics middleware applied
// globally, and mutating routes gated behind a dedicated auth group.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/pgjobs/goodjob/internal/transport/http/handler"
	"github.com/pgjobs/goodjob/internal/transport/http/middleware"
)

// NewRouter assembles the operator API. jwtKey gates every mutating route;
// health and stats stay open for unauthenticated infra probes.
func NewRouter(
	health *handler.HealthHandler,
	stats *handler.StatsHandler,
	pauses *handler.PauseHandler,
	jwtKey []byte,
	logger *slog.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(sloggin.New(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())

	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/stats", stats.Stats)

	operator := r.Group("/", middleware.Auth(jwtKey))
	{
		operator.POST("/queues/:name/pause", pauses.PauseQueue)
		operator.POST("/queues/:name/resume", pauses.ResumeQueue)
		operator.POST("/job-classes/:name/pause", pauses.PauseJobClass)
		operator.POST("/job-classes/:name/resume", pauses.ResumeJobClass)
	}

	return r
}
