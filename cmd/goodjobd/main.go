// goodjobd is the worker process: it runs the Scheduler/Supervisor pools,
// the LISTEN/NOTIFY wake-up feed, the Cron Manager, the cleanup sweeps
// (Pruner/Lifeline), the Prometheus metrics server and the operator HTTP
// API, all under one signal-driven graceful shutdown. Grounded on the
// teacher's cmd/scheduler/main.go and cmd/server/main.go, merged into a
// single process the way spec.md §9 describes the worker as one
// "supervisor process [that] owns N worker goroutines" alongside its
// ambient HTTP surface.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pgjobs/goodjob/config"
	"github.com/pgjobs/goodjob/internal/advisory"
	"github.com/pgjobs/goodjob/internal/alert"
	"github.com/pgjobs/goodjob/internal/claim"
	"github.com/pgjobs/goodjob/internal/cleanup"
	"github.com/pgjobs/goodjob/internal/cronmgr"
	"github.com/pgjobs/goodjob/internal/executor"
	"github.com/pgjobs/goodjob/internal/health"
	"github.com/pgjobs/goodjob/internal/infrastructure/postgres"
	ctxlog "github.com/pgjobs/goodjob/internal/log"
	"github.com/pgjobs/goodjob/internal/limiter"
	"github.com/pgjobs/goodjob/internal/metrics"
	"github.com/pgjobs/goodjob/internal/notifier"
	"github.com/pgjobs/goodjob/internal/pause"
	"github.com/pgjobs/goodjob/internal/requestid"
	"github.com/pgjobs/goodjob/internal/supervisor"
	httptransport "github.com/pgjobs/goodjob/internal/transport/http"
	"github.com/pgjobs/goodjob/internal/transport/http/handler"

	"github.com/lmittmann/tint"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	logger.Info("db connected")

	processID := requestid.New()

	jobStore := postgres.NewJobStore(pool, logger)
	execStore := postgres.NewExecutionStore(pool)
	pauseStore := postgres.NewPauseStore(pool)
	cronStore := postgres.NewCronStore(pool, logger)

	adv := advisory.New(pool)
	lim := limiter.New(pool, jobStore, execStore)
	pauses := pause.New(pauseStore)

	registry := executor.NewRegistry()
	registerDemoHandlers(registry)

	alertSender := alert.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, cfg.AlertToEmail, logger)
	alerts := alert.NewNotifier(alertSender, logger)

	exec := executor.New(registry, jobStore, execStore, alerts, processID, executor.Config{
		MaxAttempts:    int32(cfg.MaxAttempts),
		DefaultTimeout: time.Duration(cfg.DefaultTimeoutSec) * time.Second,
	}, logger)

	claimSvc := claim.New(jobStore, adv, lim, pauses, registry, processID, logger)

	pollInterval := time.Duration(cfg.PollIntervalSec) * time.Second
	poolConfigs := supervisor.ParseQueues(cfg.Queues, cfg.MaxProcesses, pollInterval, 0)

	var notif *notifier.Notifier
	if cfg.EnableListenNotify {
		notif = notifier.New(cfg.DatabaseURL, logger)
		go func() {
			if err := notif.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("notifier stopped", "error", err)
			}
		}()
	}

	pools := make([]*supervisor.Pool, 0, len(poolConfigs))
	for _, pc := range poolConfigs {
		var wake <-chan notifier.Event
		if notif != nil {
			ch := make(chan notifier.Event, 16)
			wake = ch
			sub := notif.Subscribe(ctx)
			go forwardEvents(ctx, sub, ch)
		} else {
			wake = make(chan notifier.Event)
		}
		pools = append(pools, supervisor.NewPool(pc, claimSvc, exec, wake, logger))
	}
	sup := supervisor.New(pools, time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	go func() {
		if err := sup.Run(ctx); err != nil {
			logger.Error("supervisor stopped", "error", err)
		}
	}()

	if cfg.EnableCron {
		cronMgr := cronmgr.New(cronStore, logger, time.Second)
		go func() {
			if err := cronMgr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("cron manager stopped", "error", err)
			}
		}()
	}

	pruner := cleanup.NewPruner(jobStore, time.Duration(cfg.CleanupIntervalSec)*time.Second,
		time.Duration(cfg.CleanupPreservedJobsBeforeSec)*time.Second, 1000, logger)
	go func() {
		if err := pruner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("pruner stopped", "error", err)
		}
	}()

	lifeline := cleanup.NewLifeline(jobStore, adv, time.Duration(cfg.LifelineIntervalSec)*time.Second,
		time.Duration(cfg.LifelineStaleAfterSec)*time.Second, 1000, logger)
	go func() {
		if err := lifeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("lifeline stopped", "error", err)
		}
	}()

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	healthHandler := handler.NewHealthHandler(checker)
	statsHandler := handler.NewStatsHandler(jobStore)
	pauseHandler := handler.NewPauseHandler(pauses)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(healthHandler, statsHandler, pauseHandler, []byte(cfg.JWTSecret), logger),
	}
	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

	go func() {
		logger.Info("operator api started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("operator api", "error", err)
		}
	}()
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("operator api shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("goodjobd shut down")
}

// forwardEvents bridges the shared notifier subscription channel into a
// pool-scoped buffered channel, dropping events when the pool isn't
// keeping up rather than blocking the fan-out.
func forwardEvents(ctx context.Context, sub <-chan notifier.Event, out chan<- notifier.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			select {
			case out <- ev:
			default:
			}
		}
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
