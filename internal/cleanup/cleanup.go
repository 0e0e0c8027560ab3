// Package cleanup implements the Pruner and Lifeline (spec.md §4.9).
// Grounded on internal/scheduler/reaper.go from the teacher, which runs a
// single ticker calling RescheduleStale/FailStale; here the two spec-named
// responsibilities are split into their own tickers, and the lifeline check
// consults the advisory-lock catalogue instead of trusting a heartbeat
// timestamp alone.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/pgjobs/goodjob/internal/advisory"
	"github.com/pgjobs/goodjob/internal/repository"
)

// Pruner periodically deletes finished rows older than MaxAge, bounded to
// BatchLimit rows per pass so a large backlog never holds one long
// transaction.
type Pruner struct {
	jobs       repository.JobStore
	interval   time.Duration
	maxAge     time.Duration
	batchLimit int
	logger     *slog.Logger
}

func NewPruner(jobs repository.JobStore, interval, maxAge time.Duration, batchLimit int, logger *slog.Logger) *Pruner {
	return &Pruner{jobs: jobs, interval: interval, maxAge: maxAge, batchLimit: batchLimit, logger: logger}
}

func (p *Pruner) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			deleted, err := p.jobs.Prune(ctx, time.Now().Add(-p.maxAge), p.batchLimit)
			if err != nil {
				p.logger.Error("prune pass failed", "error", err)
				continue
			}
			if deleted > 0 {
				p.logger.Info("pruned finished jobs", "count", deleted)
			}
		}
	}
}

// Lifeline periodically rescues rows marked performing whose locked_at is
// older than StaleAfter and whose advisory lock the database no longer
// shows held — the worker that held it is gone, so the row is released
// back to queued with executions_count left unchanged, so the crashed
// attempt stays counted (spec.md §4.9, and the resolved
// Open Question: performed_at must be cleared on rescue).
type Lifeline struct {
	jobs       repository.JobStore
	advisory   *advisory.Service
	interval   time.Duration
	staleAfter time.Duration
	batchLimit int
	logger     *slog.Logger
}

func NewLifeline(jobs repository.JobStore, adv *advisory.Service, interval, staleAfter time.Duration, batchLimit int, logger *slog.Logger) *Lifeline {
	return &Lifeline{jobs: jobs, advisory: adv, interval: interval, staleAfter: staleAfter, batchLimit: batchLimit, logger: logger}
}

func (l *Lifeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rescued, err := l.jobs.RescueStale(ctx, time.Now().Add(-l.staleAfter), l.isHeld, l.batchLimit)
			if err != nil {
				l.logger.Error("lifeline pass failed", "error", err)
				continue
			}
			if rescued > 0 {
				l.logger.Info("lifeline rescued stale jobs", "count", rescued)
			}
		}
	}
}

func (l *Lifeline) isHeld(ctx context.Context, jobID int64) (bool, error) {
	return l.advisory.Held(ctx, advisory.JobLockKey(jobID))
}
