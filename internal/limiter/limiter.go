// Package limiter implements the Concurrency Limiter (spec.md §4.6): per
// concurrency-key enqueue/perform limits and sliding-window throttles,
// checked under a transaction-scoped advisory lock so counts never race.
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgjobs/goodjob/internal/advisory"
	"github.com/pgjobs/goodjob/internal/repository"
)

// Throttle is a sliding-window rate limit: at most Count events within
// Window.
type Throttle struct {
	Count  int
	Window time.Duration
}

// Config is one concurrency configuration, declared by a handler and keyed
// by its concurrency_key at enqueue/perform time (spec.md §4.6). A nil
// pointer/field means that particular limit is not enforced.
type Config struct {
	TotalLimit      *int
	EnqueueLimit    *int
	PerformLimit    *int
	EnqueueThrottle *Throttle
	PerformThrottle *Throttle
}

// Result is the outcome of a limiter check. Callers treat LimitExceeded and
// ThrottleExceeded differently from a fatal error: on enqueue they surface
// to the producer, on perform the claim loop (internal/claim) releases the
// job's advisory lock and skips it for that attempt, leaving the row queued
// (spec.md §4.6).
type Result string

const (
	ResultOK                Result = "ok"
	ResultLimitExceeded     Result = "limit_exceeded"
	ResultThrottleExceeded  Result = "throttle_exceeded"
	ResultLockFailed        Result = "lock_failed"
)

// Limiter serializes concurrency-key count checks against a shared
// transaction-scoped advisory lock (internal/advisory), then queries the
// job and execution stores for current counts.
type Limiter struct {
	pool      *pgxpool.Pool
	jobs      repository.JobStore
	executions repository.ExecutionRepository
}

func New(pool *pgxpool.Pool, jobs repository.JobStore, executions repository.ExecutionRepository) *Limiter {
	return &Limiter{pool: pool, jobs: jobs, executions: executions}
}

// CheckEnqueue validates total_limit, enqueue_limit and enqueue_throttle
// before a new job with concurrencyKey is inserted. The resolved open
// question (SPEC_FULL.md "Open Question decisions") is that limit checks
// run before throttle checks when both would reject.
func (l *Limiter) CheckEnqueue(ctx context.Context, concurrencyKey string, cfg Config, now time.Time) (Result, error) {
	return l.check(ctx, concurrencyKey, func(ctx context.Context) (Result, error) {
		enqueued, performing, err := l.jobs.ConcurrencyCounts(ctx, concurrencyKey)
		if err != nil {
			return "", fmt.Errorf("concurrency counts: %w", err)
		}

		if cfg.TotalLimit != nil && enqueued+performing >= *cfg.TotalLimit {
			return ResultLimitExceeded, nil
		}
		if cfg.EnqueueLimit != nil && enqueued >= *cfg.EnqueueLimit {
			return ResultLimitExceeded, nil
		}
		if cfg.EnqueueThrottle != nil {
			since := now.Add(-cfg.EnqueueThrottle.Window)
			count, err := l.jobs.ConcurrencyEnqueuedSince(ctx, concurrencyKey, since)
			if err != nil {
				return "", fmt.Errorf("enqueued since: %w", err)
			}
			if count >= cfg.EnqueueThrottle.Count {
				return ResultThrottleExceeded, nil
			}
		}
		return ResultOK, nil
	})
}

// CheckPerform validates total_limit, perform_limit and perform_throttle
// immediately before a claimed job is run (spec.md §4.3 step 3).
func (l *Limiter) CheckPerform(ctx context.Context, concurrencyKey string, cfg Config, now time.Time) (Result, error) {
	return l.check(ctx, concurrencyKey, func(ctx context.Context) (Result, error) {
		enqueued, performing, err := l.jobs.ConcurrencyCounts(ctx, concurrencyKey)
		if err != nil {
			return "", fmt.Errorf("concurrency counts: %w", err)
		}

		if cfg.TotalLimit != nil && enqueued+performing >= *cfg.TotalLimit {
			return ResultLimitExceeded, nil
		}
		if cfg.PerformLimit != nil && performing >= *cfg.PerformLimit {
			return ResultLimitExceeded, nil
		}
		if cfg.PerformThrottle != nil {
			since := now.Add(-cfg.PerformThrottle.Window)
			count, err := l.executions.PerformedSince(ctx, concurrencyKey, since)
			if err != nil {
				return "", fmt.Errorf("performed since: %w", err)
			}
			if count >= cfg.PerformThrottle.Count {
				return ResultThrottleExceeded, nil
			}
		}
		return ResultOK, nil
	})
}

// check opens a transaction solely to hold the concurrency key's advisory
// lock for the duration of fn, then rolls back — no writes happen here, the
// lock exists only to make the read-then-decide sequence atomic across
// concurrent callers (spec.md §4.6 "Checks run under a transaction-scoped
// advisory lock").
func (l *Limiter) check(ctx context.Context, concurrencyKey string, fn func(ctx context.Context) (Result, error)) (Result, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	key := advisory.ConcurrencyLockKey(concurrencyKey)
	acquired, err := advisory.TryAcquireTransaction(ctx, tx, key)
	if err != nil {
		return "", err
	}
	if !acquired {
		return ResultLockFailed, nil
	}

	return fn(ctx)
}
