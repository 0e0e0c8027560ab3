// Package repository defines the ports the rest of the system depends on,
// so that fetch/claim, the cron manager, cleanup and the operator API never
// import jackc/pgx directly — only internal/infrastructure/postgres does
// (teacher's "use case depends on interface, not concrete implementation"
// split between internal/repository and internal/infrastructure/postgres).
package repository

import (
	"context"
	"time"

	"github.com/pgjobs/goodjob/internal/domain"
)

// CandidateFilter narrows the Fetch & Claim candidate query (spec.md §4.2
// step 1) to a worker pool's configured queue names.
type CandidateFilter struct {
	QueueNames     []string
	ExcludedQueues []string // paused or statically excluded queue names
	ExcludedClasses []string
	Limit          int
}

// ExecutionClose carries the fields an outcome write closes the job's
// in-flight execution record with, so the Job Store can write both the
// execution-record update and the job-row update in one transaction
// (spec.md §4.5 step 6: "a single transaction that writes both the job-row
// update and the append-only execution record"). Nil means no execution
// record was opened for this attempt (e.g. a shutdown interrupt observed
// before the handler ever ran).
type ExecutionClose struct {
	ID         int64
	FinishedAt time.Time
	DurationMS int64
	Error      *string
	ErrorKind  *string
	StackTrace *string
}

// JobStore is the single writer of every good_jobs row (spec.md §4.1). All
// canonical query logic — including the priority/scheduled_at/created_at/id
// candidate ordering — lives behind this interface so every fetcher uses
// the same source of truth.
type JobStore interface {
	Enqueue(ctx context.Context, job *domain.Job) (*domain.Job, error)
	FindByID(ctx context.Context, id int64) (*domain.Job, error)
	FindByExternalID(ctx context.Context, externalJobID string) (*domain.Job, error)
	Delete(ctx context.Context, id int64) error

	// Candidates returns queued, unpaused, due jobs in canonical order
	// (priority ASC NULLS LAST, COALESCE(scheduled_at, created_at) ASC,
	// created_at ASC, id ASC), for the Fetch & Claim loop to lock in turn.
	Candidates(ctx context.Context, filter CandidateFilter) ([]*domain.Job, error)

	// Stamp marks a row performing after its advisory lock has been
	// acquired and re-confirmed still queued (spec.md §4.3 step 4).
	Stamp(ctx context.Context, id int64, lockedByID string, now time.Time) (*domain.Job, error)

	// Reload re-reads a single row, used to re-confirm a candidate is
	// still queued after winning its advisory lock race (spec.md §4.2
	// step 2).
	Reload(ctx context.Context, id int64) (*domain.Job, error)

	// PersistSuccess, PersistRetry, PersistTerminalFailure,
	// PersistCancelOrDiscard, PersistSnooze and PersistInterrupt implement
	// the outcome table in spec.md §4.5 step 6.
	// Each updates the row with `WHERE id = $1 AND finished_at IS NULL` so
	// a lifeline rescue racing a just-finished job can never win, and —
	// when exec is non-nil — closes the execution record in the same
	// transaction as the job-row update.
	PersistSuccess(ctx context.Context, id int64, payload []byte, now time.Time, exec *ExecutionClose) error
	PersistRetry(ctx context.Context, id int64, errMsg string, payload []byte, retryAt time.Time, exec *ExecutionClose) error
	PersistTerminalFailure(ctx context.Context, id int64, errMsg string, payload []byte, now time.Time, exec *ExecutionClose) error
	PersistCancelOrDiscard(ctx context.Context, id int64, errMsg string, now time.Time, exec *ExecutionClose) error
	PersistSnooze(ctx context.Context, id int64, delaySeconds int, now time.Time, exec *ExecutionClose) error
	PersistInterrupt(ctx context.Context, id int64, exec *ExecutionClose) error

	// RescueStale implements the lifeline sweep (spec.md §4.9): rows
	// performing with a stale locked_at whose advisory lock is no longer
	// held are returned to queued; executions_count is left unchanged.
	RescueStale(ctx context.Context, lockedBefore time.Time, isHeld func(ctx context.Context, jobID int64) (bool, error), limit int) (int, error)

	// Prune deletes finished rows older than olderThan, bounded by limit
	// per call (spec.md §4.9).
	Prune(ctx context.Context, olderThan time.Time, limit int) (int, error)

	// Stats returns per-queue, per-state counts for the operator API
	// (spec.md §6.5).
	Stats(ctx context.Context) ([]domain.StatsCount, error)

	// ConcurrencyCounts returns the enqueued and performing counts for a
	// concurrency key, used by the Concurrency Limiter (spec.md §4.6).
	ConcurrencyCounts(ctx context.Context, concurrencyKey string) (enqueued, performing int, err error)

	// ConcurrencyEnqueuedSince counts jobs with the given key enqueued
	// since since, for enqueue_throttle checks.
	ConcurrencyEnqueuedSince(ctx context.Context, concurrencyKey string, since time.Time) (int, error)
}

// PauseRepository backs the Pause Registry (spec.md §4.8).
type PauseRepository interface {
	Pause(ctx context.Context, targetKind, target string) error
	Resume(ctx context.Context, targetKind, target string) error
	PausedTargets(ctx context.Context) (queues, jobClasses []string, err error)
}

// ExecutionRepository is the append-only execution-record store
// (spec.md §3 "Execution record").
type ExecutionRepository interface {
	Open(ctx context.Context, e *domain.Execution) (*domain.Execution, error)
	Close(ctx context.Context, id int64, finishedAt time.Time, durationMS int64, errMsg, errKind, stackTrace *string) error
	ListByJobID(ctx context.Context, jobID int64) ([]*domain.Execution, error)
	// PerformedSince counts executions for a concurrency key within a
	// window, for perform_throttle checks (spec.md §4.6).
	PerformedSince(ctx context.Context, concurrencyKey string, since time.Time) (int, error)
}

// CronRepository lets the Cron Manager atomically insert a deduplicated
// firing (spec.md §4.7).
type CronRepository interface {
	// InsertFiring inserts a job row for (cronKey, cronAt), relying on the
	// unique (cron_key, cron_at) constraint for dedup. Returns
	// domain.ErrCronDuplicate if another process already fired it.
	InsertFiring(ctx context.Context, job *domain.Job) (*domain.Job, error)
}
