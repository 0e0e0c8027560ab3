// Package executor implements the Executor & Retry Policy (spec.md §4.5):
// deserialize, run a registered handler with hooks, normalize its result
// into one of six outcomes, and persist that outcome and an append-only
// execution record atomically. Grounded on internal/scheduler/executor.go
// and worker.go from the teacher — an Executor struct carrying an injected
// *slog.Logger, a Run bounded by context.WithTimeout, and a retryDelay
// backoff function — generalized from "one outbound HTTP call" to "invoke
// a registered in-process handler".
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/pgjobs/goodjob/internal/alert"
	"github.com/pgjobs/goodjob/internal/claim"
	"github.com/pgjobs/goodjob/internal/domain"
	"github.com/pgjobs/goodjob/internal/repository"
	"github.com/pgjobs/goodjob/internal/wire"
)

// Config holds the process-wide defaults applied when a handler does not
// override them.
type Config struct {
	MaxAttempts    int32
	DefaultTimeout time.Duration
	DefaultBackoff BackoffPolicy
}

// Executor runs exactly one claimed job to completion (or interruption) and
// persists its outcome.
type Executor struct {
	registry   *Registry
	jobs       repository.JobStore
	executions repository.ExecutionRepository
	alerts     *alert.Notifier
	processID  string
	cfg        Config
	logger     *slog.Logger
}

func New(registry *Registry, jobs repository.JobStore, executions repository.ExecutionRepository, alerts *alert.Notifier, processID string, cfg Config, logger *slog.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Minute
	}
	if cfg.DefaultBackoff == nil {
		cfg.DefaultBackoff = DefaultBackoff
	}
	return &Executor{registry: registry, jobs: jobs, executions: executions, alerts: alerts, processID: processID, cfg: cfg, logger: logger}
}

// Run executes c.Job end to end. The returned error is non-nil only for
// infrastructure failures (e.g. the database write that persists the
// outcome); a job that fails its handler call still returns nil here, since
// that failure was successfully recorded.
func (x *Executor) Run(ctx context.Context, c *claim.Claimed) error {
	job := c.Job
	log := x.logger.With("job_id", job.ID, "job_class", job.JobClass, "queue_name", job.QueueName)

	// An interrupt (ctx already canceled by shutdown) never consumes a
	// retry attempt and is released, not persisted as a failure. No
	// execution record has been opened yet, so there is nothing to close.
	if ctx.Err() != nil {
		if err := x.jobs.PersistInterrupt(context.Background(), job.ID, nil); err != nil {
			log.Error("persist interrupt failed", "error", err)
		}
		return c.Lock.Release(context.Background())
	}

	handlerKey := wire.FromCanonical(job.JobClass)
	handler, ok := x.registry.Lookup(job.JobClass)
	if !ok {
		handler, ok = x.registry.Lookup(handlerKey)
	}
	if !ok {
		// An unresolvable handler can never succeed on any retry — fail
		// with a fatal (non-retryable) kind (spec.md §4.5 step 1).
		return x.finish(ctx, c, nil, &DiscardError{Reason: fmt.Sprintf("%s: %s", errUnknownHandler, job.JobClass)}, nil, 0)
	}

	payload, err := wire.Decode(job.Payload)
	if err != nil {
		return x.finish(ctx, c, handler, &DiscardError{Reason: fmt.Sprintf("decode payload: %s", err)}, nil, 0)
	}

	exec, err := x.executions.Open(ctx, &domain.Execution{
		JobID:     job.ID,
		ProcessID: x.processID,
		StartedAt: time.Now(),
	})
	if err != nil {
		log.Error("open execution record failed", "error", err)
	}

	timeout := x.cfg.DefaultTimeout
	if t, ok := handler.(Timeouter); ok {
		timeout = t.Timeout()
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	runErr := x.invoke(runCtx, handler, job, payload.Arguments)
	duration := time.Since(start)

	switch {
	case errors.Is(runErr, context.DeadlineExceeded):
		runErr = fmt.Errorf("%w: job exceeded %s timeout", errTimeout, timeout)
	case errors.Is(runErr, context.Canceled):
		// The outer context (not the per-job timeout) was canceled — this
		// is a shutdown mid-run, not a handler failure (spec.md §4.5
		// "Interrupt").
		runErr = &InterruptError{Reason: "worker shut down mid-run"}
	}

	if classifier, ok := handler.(DiscardClassifier); ok && runErr != nil {
		var k kind
		k, _, _ = classify(runErr)
		if k == kindError && classifier.IsDiscardable(runErr) {
			runErr = &DiscardError{Reason: runErr.Error()}
		}
	}

	if after, ok := handler.(AfterPerformer); ok {
		if hookErr := after.AfterPerform(ctx, job); hookErr != nil {
			log.Warn("after_perform hook failed", "error", hookErr)
		}
	}
	if runErr != nil {
		if eh, ok := handler.(ErrorHandler); ok {
			eh.OnError(ctx, job, runErr)
		}
	}

	return x.finish(ctx, c, handler, runErr, exec, duration)
}

func (x *Executor) invoke(ctx context.Context, h Handler, job *domain.Job, args []wire.Argument) (err error) {
	if before, ok := h.(BeforePerformer); ok {
		if err := before.BeforePerform(ctx, job); err != nil {
			return err
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v\n%s", r, debug.Stack())
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- h.Perform(ctx, job, args)
	}()

	select {
	case err = <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// executionClose builds the repository.ExecutionClose record that closes
// exec in the same transaction as the job-row outcome write (spec.md §4.5
// step 6), or nil if no execution record was ever opened for this attempt.
func executionClose(exec *domain.Execution, k kind, runErr error, finishedAt time.Time, duration time.Duration) *repository.ExecutionClose {
	if exec == nil {
		return nil
	}
	var errMsg, errKind *string
	if runErr != nil {
		msg := runErr.Error()
		errMsg = &msg
		ks := string(k)
		errKind = &ks
	}
	return &repository.ExecutionClose{
		ID:         exec.ID,
		FinishedAt: finishedAt,
		DurationMS: duration.Milliseconds(),
		Error:      errMsg,
		ErrorKind:  errKind,
	}
}

// bumpedPayload re-encodes rawPayload with its executions field set to
// executions, mirroring spec invariant 3: payload.executions must equal
// the executions_count column after every successful write.
func bumpedPayload(rawPayload []byte, executions int32) ([]byte, error) {
	p, err := wire.Decode(rawPayload)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	encoded, err := wire.Encode(p.WithExecutions(executions))
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return encoded, nil
}

// finish applies the outcome table of spec.md §4.5 step 6 and always
// releases the session advisory lock, even on infrastructure error, so a
// transient database blip never leaves a job locked forever.
func (x *Executor) finish(ctx context.Context, c *claim.Claimed, handler Handler, runErr error, exec *domain.Execution, duration time.Duration) error {
	job := c.Job
	now := time.Now()
	bg := context.Background()
	defer func() {
		if err := c.Lock.Release(bg); err != nil {
			x.logger.Error("release advisory lock failed", "job_id", job.ID, "error", err)
		}
	}()

	k, reason, snoozeSeconds := classify(runErr)
	execClose := executionClose(exec, k, runErr, now, duration)

	switch k {
	case kindOK:
		payload, err := bumpedPayload(job.Payload, job.ExecutionsCount)
		if err != nil {
			return fmt.Errorf("bump executions for success: %w", err)
		}
		return x.jobs.PersistSuccess(ctx, job.ID, payload, now, execClose)

	case kindInterrupt:
		// ctx is already canceled on this path (shutdown), so the write
		// must not run under it.
		return x.jobs.PersistInterrupt(bg, job.ID, execClose)

	case kindCancel, kindDiscard:
		if k == kindDiscard && x.alerts != nil {
			x.alerts.NotifyDiscard(ctx, job, reason)
		}
		return x.jobs.PersistCancelOrDiscard(ctx, job.ID, reason, now, execClose)

	case kindSnooze:
		return x.jobs.PersistSnooze(ctx, job.ID, snoozeSeconds, now, execClose)

	case kindError:
		if job.ExecutionsCount >= x.cfg.MaxAttempts {
			payload, err := bumpedPayload(job.Payload, job.ExecutionsCount)
			if err != nil {
				return fmt.Errorf("bump executions for terminal failure: %w", err)
			}
			if x.alerts != nil {
				x.alerts.NotifyDiscard(ctx, job, reason)
			}
			return x.jobs.PersistTerminalFailure(ctx, job.ID, reason, payload, now, execClose)
		}
		backoff := x.cfg.DefaultBackoff
		if bo, ok := handler.(Backoffer); ok {
			backoff = bo.Backoff()
		}
		retryAt := now.Add(backoff(int(job.ExecutionsCount)))
		payload, err := bumpedPayload(job.Payload, job.ExecutionsCount)
		if err != nil {
			return fmt.Errorf("bump executions for retry: %w", err)
		}
		return x.jobs.PersistRetry(ctx, job.ID, reason, payload, retryAt, execClose)

	default:
		payload, err := bumpedPayload(job.Payload, job.ExecutionsCount)
		if err != nil {
			return fmt.Errorf("bump executions for unrecognized outcome: %w", err)
		}
		return x.jobs.PersistTerminalFailure(ctx, job.ID, fmt.Sprintf("unrecognized outcome kind %q", k), payload, now, execClose)
	}
}

var errUnknownHandler = errors.New("unknown job handler")
var errTimeout = errors.New("timeout")
