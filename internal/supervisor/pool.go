// Package supervisor implements the scheduler/worker pool (spec.md §4.3,
// §9). Grounded on internal/scheduler/worker.go's Start/processBatch/runJob
// shape — a ticker plus sync.WaitGroup fan-out per batch — generalized to
// also wake on the notifier's fan-out channel and to run N independently
// configured pools, one per queue-name group parsed from the `queues`
// configuration string (spec.md §6.4).
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pgjobs/goodjob/internal/claim"
	"github.com/pgjobs/goodjob/internal/executor"
	"github.com/pgjobs/goodjob/internal/notifier"
)

// PoolConfig describes one queue group: its member queue names and how
// aggressively to work them.
type PoolConfig struct {
	Name           string
	QueueNames     []string
	ExcludedQueues []string // "-name" entries in the queues spec string
	Concurrency    int
	PollInterval   time.Duration
	FetchWindow    int // candidate window size, spec.md §4.3 step 1 ("typically 2-5x" concurrency)
}

// Pool runs one queue group's fetch loop with up to Concurrency jobs
// in flight at a time.
type Pool struct {
	cfg      PoolConfig
	claimer  *claim.Service
	executor *executor.Executor
	wake     <-chan notifier.Event
	logger   *slog.Logger
}

func NewPool(cfg PoolConfig, claimer *claim.Service, exec *executor.Executor, wake <-chan notifier.Event, logger *slog.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.FetchWindow <= 0 {
		cfg.FetchWindow = cfg.Concurrency * 3
	}
	return &Pool{cfg: cfg, claimer: claimer, executor: exec, wake: wake, logger: logger.With("pool", cfg.Name)}
}

// Run drives the fetch loop until ctx is canceled, then waits (bounded by
// shutdownTimeout) for in-flight runs to return before returning itself.
// In-flight jobs are not given shutdownTimeout to complete: ctx is the
// parent of every job's run context, so canceling it interrupts each
// running handler at once, and internal/executor returns those jobs to
// queued without consuming a retry. The wait covers only that interrupt
// bookkeeping; a run still going when shutdownTimeout elapses is left
// running and Run returns without it.
func (p *Pool) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return p.drain(&wg, shutdownTimeout)
		case <-ticker.C:
			p.fillSlots(ctx, sem, &wg)
		case ev := <-p.wake:
			if p.matches(ev) {
				p.fillSlots(ctx, sem, &wg)
			}
		}
	}
}

// matches reports whether a notifier event is relevant to this pool: an
// unfiltered ("*") pool reacts to everything, otherwise only to its own
// member queues.
func (p *Pool) matches(ev notifier.Event) bool {
	if len(p.cfg.QueueNames) == 0 {
		return true
	}
	for _, name := range p.cfg.QueueNames {
		if name == ev.QueueName {
			return true
		}
	}
	return false
}

// fillSlots claims and starts as many jobs as there are currently free
// concurrency slots, without blocking if none can be claimed.
func (p *Pool) fillSlots(ctx context.Context, sem chan struct{}, wg *sync.WaitGroup) {
	for {
		select {
		case sem <- struct{}{}:
		default:
			return // pool at full concurrency
		}

		claimed, err := p.claimer.FetchAndClaim(ctx, p.cfg.QueueNames, p.cfg.ExcludedQueues, p.cfg.FetchWindow)
		if err != nil {
			p.logger.Error("fetch and claim failed", "error", err)
			<-sem
			return
		}
		if claimed == nil {
			<-sem
			return // no eligible candidate this attempt
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := p.executor.Run(ctx, claimed); err != nil {
				p.logger.Error("job run failed", "job_id", claimed.Job.ID, "error", err)
			}
		}()
	}
}

func (p *Pool) drain(wg *sync.WaitGroup, timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		p.logger.Warn("shutdown timeout reached with jobs still in flight, interrupting")
		return nil
	}
}

// Supervisor owns every queue-group Pool in the process.
type Supervisor struct {
	pools           []*Pool
	shutdownTimeout time.Duration
}

func New(pools []*Pool, shutdownTimeout time.Duration) *Supervisor {
	return &Supervisor{pools: pools, shutdownTimeout: shutdownTimeout}
}

// Run starts every pool and blocks until ctx is canceled and all pools have
// drained (or the shutdown timeout elapses).
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, pool := range s.pools {
		wg.Add(1)
		go func(p *Pool) {
			defer wg.Done()
			if err := p.Run(ctx, s.shutdownTimeout); err != nil && err != context.Canceled {
				p.logger.Error("pool stopped", "error", err)
			}
		}(pool)
	}
	wg.Wait()
	return nil
}
