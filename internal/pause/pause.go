// Package pause implements the Pause Registry (spec.md §4.8): a cached
// front for the good_job_settings table so the Fetch & Claim hot path
// (internal/claim) doesn't hit the database on every candidate query.
// Grounded on miken90-goclaw's internal/store/pg PGCronStore, which caches
// its job list with a short TTL to reduce DB polling pressure from a
// frequently-consulted table.
package pause

import (
	"context"
	"sync"
	"time"

	"github.com/pgjobs/goodjob/internal/repository"
)

const defaultTTL = 5 * time.Second

// Registry wraps repository.PauseRepository with a short-TTL cache of the
// paused queue/job-class sets.
type Registry struct {
	repo repository.PauseRepository
	ttl  time.Duration

	mu         sync.RWMutex
	queues     map[string]struct{}
	jobClasses map[string]struct{}
	loadedAt   time.Time
}

func New(repo repository.PauseRepository) *Registry {
	return &Registry{repo: repo, ttl: defaultTTL}
}

func (r *Registry) Pause(ctx context.Context, targetKind, target string) error {
	if err := r.repo.Pause(ctx, targetKind, target); err != nil {
		return err
	}
	r.invalidate()
	return nil
}

func (r *Registry) Resume(ctx context.Context, targetKind, target string) error {
	if err := r.repo.Resume(ctx, targetKind, target); err != nil {
		return err
	}
	r.invalidate()
	return nil
}

func (r *Registry) invalidate() {
	r.mu.Lock()
	r.loadedAt = time.Time{}
	r.mu.Unlock()
}

// IsQueuePaused reports whether queueName is currently paused, refreshing
// the cache if it is older than the TTL.
func (r *Registry) IsQueuePaused(ctx context.Context, queueName string) (bool, error) {
	queues, _, err := r.snapshot(ctx)
	if err != nil {
		return false, err
	}
	_, paused := queues[queueName]
	return paused, nil
}

// IsJobClassPaused reports whether jobClass is currently paused.
func (r *Registry) IsJobClassPaused(ctx context.Context, jobClass string) (bool, error) {
	_, jobClasses, err := r.snapshot(ctx)
	if err != nil {
		return false, err
	}
	_, paused := jobClasses[jobClass]
	return paused, nil
}

// PausedQueueNames returns every currently-paused queue name, for the
// Fetch & Claim candidate query's exclusion filter (spec.md §4.3 step 1).
func (r *Registry) PausedQueueNames(ctx context.Context) ([]string, error) {
	queues, _, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(queues))
	for q := range queues {
		names = append(names, q)
	}
	return names, nil
}

// PausedJobClasses returns every currently-paused job class.
func (r *Registry) PausedJobClasses(ctx context.Context) ([]string, error) {
	_, jobClasses, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(jobClasses))
	for c := range jobClasses {
		names = append(names, c)
	}
	return names, nil
}

func (r *Registry) snapshot(ctx context.Context) (map[string]struct{}, map[string]struct{}, error) {
	r.mu.RLock()
	fresh := time.Since(r.loadedAt) < r.ttl
	queues, jobClasses := r.queues, r.jobClasses
	r.mu.RUnlock()
	if fresh {
		return queues, jobClasses, nil
	}

	queueList, classList, err := r.repo.PausedTargets(ctx)
	if err != nil {
		return nil, nil, err
	}

	queueSet := make(map[string]struct{}, len(queueList))
	for _, q := range queueList {
		queueSet[q] = struct{}{}
	}
	classSet := make(map[string]struct{}, len(classList))
	for _, c := range classList {
		classSet[c] = struct{}{}
	}

	r.mu.Lock()
	r.queues, r.jobClasses, r.loadedAt = queueSet, classSet, time.Now()
	r.mu.Unlock()

	return queueSet, classSet, nil
}
