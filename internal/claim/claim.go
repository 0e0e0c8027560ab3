// Package claim implements the Fetch & Claim protocol (spec.md §4.2,
// §4.3): candidate selection, per-candidate session advisory lock
// acquisition, a re-read guard against a race with another worker, a
// Concurrency Limiter check, and the final stamp. All four steps together
// must be observable as "no two workers ever complete the stamp for the
// same job concurrently" (spec.md §4.3).
package claim

import (
	"context"
	"log/slog"
	"time"

	"github.com/pgjobs/goodjob/internal/advisory"
	"github.com/pgjobs/goodjob/internal/domain"
	"github.com/pgjobs/goodjob/internal/limiter"
	"github.com/pgjobs/goodjob/internal/pause"
	"github.com/pgjobs/goodjob/internal/repository"
)

// ConcurrencyResolver lets the handler registry (internal/executor) tell
// the claim loop which concurrency configuration, if any, applies to a
// candidate job — concurrency_key is derived from a job's arguments by its
// handler, not stored as a static column (spec.md §4.6).
type ConcurrencyResolver interface {
	ResolveConcurrency(job *domain.Job) (key string, cfg limiter.Config, ok bool)
}

// Claimed is a successfully claimed job together with the session advisory
// lock held on its behalf. Whoever runs the job MUST release Lock exactly
// once when it finishes, regardless of outcome; internal/executor's Run
// does so.
type Claimed struct {
	Job  *domain.Job
	Lock *advisory.SessionLock
}

// Service runs one Fetch & Claim attempt for a pool of queue names.
type Service struct {
	jobs      repository.JobStore
	advisory  *advisory.Service
	limiter   *limiter.Limiter
	pauses    *pause.Registry
	resolver  ConcurrencyResolver
	processID string
	logger    *slog.Logger
}

func New(jobs repository.JobStore, adv *advisory.Service, lim *limiter.Limiter, pauses *pause.Registry, resolver ConcurrencyResolver, processID string, logger *slog.Logger) *Service {
	return &Service{jobs: jobs, advisory: adv, limiter: lim, pauses: pauses, resolver: resolver, processID: processID, logger: logger}
}

// FetchAndClaim attempts to claim up to one job from queueNames. It returns
// (nil, nil) if no candidate could be claimed this attempt — that is a
// normal outcome (an empty queue, universal lock contention, or every
// candidate blocked by its concurrency limiter), not an error.
func (s *Service) FetchAndClaim(ctx context.Context, queueNames, staticExcludedQueues []string, windowSize int) (*Claimed, error) {
	excludedQueues, err := s.pauses.PausedQueueNames(ctx)
	if err != nil {
		return nil, err
	}
	excludedQueues = append(excludedQueues, staticExcludedQueues...)
	excludedClasses, err := s.pauses.PausedJobClasses(ctx)
	if err != nil {
		return nil, err
	}

	candidates, err := s.jobs.Candidates(ctx, repository.CandidateFilter{
		QueueNames:      queueNames,
		ExcludedQueues:  excludedQueues,
		ExcludedClasses: excludedClasses,
		Limit:           windowSize,
	})
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		claimed, err := s.tryClaim(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if claimed != nil {
			return claimed, nil
		}
	}
	return nil, nil
}

func (s *Service) tryClaim(ctx context.Context, candidate *domain.Job) (*Claimed, error) {
	key := advisory.JobLockKey(candidate.ID)
	lock, acquired, err := s.advisory.TryAcquireSession(ctx, key)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, nil
	}

	// Re-read to confirm the row is still a candidate: another worker may
	// have claimed and even finished it between Candidates() and here.
	fresh, err := s.jobs.Reload(ctx, candidate.ID)
	if err != nil {
		_ = lock.Release(ctx)
		return nil, err
	}
	if !fresh.IsEligible(time.Now()) {
		_ = lock.Release(ctx)
		return nil, nil
	}

	if s.resolver != nil {
		if concurrencyKey, cfg, ok := s.resolver.ResolveConcurrency(fresh); ok {
			result, err := s.limiter.CheckPerform(ctx, concurrencyKey, cfg, time.Now())
			if err != nil {
				_ = lock.Release(ctx)
				return nil, err
			}
			if result != limiter.ResultOK {
				s.logger.Debug("claim blocked by concurrency limiter", "job_id", fresh.ID, "result", result)
				_ = lock.Release(ctx)
				return nil, nil
			}
		}
	}

	stamped, err := s.jobs.Stamp(ctx, fresh.ID, s.processID, time.Now())
	if err != nil {
		_ = lock.Release(ctx)
		if err == domain.ErrJobNotClaimable {
			return nil, nil
		}
		return nil, err
	}

	return &Claimed{Job: stamped, Lock: lock}, nil
}
