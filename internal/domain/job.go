// Package domain holds the central Job and execution-record types shared
// by every component. A Job's state is never stored as an enum column — it
// is always derived from timestamps, per the invariant that the database
// row is the single source of truth.
package domain

import (
	"errors"
	"time"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrDuplicateJob      = errors.New("job with this external id already exists")
	ErrCronDuplicate     = errors.New("cron firing already recorded")
	ErrJobNotClaimable   = errors.New("job is no longer claimable")
)

// State is the derived classification of a Job, computed from its
// timestamp and ownership columns. It is never persisted.
type State string

const (
	StateScheduled State = "scheduled"
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateDiscarded State = "discarded"
	StateRetried   State = "retried"
)

// Job is the single central entity: one row per enqueueable work item,
// backed by the good_jobs table.
type Job struct {
	ID             int64
	ExternalJobID  string // UUID, distinct from ID, used for cross-language interop
	JobClass       string // canonical "Namespace::Name" wire form
	QueueName      string
	Priority       *int32 // smaller = more urgent; NULL sorts last
	Payload        []byte // self-describing wire payload, see internal/wire

	ScheduledAt *time.Time
	PerformedAt *time.Time
	FinishedAt  *time.Time

	LockedByID *string
	LockedAt   *time.Time

	ExecutionsCount int32
	Error           *string

	ConcurrencyKey *string
	Labels         []string

	CronKey *string
	CronAt  *time.Time

	BatchID       *string
	RetriedFromID *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// State computes the derived classification from spec invariant 1.
func (j *Job) State(now time.Time) State {
	switch {
	case j.FinishedAt == nil && j.RetriedFromID != nil:
		return StateRetried
	case j.FinishedAt != nil && j.Error == nil:
		return StateSucceeded
	case j.FinishedAt != nil && j.Error != nil:
		return StateDiscarded
	case j.FinishedAt == nil && j.ScheduledAt != nil && j.ScheduledAt.After(now):
		return StateScheduled
	case j.FinishedAt == nil && j.PerformedAt != nil && j.LockedByID != nil:
		return StateRunning
	default:
		return StateQueued
	}
}

// IsEligible reports whether the row is currently a fetch candidate:
// unfinished, unlocked, and due.
func (j *Job) IsEligible(now time.Time) bool {
	return j.FinishedAt == nil &&
		j.PerformedAt == nil &&
		(j.ScheduledAt == nil || !j.ScheduledAt.After(now))
}

// Execution is the append-only history row opened when a job is claimed and
// closed when it finishes: job reference, timing, error, stack trace,
// process id.
type Execution struct {
	ID         int64
	JobID      int64
	ProcessID  string
	StartedAt  time.Time
	FinishedAt *time.Time
	DurationMS *int64
	Error      *string
	ErrorKind  *string
	StackTrace *string
}

// StatsCount is a per-queue, per-state row returned by the Job Store's
// stats query, backing the operator "stats()" interface (spec.md §6.5).
type StatsCount struct {
	QueueName string
	State     State
	Count     int64
}
