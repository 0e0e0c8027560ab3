package executor

import (
	"context"
	"time"

	"github.com/pgjobs/goodjob/internal/domain"
	"github.com/pgjobs/goodjob/internal/limiter"
	"github.com/pgjobs/goodjob/internal/wire"
)

// Handler is implemented by embedding-program code registered against a
// job_class (spec.md §6.4 "external_jobs" — "dynamic module resolution ...
// mapping ... populated at startup"). A nil error means ok; the special
// error types in outcome.go signal cancel/discard/snooze/interrupt.
type Handler interface {
	Perform(ctx context.Context, job *domain.Job, args []wire.Argument) error
}

// BeforePerformer, AfterPerformer and ErrorHandler are optional hooks
// (spec.md §4.5 steps 2, 5).
type BeforePerformer interface {
	BeforePerform(ctx context.Context, job *domain.Job) error
}

type AfterPerformer interface {
	AfterPerform(ctx context.Context, job *domain.Job) error
}

type ErrorHandler interface {
	OnError(ctx context.Context, job *domain.Job, err error)
}

// Timeouter overrides the default per-job timeout (spec.md §4.5 step 3).
type Timeouter interface {
	Timeout() time.Duration
}

// Backoffer overrides the default backoff policy (spec.md §4.5 "Backoff").
type Backoffer interface {
	Backoff() BackoffPolicy
}

// DiscardClassifier maps specific error classes to a forced discard
// regardless of attempts remaining (spec.md §4.5 "Discard classification").
type DiscardClassifier interface {
	IsDiscardable(err error) bool
}

// ConcurrencyKeyer derives a concurrency_key and its limiter configuration
// from decoded arguments (spec.md §4.6: "derived from arguments by the
// handler").
type ConcurrencyKeyer interface {
	ConcurrencyKey(args []wire.Argument) (key string, cfg limiter.Config, ok bool)
}

// Registry maps a canonical job_class to its Handler, populated once at
// startup by the embedding program.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(jobClass string, h Handler) {
	r.handlers[jobClass] = h
}

func (r *Registry) Lookup(jobClass string) (Handler, bool) {
	h, ok := r.handlers[jobClass]
	return h, ok
}

// ResolveConcurrency implements internal/claim.ConcurrencyResolver: it
// decodes a candidate job's payload and asks its handler (if it implements
// ConcurrencyKeyer) for a concurrency key.
func (r *Registry) ResolveConcurrency(job *domain.Job) (string, limiter.Config, bool) {
	h, ok := r.handlers[job.JobClass]
	if !ok {
		return "", limiter.Config{}, false
	}
	keyer, ok := h.(ConcurrencyKeyer)
	if !ok {
		return "", limiter.Config{}, false
	}
	payload, err := wire.Decode(job.Payload)
	if err != nil {
		return "", limiter.Config{}, false
	}
	return keyer.ConcurrencyKey(payload.Arguments)
}
