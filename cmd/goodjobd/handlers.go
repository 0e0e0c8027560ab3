package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pgjobs/goodjob/internal/domain"
	"github.com/pgjobs/goodjob/internal/executor"
	"github.com/pgjobs/goodjob/internal/wire"
)

// registerDemoHandlers populates the compile-time executor.Registry the
// embedding program supplies at startup (spec.md §9 "dynamic module
// resolution ... mapping ... populated at startup"). goodjobd ships a
// handful of demo handlers exercising each outcome class, the in-process
// analogue of the teacher's seeded httpbin webhook jobs
// (cmd/seed/main.go): one that always succeeds, one that fails until a
// retry count, one that deliberately overruns its timeout, and one that
// discards itself outright.
func registerDemoHandlers(r *executor.Registry) {
	r.Register("EchoJob", echoHandler{})
	r.Register("FlakyJob", flakyHandler{})
	r.Register("SlowJob", slowHandler{})
	r.Register("DiscardingJob", discardingHandler{})
}

type echoHandler struct{}

func (echoHandler) Perform(_ context.Context, _ *domain.Job, _ []wire.Argument) error {
	return nil
}

type flakyHandler struct{}

// Perform fails on the first two attempts and succeeds from the third,
// demonstrating the retry backoff path (spec.md §4.5).
func (flakyHandler) Perform(_ context.Context, job *domain.Job, _ []wire.Argument) error {
	if job.ExecutionsCount < 3 {
		return fmt.Errorf("transient failure on attempt %d", job.ExecutionsCount)
	}
	return nil
}

type slowHandler struct{}

// Timeout overrides the default job timeout to 1s so the demo job
// reliably overruns it and surfaces as a timeout-kind retry.
func (slowHandler) Timeout() time.Duration { return time.Second }

func (slowHandler) Perform(ctx context.Context, _ *domain.Job, _ []wire.Argument) error {
	select {
	case <-time.After(5 * time.Second):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type discardingHandler struct{}

func (discardingHandler) Perform(_ context.Context, _ *domain.Job, _ []wire.Argument) error {
	return &executor.DiscardError{Reason: "demo job always discards"}
}
