package executor

import (
	"context"
	"testing"

	"github.com/pgjobs/goodjob/internal/domain"
	"github.com/pgjobs/goodjob/internal/limiter"
	"github.com/pgjobs/goodjob/internal/wire"
)

type noopHandler struct{}

func (noopHandler) Perform(context.Context, *domain.Job, []wire.Argument) error { return nil }

type keyedHandler struct{ key string }

func (keyedHandler) Perform(context.Context, *domain.Job, []wire.Argument) error { return nil }

func (h keyedHandler) ConcurrencyKey(args []wire.Argument) (string, limiter.Config, bool) {
	return h.key, limiter.Config{}, true
}

func TestRegistry_LookupMissingJobClass(t *testing.T) {
	r := NewRegistry()
	r.Register("EchoJob", noopHandler{})

	if _, ok := r.Lookup("SomethingElse"); ok {
		t.Fatal("expected Lookup to report not-found for an unregistered class")
	}
	if _, ok := r.Lookup("EchoJob"); !ok {
		t.Fatal("expected Lookup to find a registered class")
	}
}

func TestRegistry_ResolveConcurrency(t *testing.T) {
	r := NewRegistry()
	r.Register("Billing::ChargeCard", keyedHandler{key: "account-1"})
	r.Register("EchoJob", noopHandler{})

	payload, err := wire.Encode(&wire.Payload{JobClass: "Billing::ChargeCard"})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	job := &domain.Job{JobClass: "Billing::ChargeCard", Payload: payload}
	key, _, ok := r.ResolveConcurrency(job)
	if !ok || key != "account-1" {
		t.Fatalf("expected concurrency key account-1, got %q ok=%v", key, ok)
	}

	noKeyJob := &domain.Job{JobClass: "EchoJob", Payload: payload}
	if _, _, ok := r.ResolveConcurrency(noKeyJob); ok {
		t.Fatal("expected no concurrency key for a handler that doesn't implement ConcurrencyKeyer")
	}
}
