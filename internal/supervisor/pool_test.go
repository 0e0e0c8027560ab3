package supervisor

import (
	"testing"

	"github.com/pgjobs/goodjob/internal/notifier"
)

func TestPool_Matches(t *testing.T) {
	unfiltered := &Pool{cfg: PoolConfig{Name: "all"}}
	if !unfiltered.matches(notifier.Event{QueueName: "anything"}) {
		t.Error("an unfiltered pool should react to every queue")
	}

	scoped := &Pool{cfg: PoolConfig{Name: "mailers", QueueNames: []string{"mailers"}}}
	if !scoped.matches(notifier.Event{QueueName: "mailers"}) {
		t.Error("expected scoped pool to match its own queue")
	}
	if scoped.matches(notifier.Event{QueueName: "default"}) {
		t.Error("expected scoped pool to ignore a queue it doesn't own")
	}
}
