package cleanup_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/pgjobs/goodjob/internal/cleanup"
	"github.com/pgjobs/goodjob/internal/repository"
)

type fakeJobStore struct {
	repository.JobStore
	pruneCalls    chan time.Time
	rescueCalls   chan time.Time
	pruneResult   int
	rescueResult  int
}

func (f *fakeJobStore) Prune(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	f.pruneCalls <- olderThan
	return f.pruneResult, nil
}

func (f *fakeJobStore) RescueStale(ctx context.Context, lockedBefore time.Time, isHeld func(context.Context, int64) (bool, error), limit int) (int, error) {
	f.rescueCalls <- lockedBefore
	return f.rescueResult, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestPruner_DeletesOnEachTick(t *testing.T) {
	store := &fakeJobStore{pruneCalls: make(chan time.Time, 1), pruneResult: 5}
	p := cleanup.NewPruner(store, 10*time.Millisecond, time.Hour, 100, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	select {
	case <-store.pruneCalls:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a prune pass")
	}
	cancel()
}

func TestLifeline_RescuesOnEachTick(t *testing.T) {
	store := &fakeJobStore{rescueCalls: make(chan time.Time, 1), rescueResult: 2}
	// advisory is nil: isHeld is only invoked through RescueStale's callback,
	// which this fake never calls, so a real *advisory.Service isn't needed.
	l := cleanup.NewLifeline(store, nil, 10*time.Millisecond, 5*time.Minute, 100, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)

	select {
	case <-store.rescueCalls:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a lifeline pass")
	}
	cancel()
}
