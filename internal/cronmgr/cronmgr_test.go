package cronmgr_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/pgjobs/goodjob/internal/cronmgr"
	"github.com/pgjobs/goodjob/internal/domain"
)

type fakeCronRepo struct {
	fired []string
	err   error
}

func (f *fakeCronRepo) InsertFiring(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.fired = append(f.fired, *job.CronKey)
	return job, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestRegister_RejectsInvalidExpression(t *testing.T) {
	m := cronmgr.New(&fakeCronRepo{}, testLogger(), time.Second)
	err := m.Register(cronmgr.Entry{
		Key:        "bad",
		Expression: "not a cron expression",
		Enabled:    true,
	}, time.Now())
	if err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
}

func TestRegister_AcceptsDescriptor(t *testing.T) {
	m := cronmgr.New(&fakeCronRepo{}, testLogger(), time.Second)
	err := m.Register(cronmgr.Entry{
		Key:        "hourly",
		Expression: "@hourly",
		Enabled:    true,
	}, time.Now())
	if err != nil {
		t.Fatalf("Register(@hourly): %v", err)
	}
}

func TestManager_FiresDueEntryOnScan(t *testing.T) {
	repo := &fakeCronRepo{}
	m := cronmgr.New(repo, testLogger(), time.Second)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := m.Register(cronmgr.Entry{
		Key:        "every-minute",
		Expression: "* * * * *",
		JobClass:   "EchoJob",
		QueueName:  "default",
		Enabled:    true,
	}, base); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	// Run is ticker-driven at 1s in this test; instead exercise scanAll's
	// effect indirectly isn't possible (unexported), so assert via a short
	// wait that at least one tick has had the chance to fire given enough
	// elapsed wall-clock minutes have passed since base. Since base is far
	// in the past relative to "now", the very first tick should fire it.
	time.Sleep(1200 * time.Millisecond)
	cancel()
	<-done

	if len(repo.fired) == 0 {
		t.Error("expected the due cron entry to have fired at least once")
	}
}

func TestManager_SkipsDisabledEntry(t *testing.T) {
	repo := &fakeCronRepo{}
	m := cronmgr.New(repo, testLogger(), 20*time.Millisecond)

	if err := m.Register(cronmgr.Entry{
		Key:        "disabled",
		Expression: "* * * * *",
		Enabled:    false,
	}, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()

	if len(repo.fired) != 0 {
		t.Errorf("expected a disabled entry to never fire, got %d firings", len(repo.fired))
	}
}

func TestRegister_AcceptsReboot(t *testing.T) {
	m := cronmgr.New(&fakeCronRepo{}, testLogger(), time.Second)
	err := m.Register(cronmgr.Entry{
		Key:        "on-boot",
		Expression: "@reboot",
		JobClass:   "EchoJob",
		QueueName:  "default",
		Enabled:    true,
	}, time.Now())
	if err != nil {
		t.Fatalf("Register(@reboot): %v", err)
	}
}

func TestManager_FiresRebootEntryOnceAtStartup(t *testing.T) {
	repo := &fakeCronRepo{}
	m := cronmgr.New(repo, testLogger(), 20*time.Millisecond)

	if err := m.Register(cronmgr.Entry{
		Key:        "on-boot",
		Expression: "@reboot",
		JobClass:   "EchoJob",
		QueueName:  "default",
		Enabled:    true,
	}, time.Now()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()
	<-done

	if len(repo.fired) != 1 {
		t.Errorf("expected exactly one reboot firing, got %d", len(repo.fired))
	}
}
