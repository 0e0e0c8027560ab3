// Package cronmgr implements the Cron Manager (spec.md §4.7): statically
// registered cron entries, fired exactly once per scheduled instant across
// every cooperating process via a database unique-constraint dedup. Grounded
// on internal/scheduler/dispatcher.go's ticker-driven ClaimAndFire loop,
// generalized from per-user HTTP-fired schedules to compile-time entries.
package cronmgr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/pgjobs/goodjob/internal/domain"
	"github.com/pgjobs/goodjob/internal/repository"
)

// Entry is one statically registered cron firing (spec.md §4.7): a key used
// for cross-process dedup, a standard or descriptor cron expression, the
// job to enqueue, and an optional fixed payload.
type Entry struct {
	Key        string
	Expression string
	JobClass   string
	QueueName  string
	Priority   *int32
	Payload    []byte
	Enabled    bool

	schedule cron.Schedule
	lastScan time.Time
	reboot   bool
}

// rebootExpression is the one nickname spec.md §4.7 requires that robfig's
// cron.Descriptor rejects outright (it has no fixed schedule to parse), so
// it is special-cased: fired once when Run starts, never scanned again.
const rebootExpression = "@reboot"

// parser accepts both standard 5-field crontab expressions and descriptors
// (@yearly, @monthly, @weekly, @daily, @hourly, @every <duration>), per
// spec.md §4.7.
var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Manager polls each entry's schedule once per tick and fires any instants
// that have elapsed since the last tick, skipping missed runs rather than
// bursting (the teacher's dispatcher.go "skip missed runs" behavior).
type Manager struct {
	repo    repository.CronRepository
	logger  *slog.Logger
	entries []*Entry
	tick    time.Duration
}

func New(repo repository.CronRepository, logger *slog.Logger, tick time.Duration) *Manager {
	return &Manager{repo: repo, logger: logger, tick: tick}
}

// Register parses e.Expression and adds it to the manager. Returns an error
// if the expression is invalid, since a bad cron string is a configuration
// mistake the operator should see at startup, not silently skip.
func (m *Manager) Register(e Entry, now time.Time) error {
	if e.Expression == rebootExpression {
		e.reboot = true
		e.lastScan = now
		m.entries = append(m.entries, &e)
		return nil
	}
	sched, err := parser.Parse(e.Expression)
	if err != nil {
		return fmt.Errorf("parse cron expression %q for %q: %w", e.Expression, e.Key, err)
	}
	e.schedule = sched
	e.lastScan = now
	m.entries = append(m.entries, &e)
	return nil
}

// Run fires every @reboot entry once, then ticks every m.tick firing any
// entry whose schedule produced an instant in (lastScan, now].
func (m *Manager) Run(ctx context.Context) error {
	m.fireReboots(ctx, time.Now())

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.scanAll(ctx, now)
		}
	}
}

// fireReboots fires each enabled @reboot entry exactly once, at process
// startup. It never runs again: @reboot entries are excluded from scanAll.
func (m *Manager) fireReboots(ctx context.Context, now time.Time) {
	for _, e := range m.entries {
		if !e.reboot || !e.Enabled {
			continue
		}
		if err := m.fire(ctx, e, now); err != nil {
			if err == domain.ErrCronDuplicate {
				m.logger.Debug("reboot firing already recorded by another process", "cron_key", e.Key)
				continue
			}
			m.logger.Error("reboot firing failed", "cron_key", e.Key, "error", err)
		}
	}
}

func (m *Manager) scanAll(ctx context.Context, now time.Time) {
	for _, e := range m.entries {
		if !e.Enabled || e.reboot {
			continue
		}
		next := e.schedule.Next(e.lastScan)
		if next.After(now) {
			continue
		}
		e.lastScan = now
		if err := m.fire(ctx, e, next); err != nil {
			if err == domain.ErrCronDuplicate {
				m.logger.Debug("cron firing already recorded by another process", "cron_key", e.Key, "cron_at", next)
				continue
			}
			m.logger.Error("cron firing failed", "cron_key", e.Key, "error", err)
		}
	}
}

func (m *Manager) fire(ctx context.Context, e *Entry, firingAt time.Time) error {
	job := &domain.Job{
		ExternalJobID: uuid.NewString(),
		JobClass:      e.JobClass,
		QueueName:     e.QueueName,
		Priority:      e.Priority,
		Payload:       e.Payload,
		CronKey:       &e.Key,
		CronAt:        &firingAt,
	}
	_, err := m.repo.InsertFiring(ctx, job)
	return err
}
