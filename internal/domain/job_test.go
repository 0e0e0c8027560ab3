package domain_test

import (
	"testing"
	"time"

	"github.com/pgjobs/goodjob/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestJobState(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name string
		job  domain.Job
		want domain.State
	}{
		{"freshly enqueued", domain.Job{}, domain.StateQueued},
		{"scheduled in the future", domain.Job{ScheduledAt: &future}, domain.StateScheduled},
		{"scheduled in the past is queued", domain.Job{ScheduledAt: &past}, domain.StateQueued},
		{
			"performing", domain.Job{PerformedAt: &past, LockedByID: ptr("worker-1")}, domain.StateRunning,
		},
		{
			"succeeded", domain.Job{FinishedAt: &past}, domain.StateSucceeded,
		},
		{
			"discarded", domain.Job{FinishedAt: &past, Error: ptr("boom")}, domain.StateDiscarded,
		},
		{
			"retried", domain.Job{RetriedFromID: ptr(int64(1))}, domain.StateRetried,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.job.State(now); got != c.want {
				t.Errorf("State() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestJobIsEligible(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	if !(&domain.Job{}).IsEligible(now) {
		t.Error("a fresh job should be eligible")
	}
	if (&domain.Job{ScheduledAt: &future}).IsEligible(now) {
		t.Error("a job scheduled in the future should not be eligible yet")
	}
	if !(&domain.Job{ScheduledAt: &past}).IsEligible(now) {
		t.Error("a job scheduled in the past should be eligible")
	}
	if (&domain.Job{FinishedAt: &past}).IsEligible(now) {
		t.Error("a finished job should never be eligible")
	}
	if (&domain.Job{PerformedAt: &past}).IsEligible(now) {
		t.Error("a performing job should not be eligible")
	}
}
