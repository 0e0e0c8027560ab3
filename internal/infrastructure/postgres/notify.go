package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgjobs/goodjob/internal/domain"
	"github.com/pgjobs/goodjob/internal/notifier"
	"github.com/pgjobs/goodjob/internal/wire"
)

// publishEnqueueNotification issues pg_notify on the good_job channel right
// after a row lands, so the Notifier (internal/notifier) can wake
// schedulers without waiting out their poll interval (spec.md §4.4, §6.3).
// It honors good_job_notify = false in the payload, and a failure here is
// logged, never returned: a missed NOTIFY degrades to the poll interval,
// which spec.md §4.4 already treats as the normal fallback, not a
// correctness issue.
func publishEnqueueNotification(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, job *domain.Job) {
	payload, err := wire.Decode(job.Payload)
	if err != nil {
		logger.Warn("notify: decode payload failed", "job_id", job.ID, "error", err)
		return
	}
	if payload.Notify != nil && !*payload.Notify {
		return
	}

	ev := notifier.Event{QueueName: job.QueueName}
	if job.ScheduledAt != nil && job.ScheduledAt.After(time.Now()) {
		ev.ScheduledAt = job.ScheduledAt
	}

	body, err := json.Marshal(ev)
	if err != nil {
		logger.Warn("notify: marshal event failed", "job_id", job.ID, "error", err)
		return
	}
	if _, err := pool.Exec(ctx, `SELECT pg_notify($1, $2)`, notifier.Channel, string(body)); err != nil {
		logger.Warn("notify: pg_notify failed", "job_id", job.ID, "error", err)
	}
}
