package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgjobs/goodjob/internal/domain"
	"github.com/pgjobs/goodjob/internal/repository"
)

// CronStore inserts cron firings, relying on the unique (cron_key, cron_at)
// constraint to deduplicate across every cooperating process — the same
// pattern as the teacher's schedule_repo.go ClaimAndFire, minus the
// claim-and-advance step since cron scheduling here is computed in-process
// by robfig/cron rather than read back from a schedules table.
type CronStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewCronStore(pool *pgxpool.Pool, logger *slog.Logger) *CronStore {
	return &CronStore{pool: pool, logger: logger}
}

var _ repository.CronRepository = (*CronStore)(nil)

func (s *CronStore) InsertFiring(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	query := `
		INSERT INTO good_jobs (
			external_job_id, job_class, queue_name, priority, payload,
			scheduled_at, concurrency_key, labels, cron_key, cron_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + jobColumns

	row := s.pool.QueryRow(ctx, query,
		job.ExternalJobID, job.JobClass, job.QueueName, job.Priority, job.Payload,
		job.ScheduledAt, job.ConcurrencyKey, job.Labels, job.CronKey, job.CronAt,
	)

	created, err := scanJob(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrCronDuplicate
		}
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil, domain.ErrCronDuplicate
		}
		return nil, err
	}
	publishEnqueueNotification(ctx, s.pool, s.logger, created)
	return created, nil
}
