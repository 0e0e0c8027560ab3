package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgjobs/goodjob/internal/domain"
	"github.com/pgjobs/goodjob/internal/repository"
)

const jobColumns = `id, external_job_id, job_class, queue_name, priority, payload,
	scheduled_at, performed_at, finished_at, locked_by_id, locked_at,
	executions_count, error, concurrency_key, labels, cron_key, cron_at,
	batch_id, retried_from_id, created_at, updated_at`

// JobStore is the single writer of good_jobs rows (spec.md §4.1), grounded
// on internal/infrastructure/postgres/job_repo.go from the teacher: a thin
// struct over *pgxpool.Pool, explicit SQL, a shared rowScanner helper, and
// pgconn.PgError inspection to translate unique-violations into domain
// errors.
type JobStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewJobStore(pool *pgxpool.Pool, logger *slog.Logger) *JobStore {
	return &JobStore{pool: pool, logger: logger}
}

var _ repository.JobStore = (*JobStore)(nil)

func (s *JobStore) Enqueue(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	query := `
		INSERT INTO good_jobs (
			external_job_id, job_class, queue_name, priority, payload,
			scheduled_at, concurrency_key, labels, cron_key, cron_at,
			batch_id, retried_from_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + jobColumns

	row := s.pool.QueryRow(ctx, query,
		job.ExternalJobID, job.JobClass, job.QueueName, job.Priority, job.Payload,
		job.ScheduledAt, job.ConcurrencyKey, job.Labels, job.CronKey, job.CronAt,
		job.BatchID, job.RetriedFromID,
	)

	created, err := scanJob(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateJob
		}
		return nil, err
	}
	publishEnqueueNotification(ctx, s.pool, s.logger, created)
	return created, nil
}

func (s *JobStore) FindByID(ctx context.Context, id int64) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM good_jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (s *JobStore) FindByExternalID(ctx context.Context, externalJobID string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM good_jobs WHERE external_job_id = $1`, externalJobID)
	return scanJob(row)
}

func (s *JobStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM good_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// Candidates implements the single canonical ordering (spec.md §4.1):
// priority ASC NULLS LAST, COALESCE(scheduled_at, created_at) ASC,
// created_at ASC, id ASC. Every fetcher MUST go through this query.
func (s *JobStore) Candidates(ctx context.Context, filter repository.CandidateFilter) ([]*domain.Job, error) {
	args := []any{}
	where := []string{"finished_at IS NULL", "performed_at IS NULL",
		"(scheduled_at IS NULL OR scheduled_at <= NOW())"}

	if len(filter.QueueNames) > 0 {
		args = append(args, filter.QueueNames)
		where = append(where, fmt.Sprintf("queue_name = ANY($%d)", len(args)))
	}
	if len(filter.ExcludedQueues) > 0 {
		args = append(args, filter.ExcludedQueues)
		where = append(where, fmt.Sprintf("NOT (queue_name = ANY($%d))", len(args)))
	}
	if len(filter.ExcludedClasses) > 0 {
		args = append(args, filter.ExcludedClasses)
		where = append(where, fmt.Sprintf("NOT (job_class = ANY($%d))", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s FROM good_jobs
		WHERE %s
		ORDER BY priority ASC NULLS LAST, COALESCE(scheduled_at, created_at) ASC, created_at ASC, id ASC
		LIMIT $%d`, jobColumns, strings.Join(where, " AND "), len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Stamp implements spec.md §4.3 step 4. The WHERE clause guards against a
// job that finished or was relocked between Candidates() and the caller
// winning the advisory lock race.
func (s *JobStore) Stamp(ctx context.Context, id int64, lockedByID string, now time.Time) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE good_jobs
		SET locked_by_id = $2, locked_at = $3, performed_at = $3,
		    executions_count = executions_count + 1, updated_at = $3
		WHERE id = $1 AND finished_at IS NULL AND performed_at IS NULL
		RETURNING `+jobColumns, id, lockedByID, now)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil, domain.ErrJobNotClaimable
		}
		return nil, err
	}
	return j, nil
}

func (s *JobStore) Reload(ctx context.Context, id int64) (*domain.Job, error) {
	return s.FindByID(ctx, id)
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx, letting jobUpdate
// run unchanged whether or not withOutcomeTx opened a transaction for it.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// withOutcomeTx runs jobUpdate against the same transaction that closes
// exec, so the execution record and the job row land together or not at
// all (spec.md §4.5 step 6). When exec is nil (no execution record was
// opened for this attempt) it just runs jobUpdate against the pool — there
// is nothing else to make atomic with. Grounded on the teacher's
// schedule_repo.go ClaimAndFire: Begin, defer a rollback that only fires if
// err is still set, explicit Commit at the end.
func (s *JobStore) withOutcomeTx(ctx context.Context, exec *repository.ExecutionClose, jobUpdate func(db execer) error) (err error) {
	if exec == nil {
		return jobUpdate(s.pool)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin outcome tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		UPDATE good_job_executions
		SET finished_at = $2, duration_ms = $3, error = $4, error_kind = $5, stack_trace = $6
		WHERE id = $1`, exec.ID, exec.FinishedAt, exec.DurationMS, exec.Error, exec.ErrorKind, exec.StackTrace); err != nil {
		return fmt.Errorf("close execution: %w", err)
	}

	if err = jobUpdate(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit outcome tx: %w", err)
	}
	return nil
}

func (s *JobStore) PersistSuccess(ctx context.Context, id int64, payload []byte, now time.Time, exec *repository.ExecutionClose) error {
	err := s.withOutcomeTx(ctx, exec, func(db execer) error {
		_, err := db.Exec(ctx, `
			UPDATE good_jobs
			SET finished_at = $2, error = NULL, locked_by_id = NULL, locked_at = NULL,
			    payload = $3, updated_at = $2
			WHERE id = $1 AND finished_at IS NULL`, id, now, payload)
		return err
	})
	if err != nil {
		return fmt.Errorf("persist success: %w", err)
	}
	return nil
}

func (s *JobStore) PersistRetry(ctx context.Context, id int64, errMsg string, payload []byte, retryAt time.Time, exec *repository.ExecutionClose) error {
	err := s.withOutcomeTx(ctx, exec, func(db execer) error {
		_, err := db.Exec(ctx, `
			UPDATE good_jobs
			SET finished_at = NULL, scheduled_at = $2, performed_at = NULL,
			    locked_by_id = NULL, locked_at = NULL, error = $3, payload = $4, updated_at = NOW()
			WHERE id = $1 AND finished_at IS NULL`, id, retryAt, errMsg, payload)
		return err
	})
	if err != nil {
		return fmt.Errorf("persist retry: %w", err)
	}
	return nil
}

func (s *JobStore) PersistTerminalFailure(ctx context.Context, id int64, errMsg string, payload []byte, now time.Time, exec *repository.ExecutionClose) error {
	err := s.withOutcomeTx(ctx, exec, func(db execer) error {
		_, err := db.Exec(ctx, `
			UPDATE good_jobs
			SET finished_at = $2, scheduled_at = NULL, error = $3, payload = $4,
			    locked_by_id = NULL, locked_at = NULL, updated_at = $2
			WHERE id = $1 AND finished_at IS NULL`, id, now, errMsg, payload)
		return err
	})
	if err != nil {
		return fmt.Errorf("persist terminal failure: %w", err)
	}
	return nil
}

func (s *JobStore) PersistCancelOrDiscard(ctx context.Context, id int64, errMsg string, now time.Time, exec *repository.ExecutionClose) error {
	err := s.withOutcomeTx(ctx, exec, func(db execer) error {
		_, err := db.Exec(ctx, `
			UPDATE good_jobs
			SET finished_at = $2, error = $3, locked_by_id = NULL, locked_at = NULL, updated_at = $2
			WHERE id = $1 AND finished_at IS NULL`, id, now, errMsg)
		return err
	})
	if err != nil {
		return fmt.Errorf("persist cancel/discard: %w", err)
	}
	return nil
}

func (s *JobStore) PersistSnooze(ctx context.Context, id int64, delaySeconds int, now time.Time, exec *repository.ExecutionClose) error {
	retryAt := now.Add(time.Duration(delaySeconds) * time.Second)
	err := s.withOutcomeTx(ctx, exec, func(db execer) error {
		_, err := db.Exec(ctx, `
			UPDATE good_jobs
			SET scheduled_at = $2, performed_at = NULL, locked_by_id = NULL, locked_at = NULL, updated_at = $3
			WHERE id = $1 AND finished_at IS NULL`, id, retryAt, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("persist snooze: %w", err)
	}
	return nil
}

// PersistInterrupt returns an in-flight job to queued and takes back the
// executions_count increment Stamp made for the interrupted attempt — an
// interrupt is never a consumed retry (spec.md §4.5).
func (s *JobStore) PersistInterrupt(ctx context.Context, id int64, exec *repository.ExecutionClose) error {
	err := s.withOutcomeTx(ctx, exec, func(db execer) error {
		_, err := db.Exec(ctx, `
			UPDATE good_jobs
			SET performed_at = NULL, locked_by_id = NULL, locked_at = NULL,
			    executions_count = GREATEST(executions_count - 1, 0), updated_at = NOW()
			WHERE id = $1 AND finished_at IS NULL`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("persist interrupt: %w", err)
	}
	return nil
}

// RescueStale implements the lifeline sweep (spec.md §4.9). It selects
// candidate stale rows itself, then defers the "is the lock actually held"
// check to isHeld (backed by advisory.Service.Held) before clearing
// ownership — a plain heartbeat timeout is not sufficient evidence the
// worker is gone, the lock catalogue is authoritative.
func (s *JobStore) RescueStale(ctx context.Context, lockedBefore time.Time, isHeld func(ctx context.Context, jobID int64) (bool, error), limit int) (int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM good_jobs
		WHERE finished_at IS NULL AND performed_at IS NOT NULL AND locked_at < $1
		ORDER BY locked_at ASC
		LIMIT $2`, lockedBefore, limit)
	if err != nil {
		return 0, fmt.Errorf("query stale jobs: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	rescued := 0
	for _, id := range ids {
		held, err := isHeld(ctx, id)
		if err != nil {
			return rescued, fmt.Errorf("check lock held: %w", err)
		}
		if held {
			continue
		}
		tag, err := s.pool.Exec(ctx, `
			UPDATE good_jobs
			SET performed_at = NULL, locked_by_id = NULL, locked_at = NULL, updated_at = NOW()
			WHERE id = $1 AND finished_at IS NULL AND performed_at IS NOT NULL`, id)
		if err != nil {
			return rescued, fmt.Errorf("rescue job %d: %w", id, err)
		}
		rescued += int(tag.RowsAffected())
	}
	return rescued, nil
}

func (s *JobStore) Prune(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM good_jobs
		WHERE id IN (
			SELECT id FROM good_jobs
			WHERE finished_at IS NOT NULL AND finished_at < $1
			ORDER BY finished_at ASC
			LIMIT $2
		)`, olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *JobStore) Stats(ctx context.Context) ([]domain.StatsCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT queue_name,
		       CASE
		         WHEN finished_at IS NOT NULL AND error IS NULL THEN 'succeeded'
		         WHEN finished_at IS NOT NULL AND error IS NOT NULL THEN 'discarded'
		         WHEN finished_at IS NULL AND retried_from_id IS NOT NULL THEN 'retried'
		         WHEN finished_at IS NULL AND scheduled_at > NOW() THEN 'scheduled'
		         WHEN finished_at IS NULL AND performed_at IS NOT NULL AND locked_by_id IS NOT NULL THEN 'running'
		         ELSE 'queued'
		       END AS state,
		       COUNT(*)
		FROM good_jobs
		GROUP BY queue_name, state`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []domain.StatsCount
	for rows.Next() {
		var c domain.StatsCount
		var state string
		if err := rows.Scan(&c.QueueName, &state, &c.Count); err != nil {
			return nil, err
		}
		c.State = domain.State(state)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *JobStore) ConcurrencyCounts(ctx context.Context, concurrencyKey string) (enqueued, performing int, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT
		  COUNT(*) FILTER (WHERE performed_at IS NULL),
		  COUNT(*) FILTER (WHERE performed_at IS NOT NULL)
		FROM good_jobs
		WHERE concurrency_key = $1 AND finished_at IS NULL`, concurrencyKey,
	).Scan(&enqueued, &performing)
	if err != nil {
		return 0, 0, fmt.Errorf("concurrency counts: %w", err)
	}
	return enqueued, performing, nil
}

func (s *JobStore) ConcurrencyEnqueuedSince(ctx context.Context, concurrencyKey string, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM good_jobs
		WHERE concurrency_key = $1 AND created_at >= $2`, concurrencyKey, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("concurrency enqueued since: %w", err)
	}
	return count, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.ExternalJobID, &j.JobClass, &j.QueueName, &j.Priority, &j.Payload,
		&j.ScheduledAt, &j.PerformedAt, &j.FinishedAt, &j.LockedByID, &j.LockedAt,
		&j.ExecutionsCount, &j.Error, &j.ConcurrencyKey, &j.Labels, &j.CronKey, &j.CronAt,
		&j.BatchID, &j.RetriedFromID, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
