package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgjobs/goodjob/internal/domain"
	"github.com/pgjobs/goodjob/internal/repository"
)

// ExecutionStore is the append-only writer of good_job_executions rows,
// grounded on internal/infrastructure/postgres/attempt_repo.go from the
// teacher (attempts are opened, then closed once with the outcome — never
// updated piecemeal).
type ExecutionStore struct {
	pool *pgxpool.Pool
}

func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

var _ repository.ExecutionRepository = (*ExecutionStore)(nil)

func (s *ExecutionStore) Open(ctx context.Context, e *domain.Execution) (*domain.Execution, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO good_job_executions (job_id, process_id, started_at)
		VALUES ($1, $2, $3)
		RETURNING id, job_id, process_id, started_at, finished_at,
		          duration_ms, error, error_kind, stack_trace`,
		e.JobID, e.ProcessID, e.StartedAt,
	)
	var out domain.Execution
	if err := row.Scan(
		&out.ID, &out.JobID, &out.ProcessID, &out.StartedAt, &out.FinishedAt,
		&out.DurationMS, &out.Error, &out.ErrorKind, &out.StackTrace,
	); err != nil {
		return nil, fmt.Errorf("open execution: %w", err)
	}
	return &out, nil
}

// Close is always called with a known durationMS; the column is nullable
// only to distinguish a row that was opened but never closed (e.g. process
// crashed mid-run, the lifeline sweep leaves the execution record intact).
func (s *ExecutionStore) Close(ctx context.Context, id int64, finishedAt time.Time, durationMS int64, errMsg, errKind, stackTrace *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE good_job_executions
		SET finished_at = $2, duration_ms = $3, error = $4, error_kind = $5, stack_trace = $6
		WHERE id = $1`, id, finishedAt, durationMS, errMsg, errKind, stackTrace)
	if err != nil {
		return fmt.Errorf("close execution: %w", err)
	}
	return nil
}

func (s *ExecutionStore) ListByJobID(ctx context.Context, jobID int64) ([]*domain.Execution, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, process_id, started_at, finished_at,
		       duration_ms, error, error_kind, stack_trace
		FROM good_job_executions
		WHERE job_id = $1
		ORDER BY started_at ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Execution
	for rows.Next() {
		var e domain.Execution
		if err := rows.Scan(
			&e.ID, &e.JobID, &e.ProcessID, &e.StartedAt, &e.FinishedAt,
			&e.DurationMS, &e.Error, &e.ErrorKind, &e.StackTrace,
		); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *ExecutionStore) PerformedSince(ctx context.Context, concurrencyKey string, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM good_job_executions e
		JOIN good_jobs j ON j.id = e.job_id
		WHERE j.concurrency_key = $1 AND e.started_at >= $2`, concurrencyKey, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("performed since: %w", err)
	}
	return count, nil
}
