package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgjobs/goodjob/internal/repository"
)

// PauseStore backs the Pause Registry (spec.md §4.8) with a tiny
// key/value-shaped table, grounded on the teacher's user_repo.go CRUD
// shape but against good_job_settings rather than a users table.
type PauseStore struct {
	pool *pgxpool.Pool
}

func NewPauseStore(pool *pgxpool.Pool) *PauseStore {
	return &PauseStore{pool: pool}
}

var _ repository.PauseRepository = (*PauseStore)(nil)

func (s *PauseStore) Pause(ctx context.Context, targetKind, target string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO good_job_settings (target, target_kind)
		VALUES ($1, $2)
		ON CONFLICT (target) DO NOTHING`, target, targetKind)
	if err != nil {
		return fmt.Errorf("pause %s %q: %w", targetKind, target, err)
	}
	return nil
}

func (s *PauseStore) Resume(ctx context.Context, targetKind, target string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM good_job_settings WHERE target_kind = $1 AND target = $2`, targetKind, target)
	if err != nil {
		return fmt.Errorf("resume %s %q: %w", targetKind, target, err)
	}
	return nil
}

func (s *PauseStore) PausedTargets(ctx context.Context) (queues, jobClasses []string, err error) {
	rows, err := s.pool.Query(ctx, `SELECT target_kind, target FROM good_job_settings`)
	if err != nil {
		return nil, nil, fmt.Errorf("list paused targets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, target string
		if err := rows.Scan(&kind, &target); err != nil {
			return nil, nil, err
		}
		switch kind {
		case "queue":
			queues = append(queues, target)
		case "job_class":
			jobClasses = append(jobClasses, target)
		}
	}
	return queues, jobClasses, rows.Err()
}
