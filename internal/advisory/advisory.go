// Package advisory wraps PostgreSQL session- and transaction-level advisory
// locks behind stable 64-bit keys. The same hashing algorithm must run in
// every process that shares the database — including cooperating workers
// written in another language — so it is fixed, not configurable
// (spec.md §4.2).
package advisory

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service issues and releases PostgreSQL advisory locks over a shared pool.
// Acquisition failure is a normal outcome, not an error — callers check the
// returned bool, never an error, for "did I get the lock" (spec.md §4.2).
type Service struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// JobLockKey derives the stable lock key for a job row id.
func JobLockKey(jobID int64) int64 {
	return fold(xxhash.Sum64String(fmt.Sprintf("good_job:job:%d", jobID)))
}

// ConcurrencyLockKey derives the stable lock key for a concurrency key
// string, used by the Concurrency Limiter (spec.md §4.6) to serialize
// count checks against a shared key.
func ConcurrencyLockKey(key string) int64 {
	return fold(xxhash.Sum64String("good_job:concurrency:" + key))
}

// fold maps a uint64 hash into the signed 64-bit space Postgres advisory
// locks take, preserving all 64 bits of entropy (pg_advisory_lock accepts
// any bigint bit pattern).
func fold(h uint64) int64 {
	return int64(h)
}

// Held reports whether an advisory lock on key is currently held by any
// backend, by querying the database's lock catalogue. Used by the lifeline
// sweep to distinguish "worker crashed, lock released automatically" from
// "worker is merely slow" (spec.md §4.9).
func (s *Service) Held(ctx context.Context, key int64) (bool, error) {
	var held bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM pg_locks
			WHERE locktype = 'advisory' AND objsubid = 1
			  AND ((classid::bigint << 32) | objid::bigint) = $1
		)`, key,
	).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("query pg_locks: %w", err)
	}
	return held, nil
}

// SessionLock is a session-lifetime advisory lock bound to a dedicated
// pooled connection. Its lifetime IS the lock's lifetime: the lock is
// released when Release is called or the connection is dropped.
type SessionLock struct {
	conn *pgxpool.Conn
	key  int64
}

// TryAcquireSession attempts a non-blocking, session-lifetime advisory lock
// on key using a single connection checked out of the pool.
func (s *Service) TryAcquireSession(ctx context.Context, key int64) (*SessionLock, bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire conn: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}
	return &SessionLock{conn: conn, key: key}, true, nil
}

// Release releases the session lock and returns the connection to the
// pool. Releasing a non-held key is idempotent at the Postgres level.
func (l *SessionLock) Release(ctx context.Context) error {
	defer l.conn.Release()
	if _, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.key); err != nil {
		return fmt.Errorf("release advisory lock: %w", err)
	}
	return nil
}

// Conn exposes the underlying locked connection, so a caller that must
// re-read the row "inside" the same session (spec.md §4.3 step 2) can do so
// without racing a different pooled connection.
func (l *SessionLock) Conn() *pgxpool.Conn { return l.conn }

// TryAcquireTransaction attempts a non-blocking, transaction-scoped
// advisory lock on key. The lock is released automatically on commit or
// rollback of tx — used by the Concurrency Limiter so its count checks are
// serialized for exactly the duration of one transaction (spec.md §4.6).
func TryAcquireTransaction(ctx context.Context, tx pgx.Tx, key int64) (bool, error) {
	var acquired bool
	if err := tx.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1)", key).Scan(&acquired); err != nil {
		return false, fmt.Errorf("try advisory xact lock: %w", err)
	}
	return acquired, nil
}
