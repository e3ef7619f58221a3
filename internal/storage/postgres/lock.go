package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/brandevents/internal/lock"
)

// lockPollInterval is the wait between pg_try_advisory_lock attempts.
const lockPollInterval = 25 * time.Millisecond

// AdvisoryLocker serializes writers across processes with session-level
// advisory locks. Each lease pins one pooled connection until released.
type AdvisoryLocker struct {
	db *DB
}

func NewAdvisoryLocker(db *DB) *AdvisoryLocker { return &AdvisoryLocker{db: db} }

// Acquire polls for the advisory lock on key until timeout. It returns
// lock.ErrTimeout when the lock stays taken.
func (l *AdvisoryLocker) Acquire(ctx context.Context, key string, timeout time.Duration) (lock.Lease, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := l.db.Pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, lock.ErrTimeout
		}
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		var ok bool
		err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock(hashtextextended($1, 0))", key).Scan(&ok)
		if err == nil && ok {
			return &advisoryLease{conn: conn, key: key}, nil
		}
		if err != nil && ctx.Err() == nil {
			conn.Release()
			return nil, fmt.Errorf("try advisory lock: %w", err)
		}
		select {
		case <-ctx.Done():
			conn.Release()
			if ctx.Err() == context.DeadlineExceeded {
				return nil, lock.ErrTimeout
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

type advisoryLease struct {
	conn *pgxpool.Conn
	key  string
	once sync.Once
}

func (a *advisoryLease) Release() {
	a.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := a.conn.Exec(ctx, "SELECT pg_advisory_unlock(hashtextextended($1, 0))", a.key); err != nil {
			// A session lock that failed to unlock must not go back to the
			// pool still held.
			_ = a.conn.Conn().Close(ctx)
		}
		a.conn.Release()
	})
}
