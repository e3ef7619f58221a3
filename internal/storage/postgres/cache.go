package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// MarkerCache stores idempotency markers shared by every instance.
type MarkerCache struct {
	db *DB
}

func NewMarkerCache(db *DB) *MarkerCache { return &MarkerCache{db: db} }

// Get returns the unexpired value for key.
func (c *MarkerCache) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := c.db.Pool.QueryRow(ctx,
		"SELECT value FROM idempotency_markers WHERE key = $1 AND expires_at > now()", key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get marker: %w", err)
	}
	return v, true, nil
}

// Put stores value under key for ttl, replacing any previous marker.
func (c *MarkerCache) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := c.db.Pool.Exec(ctx, `
INSERT INTO idempotency_markers (key, value, expires_at)
VALUES ($1, $2, now() + $3 * interval '1 millisecond')
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, ttl.Milliseconds())
	if err != nil {
		return fmt.Errorf("put marker: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired markers.
func (c *MarkerCache) PurgeExpired(ctx context.Context) (int64, error) {
	ct, err := c.db.Pool.Exec(ctx, "DELETE FROM idempotency_markers WHERE expires_at <= now()")
	if err != nil {
		return 0, fmt.Errorf("purge markers: %w", err)
	}
	return ct.RowsAffected(), nil
}
