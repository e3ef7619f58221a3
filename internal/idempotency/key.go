package idempotency

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// DefaultTTL is how long a create marker blocks a repeated submission.
const DefaultTTL = 2 * time.Minute

// DeriveKey returns a stable cache key for a caller-supplied idempotency
// key, scoped to the tenant and scope so keys never collide across row
// sets. ok is false when no key was supplied.
// The key is a hex-encoded BLAKE3 digest to guarantee a fixed length.
func DeriveKey(tenantID, scope, supplied string) (key string, ok bool) {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		return "", false
	}
	sum := blake3.Sum256([]byte(tenantID + "|" + scope + "|" + supplied))
	return "idem:" + hex.EncodeToString(sum[:]), true
}

// Cache is the ephemeral store holding markers.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
}

// Guard rejects repeated create submissions within a short window. It is
// advisory: it narrows duplicate creates, it does not replace id and slug
// collision checks.
type Guard struct {
	cache Cache
	ttl   time.Duration
}

// NewGuard creates a Guard. A non-positive ttl uses DefaultTTL.
func NewGuard(c Cache, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{cache: c, ttl: ttl}
}

// Seen returns the event id recorded under key, if any.
func (g *Guard) Seen(ctx context.Context, key string) (eventID string, seen bool, err error) {
	return g.cache.Get(ctx, key)
}

// Mark records that key produced eventID.
func (g *Guard) Mark(ctx context.Context, key, eventID string) error {
	return g.cache.Put(ctx, key, eventID, g.ttl)
}
