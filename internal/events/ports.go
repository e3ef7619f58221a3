package events

import (
	"context"
	"time"

	"example.com/brandevents/internal/diagnostics"
	"example.com/brandevents/internal/domain"
	"example.com/brandevents/internal/hydrate"
	"example.com/brandevents/internal/lock"
	"example.com/brandevents/internal/tenant"
)

// RowStore is the positional row store. Indexes passed to OverwriteRow are
// positions within the slice returned by ListRows for the same scope.
type RowStore interface {
	ListRows(ctx context.Context, tenantID, scope string) ([]domain.Row, error)
	AppendRow(ctx context.Context, tenantID, scope string, row domain.Row) error
	OverwriteRow(ctx context.Context, tenantID, scope string, index int, row domain.Row) error
}

// Locker hands out write leases keyed by tenant and scope.
type Locker interface {
	Acquire(ctx context.Context, key string, timeout time.Duration) (lock.Lease, error)
}

// Directory resolves tenants.
type Directory interface {
	Brand(ctx context.Context, id string) (tenant.Brand, bool)
}

// Hydrator builds canonical events from rows.
type Hydrator interface {
	Hydrate(ctx context.Context, row domain.Row, opts hydrate.Options) domain.Event
}

// IdempotencyGuard remembers recent create submissions.
type IdempotencyGuard interface {
	Seen(ctx context.Context, key string) (eventID string, seen bool, err error)
	Mark(ctx context.Context, key, eventID string) error
}

// Diagnostics receives contract violations. Report must not block.
type Diagnostics interface {
	Report(rec diagnostics.Record) bool
}

// Pool runs fn for every index in [0, n).
type Pool interface {
	Map(ctx context.Context, n int, fn func(ctx context.Context, i int)) error
}
