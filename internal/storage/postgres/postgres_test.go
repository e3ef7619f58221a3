package postgres

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/brandevents/internal/diagnostics"
	"example.com/brandevents/internal/domain"
	"example.com/brandevents/internal/lock"
)

// openTestDB opens a pool on an isolated schema. Tests are skipped when
// TEST_DATABASE_URL is not set.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(admin.Close)

	schema := "brandevents_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	_, err = admin.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA "%s"`, schema))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS "%s" CASCADE`, schema))
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	db, err := Connect(ctx, u.String())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.RunMigrations(ctx))
	return db
}

var testSeq atomic.Int64

func testRow(tenantID string) domain.Row {
	n := testSeq.Add(1)
	return domain.Row{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		TemplateID: "event",
		Data:       `{"name":"Row"}`,
		CreatedAt:  "2025-01-01T00:00:00Z",
		Slug:       fmt.Sprintf("row-%d", n),
	}
}

func TestRowStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	s := NewRowStore(db)

	a, b, other := testRow("t1"), testRow("t1"), testRow("t2")
	require.NoError(t, s.AppendRow(ctx, "t1", "events", a))
	require.NoError(t, s.AppendRow(ctx, "t1", "events", b))
	require.NoError(t, s.AppendRow(ctx, "t2", "events", other))

	rows, err := s.ListRows(ctx, "t1", "events")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, a, rows[0])
	assert.Equal(t, b, rows[1])

	b.Slug = "renamed"
	require.NoError(t, s.OverwriteRow(ctx, "t1", "events", 1, b))
	rows, err = s.ListRows(ctx, "t1", "events")
	require.NoError(t, err)
	assert.Equal(t, "renamed", rows[1].Slug)
	assert.Equal(t, a, rows[0])

	assert.Error(t, s.OverwriteRow(ctx, "t1", "events", 7, b))

	dup := testRow("t1")
	dup.Slug = a.Slug
	assert.Error(t, s.AppendRow(ctx, "t1", "events", dup), "slug is unique per tenant scope")
	require.NoError(t, s.AppendRow(ctx, "t2", "leagues", dup))
}

func TestSponsorStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	s := NewSponsorStore(db)

	require.NoError(t, s.PutSponsor(ctx, "t1", domain.Sponsor{ID: "s1", Name: "Acme", LogoURL: "https://cdn.example.com/a.png", Placement: domain.PlacementPoster}))
	got, err := s.ResolveSponsors(ctx, "t1", []string{"s1", "nope"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.PlacementPoster, got["s1"].Placement)
	assert.Empty(t, got["s1"].LinkURL)
}

func TestMarkerCache(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c := NewMarkerCache(db)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "k", "v1", time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	require.NoError(t, c.Put(ctx, "gone", "v", time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	_, ok, err = c.Get(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := c.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

func TestAdvisoryLocker(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	l := NewAdvisoryLocker(db)

	lease, err := l.Acquire(ctx, lock.Key("t1", "events"), time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, lock.Key("t1", "events"), 100*time.Millisecond)
	assert.ErrorIs(t, err, lock.ErrTimeout)

	other, err := l.Acquire(ctx, lock.Key("t2", "events"), time.Second)
	require.NoError(t, err)
	other.Release()

	lease.Release()
	lease.Release()
	again, err := l.Acquire(ctx, lock.Key("t1", "events"), time.Second)
	require.NoError(t, err)
	again.Release()
}

func TestDiagnosticsWriter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	w := NewDiagnosticsWriter(db)

	day := int64(1_700_000_000)
	day -= day % 86400
	n, err := w.InsertBatch(ctx, []diagnostics.Record{
		{TenantID: "t1", Scope: "events", EventID: "a", Stage: diagnostics.StageSave, Violations: []string{"qr.public: required"}, At: day + 1},
		{TenantID: "t1", Scope: "events", EventID: "a", Stage: diagnostics.StageLoad, At: day + 2},
		{TenantID: "t1", Scope: "events", EventID: "b", Stage: diagnostics.StageSave, At: day + 86400},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	s, err := diagnostics.Summarize(ctx, w, "t1", day, day+86400)
	require.NoError(t, err)
	assert.Equal(t, diagnostics.Totals{Count: 3, UniqueEvents: 2}, s.Totals)
	require.Len(t, s.Buckets, 2)
	assert.Equal(t, day, s.Buckets[0].BucketStart)
	assert.Equal(t, int64(2), s.Buckets[0].Count)
}
