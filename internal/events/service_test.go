package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"example.com/brandevents/internal/apperr"
	"example.com/brandevents/internal/cache"
	"example.com/brandevents/internal/diagnostics"
	"example.com/brandevents/internal/domain"
	"example.com/brandevents/internal/hydrate"
	"example.com/brandevents/internal/idempotency"
	"example.com/brandevents/internal/lock"
	"example.com/brandevents/internal/storage/memory"
	"example.com/brandevents/internal/tenant"
	"example.com/brandevents/internal/worker"
)

const baseURL = "https://brand.example.com"

type stubQR struct{ err error }

func (q stubQR) RenderQR(_ context.Context, url string) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	return "cXI6" + url, nil
}

type recordedDiagnostics struct {
	mu   sync.Mutex
	recs []diagnostics.Record
}

func (d *recordedDiagnostics) Report(rec diagnostics.Record) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recs = append(d.recs, rec)
	return true
}

func (d *recordedDiagnostics) records() []diagnostics.Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]diagnostics.Record(nil), d.recs...)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	svc   *Service
	store *memory.Store
	locks *lock.Manager
	diag  *recordedDiagnostics
	clock *clock
}

type harnessOption func(d *Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	dir, err := tenant.NewDirectory([]tenant.Brand{
		{ID: "root", BaseURL: baseURL, Scopes: []string{"events"}},
		{ID: "abc", BaseURL: baseURL, Scopes: []string{"leagues"}},
	})
	require.NoError(t, err)

	pool, err := worker.New("test", 4, nil)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Release(time.Second) })

	h := &harness{
		store: memory.New(),
		locks: lock.NewManager(),
		diag:  &recordedDiagnostics{},
		clock: &clock{t: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)},
	}
	d := Deps{
		Store:       h.store,
		Locker:      h.locks,
		Directory:   dir,
		Hydrator:    hydrate.New(stubQR{}, h.store, zap.NewNop()),
		Guard:       idempotency.NewGuard(cache.NewMemory(nil), time.Minute),
		Diagnostics: h.diag,
		Pool:        pool,
		Logger:      zap.NewNop(),
		LockTimeout: time.Second,
		Now:         h.clock.Now,
	}
	for _, o := range opts {
		o(&d)
	}
	h.svc = New(d)
	return h
}

// patch builds a Patch from a JSON object literal.
func patch(t *testing.T, js string) domain.Patch {
	t.Helper()
	p, err := domain.PatchFromJSON([]byte(js))
	require.NoError(t, err)
	return p
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func requireKind(t *testing.T, err error, kind apperr.Kind, code string) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok, "error %v is not an *apperr.Error", err)
	require.Equal(t, kind, e.Kind, e.Error())
	require.Equal(t, code, e.Code, e.Error())
	return e
}

func hasField(fes []domain.FieldError, field string) bool {
	for _, fe := range fes {
		if fe.Field == field {
			return true
		}
	}
	return false
}

var errBoom = errors.New("boom")
