package diagnostics

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Totals counts diagnostics in a time range.
type Totals struct {
	Count        int64 `json:"count"`
	UniqueEvents int64 `json:"unique_events"`
}

// Bucket is one UTC day of diagnostics.
type Bucket struct {
	BucketStart  int64 `json:"bucket_start"`
	Count        int64 `json:"count"`
	UniqueEvents int64 `json:"unique_events"`
}

// Summary is the read model served to operators.
type Summary struct {
	Totals  Totals   `json:"totals"`
	Buckets []Bucket `json:"buckets"`
}

// Querier reads aggregated diagnostics for one tenant. from and to are
// inclusive unix seconds.
type Querier interface {
	QueryTotals(ctx context.Context, tenantID string, from, to int64) (Totals, error)
	QueryBucketsDaily(ctx context.Context, tenantID string, from, to int64) ([]Bucket, error)
}

// Summarize runs both queries.
func Summarize(ctx context.Context, q Querier, tenantID string, from, to int64) (Summary, error) {
	totals, err := q.QueryTotals(ctx, tenantID, from, to)
	if err != nil {
		return Summary{}, err
	}
	buckets, err := q.QueryBucketsDaily(ctx, tenantID, from, to)
	if err != nil {
		return Summary{}, err
	}
	if buckets == nil {
		buckets = []Bucket{}
	}
	return Summary{Totals: totals, Buckets: buckets}, nil
}

// MemorySink keeps records in process. It implements Sink and Querier.
type MemorySink struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// InsertBatch appends items.
func (m *MemorySink) InsertBatch(_ context.Context, items []Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, items...)
	return int64(len(items)), nil
}

// Records returns a copy of everything stored.
func (m *MemorySink) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

func (m *MemorySink) matching(tenantID string, from, to int64) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.records {
		if r.TenantID == tenantID && r.At >= from && r.At <= to {
			out = append(out, r)
		}
	}
	return out
}

// QueryTotals implements Querier.
func (m *MemorySink) QueryTotals(_ context.Context, tenantID string, from, to int64) (Totals, error) {
	recs := m.matching(tenantID, from, to)
	ids := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		ids[r.EventID] = struct{}{}
	}
	return Totals{Count: int64(len(recs)), UniqueEvents: int64(len(ids))}, nil
}

// QueryBucketsDaily implements Querier.
func (m *MemorySink) QueryBucketsDaily(_ context.Context, tenantID string, from, to int64) ([]Bucket, error) {
	type agg struct {
		count int64
		ids   map[string]struct{}
	}
	days := map[int64]*agg{}
	for _, r := range m.matching(tenantID, from, to) {
		day := time.Unix(r.At, 0).UTC().Truncate(24 * time.Hour).Unix()
		a, ok := days[day]
		if !ok {
			a = &agg{ids: map[string]struct{}{}}
			days[day] = a
		}
		a.count++
		a.ids[r.EventID] = struct{}{}
	}
	out := make([]Bucket, 0, len(days))
	for day, a := range days {
		out = append(out, Bucket{BucketStart: day, Count: a.count, UniqueEvents: int64(len(a.ids))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BucketStart < out[j].BucketStart })
	return out, nil
}
