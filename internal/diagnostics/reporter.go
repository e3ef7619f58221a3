// Package diagnostics carries contract violations found after a write or
// during a read to a sink, off the request path.
package diagnostics

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Stages at which violations are reported.
const (
	StageSave = "save"
	StageLoad = "load"
)

// Record is one contract diagnostic.
type Record struct {
	TenantID   string   `json:"tenant_id"`
	Scope      string   `json:"scope"`
	EventID    string   `json:"event_id"`
	Stage      string   `json:"stage"`
	Violations []string `json:"violations"`
	At         int64    `json:"at"`
}

// Sink persists records in batches.
type Sink interface {
	InsertBatch(ctx context.Context, items []Record) (int64, error)
}

// Reporter batches records and flushes them when the batch is full or
// the wait elapses.
type Reporter struct {
	queue        chan Record
	sink         Sink
	batchMaxSize int
	batchMaxWait time.Duration
	logger       *zap.Logger
	done         chan struct{}
}

// NewReporter creates a Reporter. Call Start before Report.
func NewReporter(sink Sink, queueMaxSize, batchMaxSize int, batchMaxWait time.Duration, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchMaxSize <= 0 {
		batchMaxSize = 1
	}
	return &Reporter{
		queue:        make(chan Record, queueMaxSize),
		sink:         sink,
		batchMaxSize: batchMaxSize,
		batchMaxWait: batchMaxWait,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Start runs the flush loop until ctx ends. The final flush runs on a
// detached context so queued records survive shutdown.
func (r *Reporter) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		batch := make([]Record, 0, r.batchMaxSize)
		t := time.NewTimer(r.batchMaxWait)
		defer t.Stop()

		resetTimer := func() {
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			t.Reset(r.batchMaxWait)
		}

		flush := func(ctx context.Context) {
			if len(batch) == 0 {
				resetTimer()
				return
			}
			affected, err := r.sink.InsertBatch(ctx, batch)
			if err != nil {
				r.logger.Error("diagnostics batch insert failed",
					zap.Int("dropped", len(batch)),
					zap.Error(err),
				)
			} else {
				r.logger.Debug("diagnostics batch insert ok",
					zap.Int64("inserted", affected),
					zap.Int("size", len(batch)),
				)
			}
			batch = batch[:0]
			resetTimer()
		}

		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case rec := <-r.queue:
						batch = append(batch, rec)
						continue
					default:
					}
					break
				}
				fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				flush(fctx)
				cancel()
				return
			case rec := <-r.queue:
				batch = append(batch, rec)
				if len(batch) >= r.batchMaxSize {
					flush(ctx)
				}
			case <-t.C:
				flush(ctx)
			}
		}
	}()
}

// Report enqueues rec without blocking. It returns false when the queue
// is full and the record was dropped.
func (r *Reporter) Report(rec Record) bool {
	if rec.At == 0 {
		rec.At = time.Now().Unix()
	}
	select {
	case r.queue <- rec:
		return true
	default:
		r.logger.Warn("diagnostics queue full, record dropped",
			zap.String("tenant_id", rec.TenantID),
			zap.String("event_id", rec.EventID),
		)
		return false
	}
}

// Done is closed once the flush loop has exited.
func (r *Reporter) Done() <-chan struct{} { return r.done }
