// Package worker provides a bounded goroutine pool for fan-out work inside
// a single request.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// ErrPoolClosed is returned when submitting to a released pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool   *ants.Pool
	name   string
	logger *zap.Logger
}

// New creates a pool of the given size.
func New(name string, size int, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{name: name, logger: logger}
	ap, err := ants.NewPool(size,
		ants.WithPanicHandler(func(v interface{}) {
			logger.Error("Worker panic recovered",
				zap.String("pool", name),
				zap.String("panic", fmt.Sprint(v)),
				zap.Stack("stack"),
			)
		}),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s pool: %w", name, err)
	}
	p.pool = ap
	return p, nil
}

// Submit runs task on the pool. If ctx is already cancelled, ctx.Err() is
// returned without submitting; a task dequeued after cancellation is
// skipped.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	err := p.pool.Submit(func() {
		select {
		case <-ctx.Done():
			p.logger.Debug("Task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Map runs fn(i) for every i in [0, n) on the pool and waits for all of
// them. Indexes whose task could not be submitted run on the caller's
// goroutine. Once ctx ends, indexes that have not started are skipped and
// ctx.Err() is returned after the started ones finish.
func (p *Pool) Map(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	var wg sync.WaitGroup
	for i := 0; i < n && ctx.Err() == nil; i++ {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			fn(ctx, i)
		})
		if err != nil {
			wg.Done()
			p.logger.Debug("Map submit failed, running inline", zap.String("pool", p.name), zap.Error(err))
			fn(ctx, i)
		}
	}
	wg.Wait()
	return ctx.Err()
}

// Release shuts the pool down, waiting up to timeout for running tasks.
func (p *Pool) Release(timeout time.Duration) {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn("Pool shutdown timeout", zap.String("pool", p.name), zap.Error(err))
	}
}

// Metrics returns pool counters for the readiness endpoint.
func (p *Pool) Metrics() map[string]int {
	return map[string]int{
		"running": p.pool.Running(),
		"free":    p.pool.Free(),
		"cap":     p.pool.Cap(),
	}
}
