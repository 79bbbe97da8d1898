package supervisor

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/eventidx/evaluator"
	"github.com/hupe1980/eventidx/expr"
)

// ErrPoolClosed is returned by a closed worker pool.
var ErrPoolClosed = errors.New("supervisor: worker pool closed")

// WorkerPool owns a fixed set of supervisors and bounds the number of
// queries that run at the same time.
type WorkerPool struct {
	size     int
	idle     chan *Supervisor
	stopCh   chan struct{}
	inflight sync.WaitGroup
	closed   atomic.Bool
	submitMu sync.RWMutex
}

// NewWorkerPool creates a pool with n supervisors. n <= 0 selects
// GOMAXPROCS.
func NewWorkerPool(n int, opts ...Option) *WorkerPool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	wp := &WorkerPool{
		size:   n,
		idle:   make(chan *Supervisor, n),
		stopCh: make(chan struct{}),
	}
	for i := range n {
		wp.Register(New(i, wp, opts...))
	}
	return wp
}

// Register returns an idle supervisor to the pool. It implements Master.
func (wp *WorkerPool) Register(s *Supervisor) {
	// idle has room for every supervisor of the pool.
	wp.idle <- s
}

// Acquire waits for an idle supervisor. The caller must pass it a query
// through Supervise, which registers it again.
func (wp *WorkerPool) Acquire(ctx context.Context) (*Supervisor, error) {
	if wp.closed.Load() {
		return nil, ErrPoolClosed
	}
	select {
	case s := <-wp.idle:
		return s, nil
	case <-wp.stopCh:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Supervise runs a query on the next idle supervisor.
func (wp *WorkerPool) Supervise(ctx context.Context, e expr.Expression, qm QueryMap, client evaluator.Client) error {
	wp.submitMu.RLock()
	if wp.closed.Load() {
		wp.submitMu.RUnlock()
		return ErrPoolClosed
	}
	wp.inflight.Add(1)
	wp.submitMu.RUnlock()
	defer wp.inflight.Done()

	s, err := wp.Acquire(ctx)
	if err != nil {
		return err
	}
	return s.Supervise(ctx, e, qm, client)
}

// Size returns the number of supervisors.
func (wp *WorkerPool) Size() int { return wp.size }

// Idle returns the number of idle supervisors.
func (wp *WorkerPool) Idle() int { return len(wp.idle) }

// Close rejects new queries and waits for running ones.
func (wp *WorkerPool) Close() {
	wp.submitMu.Lock()
	if !wp.closed.CompareAndSwap(false, true) {
		wp.submitMu.Unlock()
		return
	}
	close(wp.stopCh)
	wp.submitMu.Unlock()

	wp.inflight.Wait()
}
