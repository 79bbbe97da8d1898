package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventidx/evaluator"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/ids"
	"github.com/hupe1980/eventidx/types"
)

// dummy answers every query with a fixed id set.
type dummy struct {
	hits *ids.IDs
	err  error
}

func (d dummy) Run(_ context.Context, client evaluator.Client) error {
	if d.err == nil {
		client.Deliver(d.hits.Clone())
	}
	client.Done()
	return d.err
}

// countingClient counts Done calls.
type countingClient struct {
	*evaluator.Collector
	dones atomic.Int32
}

func (c *countingClient) Done() {
	c.dones.Add(1)
	c.Collector.Done()
}

type recordingMaster struct {
	mu  sync.Mutex
	got []*Supervisor
}

func (m *recordingMaster) Register(s *Supervisor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, s)
}

var query = expr.Field("x", expr.Equal, types.Count(42))

func TestSupervise(t *testing.T) {
	master := &recordingMaster{}
	sv := New(0, master)

	qm := QueryMap{
		uuid.New(): {dummy{hits: ids.Of(0, 2, 4, 6, 8)}, dummy{hits: ids.Of(1, 7)}},
		uuid.New(): {dummy{hits: ids.Of(3, 5)}},
	}
	assert.Equal(t, 3, qm.Len())

	c := &countingClient{Collector: evaluator.NewCollector()}
	require.NoError(t, sv.Supervise(t.Context(), query, qm, c))

	got, err := c.Wait(t.Context())
	require.NoError(t, err)
	assert.True(t, ids.Range(0, 9).Equal(got), "got %s", got)
	assert.Equal(t, int32(1), c.dones.Load())
	assert.Equal(t, 3, c.Deltas())

	// After completion the supervisor registers again.
	require.Len(t, master.got, 1)
	assert.Same(t, sv, master.got[0])
}

func TestSuperviseFailedEvaluator(t *testing.T) {
	qm := QueryMap{
		uuid.New(): {dummy{hits: ids.Of(1)}, dummy{err: errors.New("boom")}},
	}
	c := &countingClient{Collector: evaluator.NewCollector()}
	require.NoError(t, New(0, nil).Supervise(t.Context(), query, qm, c))
	assert.True(t, ids.Of(1).Equal(c.Result()))
	assert.Equal(t, int32(1), c.dones.Load())
}

func TestSuperviseEmptyQueryMap(t *testing.T) {
	c := &countingClient{Collector: evaluator.NewCollector()}
	require.NoError(t, New(0, nil).Supervise(t.Context(), query, QueryMap{}, c))
	assert.Equal(t, int32(1), c.dones.Load())
	assert.True(t, c.Result().IsEmpty())
}

func TestWorkerPool(t *testing.T) {
	wp := NewWorkerPool(2)
	t.Cleanup(wp.Close)
	assert.Equal(t, 2, wp.Size())
	assert.Equal(t, 2, wp.Idle())

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			qm := QueryMap{uuid.New(): {dummy{hits: ids.Of(uint64(i))}}}
			c := evaluator.NewCollector()
			assert.NoError(t, wp.Supervise(t.Context(), query, qm, c))
			assert.True(t, ids.Of(uint64(i)).Equal(c.Result()))
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, wp.Idle())
}

func TestWorkerPoolAcquireBlocksUntilRegister(t *testing.T) {
	wp := NewWorkerPool(1)
	t.Cleanup(wp.Close)

	s, err := wp.Acquire(t.Context())
	require.NoError(t, err)
	assert.Zero(t, wp.Idle())

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = wp.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	wp.Register(s)
	s2, err := wp.Acquire(t.Context())
	require.NoError(t, err)
	assert.Same(t, s, s2)
	wp.Register(s2)
}

func TestWorkerPoolClose(t *testing.T) {
	wp := NewWorkerPool(1)
	s, err := wp.Acquire(t.Context())
	require.NoError(t, err)

	blocked := make(chan error, 1)
	go func() {
		blocked <- wp.Supervise(t.Context(), query, QueryMap{}, evaluator.NewCollector())
	}()

	time.Sleep(10 * time.Millisecond)
	wp.Close()
	wp.Close()

	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrPoolClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Supervise did not return after Close")
	}

	_, err = wp.Acquire(t.Context())
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, wp.Supervise(t.Context(), query, QueryMap{}, evaluator.NewCollector()), ErrPoolClosed)
	wp.Register(s)
}
