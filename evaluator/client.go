package evaluator

import (
	"context"
	"sync"

	"github.com/hupe1980/eventidx/ids"
)

// Client receives the results of an evaluation.
type Client interface {
	// Deliver passes ids that were not delivered before. The client owns
	// delta.
	Deliver(delta *ids.IDs)
	// Done is called exactly once, after the last Deliver.
	Done()
}

// Message is sent by a ChanClient. Done messages carry no hits.
type Message struct {
	Hits *ids.IDs
	Done bool
}

// ChanClient forwards results to a channel. Sends block.
type ChanClient chan<- Message

// Deliver implements Client.
func (c ChanClient) Deliver(delta *ids.IDs) { c <- Message{Hits: delta} }

// Done implements Client.
func (c ChanClient) Done() { c <- Message{Done: true} }

// Collector accumulates all deltas into one bitmap. It is safe for
// concurrent use.
type Collector struct {
	mu     sync.Mutex
	hits   *ids.IDs
	deltas int
	done   chan struct{}
	once   sync.Once
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{hits: ids.New(), done: make(chan struct{})}
}

// Deliver implements Client.
func (c *Collector) Deliver(delta *ids.IDs) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits.Or(delta)
	c.deltas++
}

// Done implements Client.
func (c *Collector) Done() { c.once.Do(func() { close(c.done) }) }

// Wait blocks until Done was called and returns the accumulated hits.
func (c *Collector) Wait(ctx context.Context) (*ids.IDs, error) {
	select {
	case <-c.done:
		return c.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns a copy of the hits delivered so far.
func (c *Collector) Result() *ids.IDs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits.Clone()
}

// Deltas returns the number of Deliver calls.
func (c *Collector) Deltas() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deltas
}

// Finished reports whether Done was called.
func (c *Collector) Finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
