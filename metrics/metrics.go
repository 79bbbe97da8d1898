// Package metrics defines the observer hooks the indexing core reports to.
//
// Implement Observer to integrate with a monitoring system, or use the
// Prometheus collector shipped in this package.
package metrics

import (
	"sync/atomic"
	"time"
)

// Observer receives operational events from column indexes, synopses and
// evaluators. Implementations must be safe for concurrent use.
type Observer interface {
	// OnAppend is called after a table slice was appended to a column index.
	OnAppend(rows int, duration time.Duration, err error)

	// OnLookup is called after a column index lookup.
	OnLookup(hits uint64, duration time.Duration, err error)

	// OnFlush is called after a column index flush wrote bytes to disk.
	OnFlush(bytes int64, duration time.Duration, err error)

	// OnLoad is called after persisted state was loaded.
	OnLoad(duration time.Duration, err error)

	// OnShrink is called after a buffered synopsis was shrunk.
	OnShrink(observed, n uint64)

	// OnDelta is called whenever an evaluator emits new hits.
	OnDelta(hits uint64)

	// OnQuery is called when an evaluator completes.
	OnQuery(pending int, duration time.Duration, cancelled bool)
}

// OrNoop returns o, or a no-op observer if o is nil.
func OrNoop(o Observer) Observer {
	if o == nil {
		return Noop{}
	}
	return o
}

// Noop is a no-op implementation of Observer.
type Noop struct{}

func (Noop) OnAppend(int, time.Duration, error)    {}
func (Noop) OnLookup(uint64, time.Duration, error) {}
func (Noop) OnFlush(int64, time.Duration, error)   {}
func (Noop) OnLoad(time.Duration, error)           {}
func (Noop) OnShrink(uint64, uint64)               {}
func (Noop) OnDelta(uint64)                        {}
func (Noop) OnQuery(int, time.Duration, bool)      {}

// Basic provides simple in-memory counters.
// Useful for debugging and tests without external dependencies.
type Basic struct {
	AppendCount   atomic.Int64
	AppendRows    atomic.Int64
	AppendErrors  atomic.Int64
	LookupCount   atomic.Int64
	LookupErrors  atomic.Int64
	FlushCount    atomic.Int64
	FlushBytes    atomic.Int64
	FlushErrors   atomic.Int64
	LoadCount     atomic.Int64
	LoadErrors    atomic.Int64
	ShrinkCount   atomic.Int64
	DeltaCount    atomic.Int64
	DeltaHits     atomic.Int64
	QueryCount    atomic.Int64
	QueryCanceled atomic.Int64
}

// OnAppend implements Observer.
func (b *Basic) OnAppend(rows int, _ time.Duration, err error) {
	b.AppendCount.Add(1)
	b.AppendRows.Add(int64(rows))
	if err != nil {
		b.AppendErrors.Add(1)
	}
}

// OnLookup implements Observer.
func (b *Basic) OnLookup(_ uint64, _ time.Duration, err error) {
	b.LookupCount.Add(1)
	if err != nil {
		b.LookupErrors.Add(1)
	}
}

// OnFlush implements Observer.
func (b *Basic) OnFlush(bytes int64, _ time.Duration, err error) {
	b.FlushCount.Add(1)
	b.FlushBytes.Add(bytes)
	if err != nil {
		b.FlushErrors.Add(1)
	}
}

// OnLoad implements Observer.
func (b *Basic) OnLoad(_ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// OnShrink implements Observer.
func (b *Basic) OnShrink(uint64, uint64) {
	b.ShrinkCount.Add(1)
}

// OnDelta implements Observer.
func (b *Basic) OnDelta(hits uint64) {
	b.DeltaCount.Add(1)
	b.DeltaHits.Add(int64(hits))
}

// OnQuery implements Observer.
func (b *Basic) OnQuery(_ int, _ time.Duration, cancelled bool) {
	b.QueryCount.Add(1)
	if cancelled {
		b.QueryCanceled.Add(1)
	}
}
