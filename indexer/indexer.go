// Package indexer runs a column index in its own goroutine.
//
// An Indexer is the only owner of its column index. Ingestion and queries
// reach it through a mailbox, so a column index never needs locks while
// partitions add slices and evaluators look up predicates concurrently.
package indexer

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/eventidx/columnindex"
	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/ids"
	"github.com/hupe1980/eventidx/tableslice"
	"github.com/hupe1980/eventidx/types"
)

// ErrClosed is returned for requests to a closed indexer.
var ErrClosed = errors.New("indexer: closed")

type op uint8

const (
	opAdd op = iota
	opLookup
	opFlush
	opClose
)

type request struct {
	op    op
	slice *tableslice.Slice
	pred  expr.Curried
	ctx   context.Context
	reply chan reply
}

type reply struct {
	hits *ids.IDs
	err  error
}

// Indexer serializes all access to one column index.
type Indexer struct {
	ci       *columnindex.ColumnIndex
	mailbox  chan request
	done     chan struct{}
	closeErr error
	once     sync.Once
}

// Spawn opens the column index for column of type t at path and starts
// the indexer goroutine.
func Spawn(ctx context.Context, path string, t types.Type, column int, opts ...columnindex.Option) (*Indexer, error) {
	ci, err := columnindex.Open(ctx, path, t, column, opts...)
	if err != nil {
		return nil, err
	}
	return Start(ci), nil
}

// Start takes ownership of an initialized column index.
func Start(ci *columnindex.ColumnIndex) *Indexer {
	x := &Indexer{
		ci:      ci,
		mailbox: make(chan request),
		done:    make(chan struct{}),
	}
	go x.loop()
	return x
}

func (x *Indexer) loop() {
	defer close(x.done)
	for req := range x.mailbox {
		var r reply
		switch req.op {
		case opAdd:
			r.err = x.ci.Add(req.slice)
		case opLookup:
			r.hits, r.err = x.ci.Lookup(req.pred.Op, req.pred.RHS)
		case opFlush:
			r.err = x.ci.Flush(req.ctx)
		case opClose:
			r.err = x.ci.Flush(req.ctx)
			req.reply <- r
			return
		}
		req.reply <- r
	}
}

func (x *Indexer) call(ctx context.Context, req request) (*ids.IDs, error) {
	req.ctx = ctx
	req.reply = make(chan reply, 1)
	select {
	case x.mailbox <- req:
	case <-x.done:
		return nil, ec.Wrap(ec.ErrPrecondition, "indexer", ErrClosed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if req.op != opLookup {
		// The loop applies every accepted mutation, so its result must
		// reach the caller.
		r := <-req.reply
		return r.hits, r.err
	}
	select {
	case r := <-req.reply:
		return r.hits, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Add appends the indexed column of s. ctx only bounds the wait for the
// mailbox; an accepted slice is always applied and its result returned.
func (x *Indexer) Add(ctx context.Context, s *tableslice.Slice) error {
	_, err := x.call(ctx, request{op: opAdd, slice: s})
	return err
}

// Lookup answers a curried predicate against the column. It implements
// evaluator.Indexer.
func (x *Indexer) Lookup(ctx context.Context, pred expr.Curried) (*ids.IDs, error) {
	return x.call(ctx, request{op: opLookup, pred: pred})
}

// Flush persists the column index.
func (x *Indexer) Flush(ctx context.Context) error {
	_, err := x.call(ctx, request{op: opFlush})
	return err
}

// Close flushes the column index and stops the indexer. Further requests
// fail with ErrClosed. Every call returns the result of the final flush.
func (x *Indexer) Close(ctx context.Context) error {
	x.once.Do(func() {
		req := request{op: opClose, ctx: ctx, reply: make(chan reply, 1)}
		select {
		case x.mailbox <- req:
			x.closeErr = (<-req.reply).err
		case <-x.done:
		}
		<-x.done
	})
	return x.closeErr
}

// Column returns the column ordinal.
func (x *Indexer) Column() int { return x.ci.Column() }

// Type returns the column type.
func (x *Indexer) Type() types.Type { return x.ci.Type() }
