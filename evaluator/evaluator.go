package evaluator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/ids"
)

// Indexer answers a curried predicate for one column. Implementations must
// return promptly once ctx is done: Run waits for every outstanding Lookup
// before it returns.
type Indexer interface {
	Lookup(ctx context.Context, pred expr.Curried) (*ids.IDs, error)
}

// IndexerFunc adapts a function to Indexer.
type IndexerFunc func(ctx context.Context, pred expr.Curried) (*ids.IDs, error)

// Lookup implements Indexer.
func (f IndexerFunc) Lookup(ctx context.Context, pred expr.Curried) (*ids.IDs, error) {
	return f(ctx, pred)
}

// Triple binds the predicate at Offset to the indexer of its column.
type Triple struct {
	Offset    expr.Offset
	Predicate expr.Curried
	Indexer   Indexer
}

type response struct {
	offset expr.Offset
	hits   *ids.IDs
	err    error
}

// Evaluator evaluates one expression against a fixed set of indexers.
type Evaluator struct {
	expr    expr.Expression
	triples []Triple
	opts    []Option
	o       options
}

// New creates an evaluator for the normalized expression e.
func New(e expr.Expression, triples []Triple, opts ...Option) (*Evaluator, error) {
	if err := expr.Validate(e); err != nil {
		return nil, ec.Wrap(ec.ErrPrecondition, "evaluator", err)
	}
	if len(triples) == 0 {
		return nil, ec.New(ec.ErrPrecondition, "evaluator: empty evaluation list")
	}
	for _, t := range triples {
		if t.Indexer == nil {
			return nil, ec.New(ec.ErrPrecondition, "evaluator: no indexer for %s", t.Offset)
		}
		if _, ok := expr.At(e, t.Offset).(expr.Predicate); !ok {
			return nil, ec.New(ec.ErrPrecondition, "evaluator: no predicate at position %s", t.Offset)
		}
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Evaluator{expr: e, triples: triples, opts: opts, o: o}, nil
}

// Expression returns the evaluated expression.
func (ev *Evaluator) Expression() expr.Expression { return ev.expr }

// Triples returns the evaluation list.
func (ev *Evaluator) Triples() []Triple { return ev.triples }

// Run performs the evaluation and reports to client. It returns after
// client received Done. If ctx ends first the evaluation is canceled and
// Run returns the context error.
func (ev *Evaluator) Run(ctx context.Context, client Client) error {
	state, err := NewState(ev.expr, len(ev.triples), client, ev.opts...)
	if err != nil {
		return err
	}
	start := time.Now()

	// The mailbox holds every response, so lookups never block on send.
	mailbox := make(chan response, len(ev.triples))
	var g errgroup.Group
	g.SetLimit(ev.o.concurrency)

	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for _, t := range ev.triples {
			if ctx.Err() != nil {
				return
			}
			g.Go(func() error {
				hits, err := t.Indexer.Lookup(ctx, t.Predicate)
				mailbox <- response{offset: t.Offset, hits: hits, err: err}
				return nil
			})
		}
	}()

	canceled := false
	for !state.Done() {
		if ctx.Err() != nil {
			canceled = true
			state.Cancel()
			break
		}
		select {
		case r := <-mailbox:
			if r.err != nil {
				err = state.HandleMissingResult(ctx, r.offset, r.err)
			} else {
				err = state.HandleResult(ctx, r.offset, r.hits)
			}
			if err != nil {
				state.logger.Warn("dropping response", "error", err)
			}
		case <-ctx.Done():
			canceled = true
			state.Cancel()
		}
	}

	<-launched
	_ = g.Wait()
	ev.o.metrics.OnQuery(state.Pending(), time.Since(start), canceled)
	if canceled {
		return ctx.Err()
	}
	return nil
}

// Spawn runs the evaluation in a new goroutine. The returned channel
// yields the result of Run and is then closed.
func (ev *Evaluator) Spawn(ctx context.Context, client Client) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		errc <- ev.Run(ctx, client)
	}()
	return errc
}
