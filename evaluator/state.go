package evaluator

import (
	"context"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/ids"
	"github.com/hupe1980/eventidx/logging"
	"github.com/hupe1980/eventidx/metrics"
)

type partial struct {
	responses int
	hits      *ids.IDs
}

// State is the evaluation state of one expression. It is not safe for
// concurrent use.
type State struct {
	expr    expr.Expression
	leaves  map[string]struct{}
	partial map[string]*partial
	pending int
	sent    *ids.IDs
	client  Client
	done    bool

	logger  *logging.Logger
	metrics metrics.Observer
}

// NewState prepares the evaluation of the normalized expression e for
// pending predicate responses.
func NewState(e expr.Expression, pending int, client Client, opts ...Option) (*State, error) {
	if err := expr.Validate(e); err != nil {
		return nil, ec.Wrap(ec.ErrPrecondition, "evaluate", err)
	}
	if pending <= 0 {
		return nil, ec.New(ec.ErrPrecondition, "evaluate: no predicates to evaluate")
	}
	if client == nil {
		return nil, ec.New(ec.ErrPrecondition, "evaluate: nil client")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	leaves := make(map[string]struct{})
	for _, l := range expr.Leaves(e) {
		leaves[l.Offset.Key()] = struct{}{}
	}
	return &State{
		expr:    e,
		leaves:  leaves,
		partial: make(map[string]*partial),
		pending: pending,
		sent:    ids.New(),
		client:  client,
		logger:  o.logger.WithComponent("evaluator").WithQuery(e.String()),
		metrics: o.metrics,
	}, nil
}

// HandleResult merges hits as a response for the predicate at position,
// delivers the ids the expression gained and completes the evaluation
// after the last expected response.
func (s *State) HandleResult(ctx context.Context, position expr.Offset, hits *ids.IDs) error {
	if err := s.check(position); err != nil {
		return err
	}
	key := position.Key()
	p, ok := s.partial[key]
	if !ok {
		p = &partial{hits: ids.New()}
		s.partial[key] = p
	}
	p.responses++
	if hits != nil {
		p.hits.Or(hits)
	}

	delta := ids.Difference(s.evaluate(s.expr, expr.Root), s.sent)
	if !delta.IsEmpty() {
		s.sent.Or(delta)
		s.metrics.OnDelta(delta.Cardinality())
		s.client.Deliver(delta)
	}
	s.decrement()
	return nil
}

// HandleMissingResult accounts for a predicate response that failed. The
// hits known so far are kept.
func (s *State) HandleMissingResult(ctx context.Context, position expr.Offset, err error) error {
	if cerr := s.check(position); cerr != nil {
		return cerr
	}
	s.logger.LogMissingResult(ctx, position.String(), err)
	s.decrement()
	return nil
}

func (s *State) check(position expr.Offset) error {
	if s.done {
		return ec.New(ec.ErrPrecondition, "evaluate: response for %s after completion", position)
	}
	if _, ok := s.leaves[position.Key()]; !ok {
		return ec.New(ec.ErrPrecondition, "evaluate: no predicate at position %s", position)
	}
	return nil
}

func (s *State) decrement() {
	s.pending--
	if s.pending == 0 {
		s.finish()
	}
}

func (s *State) finish() {
	if s.done {
		return
	}
	s.done = true
	s.client.Done()
}

// Cancel completes the evaluation early. The client receives Done unless
// it already did.
func (s *State) Cancel() {
	s.finish()
}

// evaluate computes the hits of e at offset o from the partial results.
func (s *State) evaluate(e expr.Expression, o expr.Offset) *ids.IDs {
	switch x := e.(type) {
	case expr.Predicate:
		if p, ok := s.partial[o.Key()]; ok {
			return p.hits.Clone()
		}
		return ids.New()
	case expr.Conjunction:
		if len(x) == 0 {
			return ids.New()
		}
		out := s.evaluate(x[0], o.Child(0))
		for i := 1; i < len(x) && !out.IsEmpty(); i++ {
			out.And(s.evaluate(x[i], o.Child(i)))
		}
		return out
	case expr.Disjunction:
		out := ids.New()
		for i, c := range x {
			out.Or(s.evaluate(c, o.Child(i)))
		}
		return out
	default:
		return ids.New()
	}
}

// Done reports whether the evaluation is complete.
func (s *State) Done() bool { return s.done }

// Pending returns the number of outstanding responses.
func (s *State) Pending() int { return max(s.pending, 0) }

// Result evaluates the expression over the hits received so far.
func (s *State) Result() *ids.IDs { return s.evaluate(s.expr, expr.Root) }

// Responses returns how many responses arrived for position.
func (s *State) Responses(position expr.Offset) int {
	if p, ok := s.partial[position.Key()]; ok {
		return p.responses
	}
	return 0
}
