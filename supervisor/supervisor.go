// Package supervisor runs all evaluators of a query and merges their
// results into one client stream.
//
// Supervisors are pooled: a [WorkerPool] hands an idle supervisor to each
// query, and the supervisor registers itself with the pool again once the
// query completed.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/eventidx/evaluator"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/ids"
	"github.com/hupe1980/eventidx/logging"
)

// Runner evaluates a query for one partition. *evaluator.Evaluator
// implements it. Run sends Done to the client when it finishes.
type Runner interface {
	Run(ctx context.Context, client evaluator.Client) error
}

// QueryMap assigns the runners of a query to their partitions.
type QueryMap map[uuid.UUID][]Runner

// Len returns the total number of runners.
func (qm QueryMap) Len() int {
	n := 0
	for _, rs := range qm {
		n += len(rs)
	}
	return n
}

// Master receives supervisors that became idle.
type Master interface {
	Register(s *Supervisor)
}

// Supervisor runs the runners of one query at a time.
type Supervisor struct {
	id     int
	master Master
	logger *logging.Logger
}

// New creates a supervisor reporting to master. master may be nil.
func New(id int, master Master, opts ...Option) *Supervisor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.WithComponent("supervisor")
	return &Supervisor{
		id:     id,
		master: master,
		logger: &logging.Logger{Logger: logger.With("supervisor", id)},
	}
}

// ID returns the supervisor id.
func (s *Supervisor) ID() int { return s.id }

// forwarder serializes deltas of concurrent runners and drops their Done.
type forwarder struct {
	mu     sync.Mutex
	client evaluator.Client
	hits   uint64
}

func (f *forwarder) Deliver(delta *ids.IDs) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits += delta.Cardinality()
	f.client.Deliver(delta)
}

func (f *forwarder) Done() {}

// Supervise runs every runner of qm concurrently and forwards their hits
// to client. After all runners returned the client receives exactly one
// Done and the supervisor registers with its master again. Failed runners
// are logged; the returned error is the context error if ctx ended.
func (s *Supervisor) Supervise(ctx context.Context, e expr.Expression, qm QueryMap, client evaluator.Client) error {
	defer func() {
		if s.master != nil {
			s.master.Register(s)
		}
	}()

	start := time.Now()
	logger := s.logger.WithQuery(e.String())
	fwd := &forwarder{client: client}

	var g errgroup.Group
	for partition, runners := range qm {
		for _, r := range runners {
			g.Go(func() error {
				err := r.Run(ctx, fwd)
				if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					logger.WarnContext(ctx, "evaluator failed", "partition", partition.String(), "error", err)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	client.Done()
	logger.DebugContext(ctx, "query complete",
		"partitions", len(qm),
		"evaluators", qm.Len(),
		"hits", fwd.hits,
		"duration", time.Since(start),
	)
	return ctx.Err()
}
