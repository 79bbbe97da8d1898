package eventidx

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/eventidx/blobstore"
	"github.com/hupe1980/eventidx/columnindex"
	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/evaluator"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/ids"
	"github.com/hupe1980/eventidx/internal/resource"
	"github.com/hupe1980/eventidx/logging"
	"github.com/hupe1980/eventidx/partition"
	"github.com/hupe1980/eventidx/supervisor"
	"github.com/hupe1980/eventidx/synopsis"
	"github.com/hupe1980/eventidx/tableslice"
	"github.com/hupe1980/eventidx/types"
)

// Index is a set of partitions over one layout. It is safe for concurrent
// use.
type Index struct {
	dir      string
	layout   types.Type
	maxRows  uint64
	partOpts []partition.Option
	evOpts   []evaluator.Option
	pool     *supervisor.WorkerPool
	logger   *logging.Logger

	mu     sync.Mutex // guards the fields below
	active *partition.Partition
	sealed []*partition.Partition // ordered by offset
	next   uint64
	closed bool
}

// Open opens the index in dir and reloads its sealed partitions. New rows
// are numbered after the last persisted row.
func Open(ctx context.Context, dir string, layout types.Type, opts ...Option) (*Index, error) {
	if layout.Kind != types.KindRecord {
		return nil, &ErrInvalidLayout{Layout: layout}
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	synOpts, err := synopsis.ParseOptions(o.settings)
	if err != nil {
		return nil, err
	}
	if synOpts.MaxPartitionSize == 0 {
		synOpts.MaxPartitionSize = o.maxPartitionSize
	}
	store := o.store
	if store == nil {
		store = blobstore.NewLocalStore(dir)
	}
	var rc *resource.Controller
	if o.limits != nil {
		rc = resource.NewController(*o.limits)
	}

	logger := o.logger.WithComponent("index")
	idx := &Index{
		dir:     dir,
		layout:  layout,
		maxRows: synOpts.MaxPartitionSize,
		partOpts: []partition.Option{
			partition.WithLogger(o.logger),
			partition.WithMetricsObserver(o.metrics),
			partition.WithBlobStore(store),
			partition.WithSynopsisRegistry(o.synopses),
			partition.WithSynopsisOptions(synOpts),
			partition.WithResourceController(rc),
			partition.WithCompression(o.compression),
			partition.WithColumnIndexOptions(columnindex.WithCompression(o.compression)),
		},
		evOpts: []evaluator.Option{
			evaluator.WithLogger(o.logger),
			evaluator.WithMetricsObserver(o.metrics),
			evaluator.WithConcurrency(o.concurrency),
		},
		logger: logger,
	}

	pids, err := partition.List(ctx, store)
	if err != nil {
		return nil, err
	}
	for _, id := range pids {
		p, err := partition.Open(ctx, dir, id, idx.partOpts...)
		if err != nil {
			if cerr := idx.closePartitions(ctx); cerr != nil {
				logger.ErrorContext(ctx, "failed to close partitions after open error", "error", cerr)
			}
			return nil, err
		}
		idx.sealed = append(idx.sealed, p)
		idx.next = max(idx.next, p.Offset()+p.Rows())
	}
	slices.SortFunc(idx.sealed, func(a, b *partition.Partition) int {
		switch {
		case a.Offset() < b.Offset():
			return -1
		case a.Offset() > b.Offset():
			return 1
		}
		return 0
	})

	idx.pool = supervisor.NewWorkerPool(o.workers, supervisor.WithLogger(o.logger))
	logger.InfoContext(ctx, "opened index",
		"dir", dir,
		"partitions", len(idx.sealed),
		"rows", idx.next,
		"max_partition_size", idx.maxRows,
	)
	return idx, nil
}

// Add assigns s the next free row ids and ingests it into the active
// partition. The index takes ownership of s. It returns the id of the
// first row.
func (idx *Index) Add(ctx context.Context, s *tableslice.Slice) (uint64, error) {
	if s.Rows() == 0 {
		return 0, ErrEmptySlice
	}
	if !s.Layout().Equal(idx.layout) {
		return 0, &ErrLayoutMismatch{Expected: idx.layout, Actual: s.Layout()}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return 0, ErrClosed
	}

	rows := uint64(s.Rows())
	if idx.active != nil && idx.active.Rows()+rows > idx.maxRows {
		if err := idx.rollover(ctx); err != nil {
			return 0, err
		}
	}
	if idx.active == nil {
		p, err := partition.New(ctx, idx.dir, idx.layout, idx.next, idx.partOpts...)
		if err != nil {
			return 0, err
		}
		idx.active = p
	}

	offset := idx.next
	s.SetOffset(offset)
	if err := idx.active.Add(ctx, s); err != nil {
		return 0, err
	}
	idx.next += rows

	if idx.active.Rows() >= idx.maxRows {
		if err := idx.rollover(ctx); err != nil {
			return offset, err
		}
	}
	return offset, nil
}

// Rollover seals the active partition. It is a no-op if the active
// partition holds no rows.
func (idx *Index) Rollover(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}
	return idx.rollover(ctx)
}

// rollover requires idx.mu. A partition that fails to seal stays active so
// that the next rollover retries.
func (idx *Index) rollover(ctx context.Context) error {
	p := idx.active
	if p == nil || p.Rows() == 0 {
		return nil
	}
	if err := p.Seal(ctx); err != nil {
		idx.logger.ErrorContext(ctx, "failed to seal partition", "partition", p.ID().String(), "error", err)
		return err
	}
	idx.sealed = append(idx.sealed, p)
	idx.active = nil
	return nil
}

// Query evaluates e over all partitions and streams the matching row ids
// to client. Partitions ruled out by their synopses are skipped. Query
// returns after client received Done.
func (idx *Index) Query(ctx context.Context, e expr.Expression, client evaluator.Client) error {
	if client == nil {
		return ec.New(ec.ErrPrecondition, "query without client")
	}
	normalized, err := expr.Normalize(e)
	if err != nil {
		return ec.Wrap(ec.ErrPrecondition, "normalize query", err)
	}

	start := time.Now()
	qm, skipped, err := idx.plan(normalized)
	if err != nil {
		return err
	}
	idx.logger.WithQuery(normalized.String()).DebugContext(ctx, "planned query",
		"candidates", len(qm),
		"skipped", skipped,
		"evaluators", qm.Len(),
		"duration", time.Since(start),
	)
	err = idx.pool.Supervise(ctx, normalized, qm, client)
	if errors.Is(err, supervisor.ErrPoolClosed) {
		return ErrClosed
	}
	return err
}

// plan builds one evaluator per candidate partition.
func (idx *Index) plan(e expr.Expression) (supervisor.QueryMap, int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil, 0, ErrClosed
	}

	candidates := idx.sealed
	if idx.active != nil {
		candidates = append(slices.Clip(candidates), idx.active)
	}

	qm := make(supervisor.QueryMap, len(candidates))
	skipped := 0
	for _, p := range candidates {
		if p.Check(e) == synopsis.False {
			skipped++
			continue
		}
		triples := p.Triples(e)
		if len(triples) == 0 {
			skipped++
			continue
		}
		ev, err := evaluator.New(e, triples, idx.evOpts...)
		if err != nil {
			return nil, 0, err
		}
		qm[p.ID()] = []supervisor.Runner{ev}
	}
	return qm, skipped, nil
}

// Lookup evaluates e and returns all matching row ids.
func (idx *Index) Lookup(ctx context.Context, e expr.Expression) (*ids.IDs, error) {
	c := evaluator.NewCollector()
	if err := idx.Query(ctx, e, c); err != nil {
		return nil, err
	}
	return c.Result(), nil
}

// Close waits for running queries, seals the active partition and stops
// all partitions. It is idempotent.
func (idx *Index) Close(ctx context.Context) error {
	idx.mu.Lock()
	if idx.closed {
		idx.mu.Unlock()
		return nil
	}
	idx.closed = true
	idx.mu.Unlock()

	idx.pool.Close()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	err := idx.rollover(ctx)
	return errors.Join(err, idx.closePartitions(ctx))
}

func (idx *Index) closePartitions(ctx context.Context) error {
	var errs []error
	for _, p := range idx.sealed {
		errs = append(errs, p.Close(ctx))
	}
	if idx.active != nil {
		errs = append(errs, idx.active.Close(ctx))
	}
	return errors.Join(errs...)
}

// Layout returns the layout of the index.
func (idx *Index) Layout() types.Type { return idx.layout }

// Rows returns the number of rows added so far, including reloaded ones.
func (idx *Index) Rows() uint64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.next
}

// Partitions returns the number of sealed partitions and whether an
// active partition exists.
func (idx *Index) Partitions() (sealed int, active bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.sealed), idx.active != nil
}
