// Package partition groups the column indexes and synopses of a
// contiguous range of rows.
//
// An active partition accepts table slices until it is sealed. Sealing
// shrinks buffered synopses, flushes every column index and writes the
// synopses and a metadata record to the blob store:
//
//	<dir>/<uuid>/index/<field>  column index files
//	<uuid>/synopses             synopses blob
//	<uuid>/meta                 metadata, written last
//
// Queries first ask Check whether the synopses rule the partition out and
// then evaluate the predicates against the column indexes with Triples.
package partition

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/eventidx/blobstore"
	"github.com/hupe1980/eventidx/codec"
	"github.com/hupe1980/eventidx/columnindex"
	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/evaluator"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/indexer"
	"github.com/hupe1980/eventidx/internal/bloom"
	"github.com/hupe1980/eventidx/logging"
	"github.com/hupe1980/eventidx/synopsis"
	"github.com/hupe1980/eventidx/tableslice"
	"github.com/hupe1980/eventidx/types"
)

// Partition is a horizontal slice of the index. Add, Seal and Close must
// not be called concurrently; Check and Triples may run concurrently with
// each other once the partition is sealed.
type Partition struct {
	id     uuid.UUID
	dir    string
	layout types.Type
	fields []types.Field

	indexers []*indexer.Indexer // nil for columns without value index
	synopses map[int]synopsis.Synopsis

	offset uint64
	rows   uint64
	sealed bool
	broken error // set when an Add reached only some columns

	opts   options
	logger *logging.Logger
}

// New creates an empty active partition for rows starting at offset. dir
// is the parent directory of the partition's column index directory.
func New(ctx context.Context, dir string, layout types.Type, offset uint64, opts ...Option) (*Partition, error) {
	if layout.Kind != types.KindRecord {
		return nil, ec.New(ec.ErrPrecondition, "partition layout must be a record, got %s", layout)
	}
	p := newPartition(uuid.New(), dir, layout, opts)
	p.offset = offset
	if err := p.spawnIndexers(ctx); err != nil {
		return nil, err
	}
	for col, f := range p.fields {
		s, err := p.opts.synopses.Make(f.Type, p.opts.synopsisOpts)
		if err != nil {
			p.logger.WarnContext(ctx, "no synopsis for column", "column", col, "field", f.Name, "error", err)
			continue
		}
		if s != nil {
			p.synopses[col] = s
		}
	}
	p.logger.DebugContext(ctx, "created partition", "offset", offset, "columns", len(p.fields), "synopses", len(p.synopses))
	return p, nil
}

func newPartition(id uuid.UUID, dir string, layout types.Type, opts []Option) *Partition {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = blobstore.NewLocalStore(dir)
	}
	return &Partition{
		id:       id,
		dir:      dir,
		layout:   layout,
		fields:   layout.Flatten(),
		synopses: make(map[int]synopsis.Synopsis),
		opts:     o,
		logger:   o.logger.WithComponent("partition").WithPartition(id.String()),
	}
}

// spawnIndexers starts one indexer per indexable column. Columns whose
// type has no value index are logged and left without indexer.
func (p *Partition) spawnIndexers(ctx context.Context) error {
	columnOpts := append([]columnindex.Option{
		columnindex.WithLogger(p.opts.logger),
		columnindex.WithMetricsObserver(p.opts.metrics),
		columnindex.WithResourceController(p.opts.rc),
	}, p.opts.columnOpts...)

	p.indexers = make([]*indexer.Indexer, len(p.fields))
	for col, f := range p.fields {
		x, err := indexer.Spawn(ctx, p.columnPath(f), f.Type, col, columnOpts...)
		if err != nil {
			if errors.Is(err, ec.ErrConstruction) {
				p.logger.WarnContext(ctx, "skipping unindexable column", "column", col, "field", f.Name, "type", f.Type.String())
				continue
			}
			p.closeIndexers(ctx)
			return err
		}
		p.indexers[col] = x
	}
	return nil
}

func (p *Partition) columnPath(f types.Field) string {
	return filepath.Join(p.dir, p.id.String(), "index", f.Name)
}

// Add ingests a table slice. The slice must continue the partition's row
// range and share its layout.
func (p *Partition) Add(ctx context.Context, s *tableslice.Slice) error {
	if p.sealed {
		return ec.New(ec.ErrPrecondition, "partition %s is sealed", p.id)
	}
	if !s.Layout().Equal(p.layout) {
		return ec.New(ec.ErrPrecondition, "slice layout %s does not match partition layout %s", s.Layout(), p.layout)
	}
	if want := p.offset + p.rows; s.Offset() != want {
		return ec.New(ec.ErrPrecondition, "slice offset %d, expected %d", s.Offset(), want)
	}
	if p.broken != nil {
		return ec.Wrap(ec.ErrLogic, "partition "+p.id.String()+" is inconsistent", p.broken)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// Once the first column accepted the slice, all columns must.
	applyCtx := context.WithoutCancel(ctx)
	applied := 0
	for col, x := range p.indexers {
		if x == nil {
			continue
		}
		if err := x.Add(applyCtx, s); err != nil {
			if applied > 0 {
				p.broken = err
				p.logger.ErrorContext(ctx, "partial add left partition inconsistent", "column", col, "error", err)
				return ec.Wrap(ec.ErrLogic, "partition "+p.id.String()+" is inconsistent", err)
			}
			return err
		}
		applied++
	}
	for col, syn := range p.synopses {
		for _, v := range s.Column(col) {
			syn.Add(v)
		}
	}
	p.rows += uint64(s.Rows())
	return nil
}

// Seal finalizes the synopses, flushes all column indexes and persists the
// synopses. A sealed partition rejects further slices. A failed Seal can
// be retried.
func (p *Partition) Seal(ctx context.Context) error {
	if p.sealed {
		return nil
	}
	start := time.Now()

	finals := make(map[int]synopsis.Synopsis, len(p.synopses))
	for col, s := range p.synopses {
		fin, err := p.finalize(ctx, s)
		if err != nil {
			return err
		}
		finals[col] = fin
	}

	if err := p.flush(ctx); err != nil {
		return err
	}

	blob, err := encodeSynopses(finals, p.opts.compression)
	if err != nil {
		return ec.Wrap(ec.ErrPersistence, "encode synopses", err)
	}
	if err := p.opts.store.Put(ctx, p.blobName("synopses"), blob); err != nil {
		return ec.Wrap(ec.ErrPersistence, "write synopses", err)
	}

	layout, err := p.layout.MarshalBinary()
	if err != nil {
		return ec.Wrap(ec.ErrPersistence, "encode layout", err)
	}
	m, err := codec.Default.Marshal(meta{
		Version:  metaVersion,
		ID:       p.id.String(),
		Layout:   layout,
		Offset:   p.offset,
		Rows:     p.rows,
		Synopses: len(finals),
	})
	if err != nil {
		return ec.Wrap(ec.ErrPersistence, "encode partition meta", err)
	}
	if err := p.opts.store.Put(ctx, p.blobName("meta"), m); err != nil {
		return ec.Wrap(ec.ErrPersistence, "write partition meta", err)
	}

	p.synopses = finals
	p.sealed = true
	p.logger.InfoContext(ctx, "sealed partition",
		"rows", p.rows,
		"synopses", len(finals),
		"synopses_bytes", len(blob),
		"duration", time.Since(start),
	)
	return nil
}

func (p *Partition) finalize(ctx context.Context, s synopsis.Synopsis) (synopsis.Synopsis, error) {
	buffered, ok := s.(*synopsis.BufferedSynopsis)
	if !ok {
		return synopsis.Finalize(s)
	}
	observed := uint64(buffered.Len())
	fin, err := buffered.Shrink()
	var n uint64
	if err == nil {
		if attr, ok := fin.Type().Attribute(types.AttrSynopsis); ok {
			if params, perr := bloom.ParseAttribute(attr); perr == nil {
				n = params.N
			}
		}
		p.opts.metrics.OnShrink(observed, n)
	}
	p.logger.LogShrink(ctx, observed, n, err)
	return fin, err
}

// flush persists all column indexes in parallel. The resource controller
// bounds the number of concurrent flushes.
func (p *Partition) flush(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, x := range p.indexers {
		if x == nil {
			continue
		}
		g.Go(func() error {
			if err := p.opts.rc.AcquireWorker(gctx); err != nil {
				return err
			}
			defer p.opts.rc.ReleaseWorker()
			return x.Flush(gctx)
		})
	}
	return g.Wait()
}

func (p *Partition) blobName(kind string) string {
	return p.id.String() + "/" + kind
}

// Check evaluates e against the synopses. False means no row of the
// partition can match. Columns without synopsis never rule out a match.
func (p *Partition) Check(e expr.Expression) synopsis.Result {
	switch x := e.(type) {
	case expr.Predicate:
		return p.checkPredicate(x)
	case expr.Conjunction:
		out := synopsis.True
		for _, c := range x {
			switch p.Check(c) {
			case synopsis.False:
				return synopsis.False
			case synopsis.Indeterminate:
				out = synopsis.Indeterminate
			}
		}
		return out
	case expr.Disjunction:
		out := synopsis.False
		for _, c := range x {
			switch p.Check(c) {
			case synopsis.True:
				return synopsis.True
			case synopsis.Indeterminate:
				out = synopsis.Indeterminate
			}
		}
		return out
	default:
		return synopsis.Indeterminate
	}
}

// checkPredicate folds the synopsis results of every column the predicate
// resolves to. A predicate without matching column cannot match.
func (p *Partition) checkPredicate(pred expr.Predicate) synopsis.Result {
	if _, _, ok := expr.Curry(pred); !ok {
		return synopsis.Indeterminate
	}
	resolutions := expr.Resolve(pred, p.layout)
	if len(resolutions) == 0 {
		return synopsis.False
	}
	out := synopsis.False
	for _, r := range resolutions {
		s, ok := p.synopses[r.Column]
		if !ok {
			out = synopsis.Indeterminate
			continue
		}
		switch s.Lookup(r.Predicate.Op, r.Predicate.RHS) {
		case synopsis.True:
			return synopsis.True
		case synopsis.Indeterminate:
			out = synopsis.Indeterminate
		}
	}
	return out
}

// Triples binds the predicates of e to the indexers of this partition.
func (p *Partition) Triples(e expr.Expression) []evaluator.Triple {
	var out []evaluator.Triple
	for _, r := range expr.Resolve(e, p.layout) {
		x := p.indexers[r.Column]
		if x == nil {
			continue
		}
		out = append(out, evaluator.Triple{Offset: r.Offset, Predicate: r.Predicate, Indexer: x})
	}
	return out
}

// Close stops all indexers. Dirty column indexes are flushed.
func (p *Partition) Close(ctx context.Context) error {
	return p.closeIndexers(ctx)
}

func (p *Partition) closeIndexers(ctx context.Context) error {
	var errs []error
	for _, x := range p.indexers {
		if x != nil {
			errs = append(errs, x.Close(ctx))
		}
	}
	return errors.Join(errs...)
}

// ID returns the partition id.
func (p *Partition) ID() uuid.UUID { return p.id }

// Layout returns the partition layout.
func (p *Partition) Layout() types.Type { return p.layout }

// Offset returns the id of the first row.
func (p *Partition) Offset() uint64 { return p.offset }

// Rows returns the number of ingested rows.
func (p *Partition) Rows() uint64 { return p.rows }

// Sealed reports whether the partition was sealed.
func (p *Partition) Sealed() bool { return p.sealed }

// Synopsis returns the synopsis of column, if any.
func (p *Partition) Synopsis(column int) (synopsis.Synopsis, bool) {
	s, ok := p.synopses[column]
	return s, ok
}
