// Package columnindex materializes, persists and queries the value index of
// one column of one partition.
//
// A ColumnIndex is owned by exactly one goroutine; it has no internal
// locking. Rows are appended in increasing global row order. The index
// file is always written whole, so a reader observes either the previous
// or the new flush.
package columnindex

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/ids"
	"github.com/hupe1980/eventidx/internal/fs"
	"github.com/hupe1980/eventidx/logging"
	"github.com/hupe1980/eventidx/tableslice"
	"github.com/hupe1980/eventidx/types"
	"github.com/hupe1980/eventidx/valueindex"
)

// ColumnIndex owns the value index of a single column.
type ColumnIndex struct {
	path   string
	typ    types.Type
	column int
	skip   bool

	idx       valueindex.ValueIndex // nil until Init succeeds
	watermark uint64

	opts   options
	logger *logging.Logger
}

// New creates a column index for the column at ordinal column of type t,
// persisted at path. It performs no I/O; call Init before use.
func New(path string, t types.Type, column int, opts ...Option) *ColumnIndex {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &ColumnIndex{
		path:   path,
		typ:    t,
		column: column,
		skip:   t.HasSkipAttribute(),
		opts:   o,
		logger: o.logger.WithComponent("columnindex").WithColumn(column, path),
	}
}

// Open is New followed by Init.
func Open(ctx context.Context, path string, t types.Type, column int, opts ...Option) (*ColumnIndex, error) {
	c := New(path, t, column, opts...)
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Init loads the index file if it exists and constructs an empty value
// index otherwise. On failure the value index stays absent and every
// further Add or Lookup fails with ec.ErrPrecondition.
func (c *ColumnIndex) Init(ctx context.Context) error {
	if c.idx != nil {
		return nil
	}
	exists, err := fs.Exists(c.opts.fs, c.path)
	if err != nil {
		return ec.Column(ec.ErrPersistence, "stat", c.path, c.column, err)
	}
	if exists {
		return c.load(ctx)
	}
	idx, err := c.opts.registry.Make(c.typ)
	if err != nil {
		return ec.Column(ec.ErrConstruction, "create value index", c.path, c.column, err)
	}
	c.idx = idx
	c.watermark = 0
	return nil
}

func (c *ColumnIndex) load(ctx context.Context) (err error) {
	start := time.Now()
	var h header
	defer func() {
		c.logger.LogLoad(ctx, h.watermark, err)
		c.opts.metrics.OnLoad(time.Since(start), err)
	}()

	data, err := fs.ReadFile(c.opts.fs, c.path)
	if err != nil {
		return ec.Column(ec.ErrPersistence, "load", c.path, c.column, err)
	}
	h, state, err := decodeFile(data)
	if err != nil {
		return ec.Column(ec.ErrPersistence, "load", c.path, c.column, err)
	}
	idx, err := c.opts.registry.Make(c.typ)
	if err != nil {
		return ec.Column(ec.ErrConstruction, "create value index", c.path, c.column, err)
	}
	if err := idx.UnmarshalBinary(state); err != nil {
		return ec.Column(ec.ErrPersistence, "load", c.path, c.column, err)
	}
	if idx.Offset() != h.watermark {
		return ec.Column(ec.ErrPersistence, "load", c.path, c.column,
			errors.New("watermark does not match the persisted index size"))
	}
	c.idx = idx
	c.watermark = h.watermark
	return nil
}

// Add appends the target column of every row of s at s.Offset()+row. It
// is a no-op for skipped columns.
func (c *ColumnIndex) Add(s *tableslice.Slice) (err error) {
	if c.skip {
		return nil
	}
	if c.idx == nil {
		return c.absent("add")
	}
	start := time.Now()
	defer func() {
		c.opts.metrics.OnAppend(s.Rows(), time.Since(start), err)
	}()
	if err := s.AppendColumnToIndex(c.column, c.idx); err != nil {
		return ec.Column(ec.ErrPrecondition, "add", c.path, c.column, err)
	}
	return nil
}

// Lookup returns the row ids whose value satisfies "value op rhs".
func (c *ColumnIndex) Lookup(op expr.Op, rhs types.Data) (hits *ids.IDs, err error) {
	if c.idx == nil {
		return nil, c.absent("lookup")
	}
	start := time.Now()
	defer func() {
		c.opts.metrics.OnLookup(hits.Cardinality(), time.Since(start), err)
	}()
	hits, err = c.idx.Lookup(op, rhs)
	if err != nil {
		kind := ec.KindOf(err)
		if kind == nil {
			kind = ec.ErrLogic
		}
		return nil, ec.Column(kind, "lookup", c.path, c.column, err)
	}
	return hits, nil
}

// Flush writes the full value index and its size to the index file and
// advances the watermark. It is a no-op if the index is absent or clean.
func (c *ColumnIndex) Flush(ctx context.Context) (err error) {
	if c.idx == nil || !c.Dirty() {
		return nil
	}
	var (
		start = time.Now()
		total = c.idx.Offset()
		added = total - c.watermark
		size  int64
	)
	defer func() {
		c.logger.LogFlush(ctx, added, total, err)
		c.opts.metrics.OnFlush(size, time.Since(start), err)
	}()

	state, err := c.idx.MarshalBinary()
	if err != nil {
		return ec.Column(ec.ErrPersistence, "flush", c.path, c.column, err)
	}
	data, err := encodeFile(total, state, c.opts.compression)
	if err != nil {
		return ec.Column(ec.ErrPersistence, "flush", c.path, c.column, err)
	}
	if err := c.opts.rc.AcquireIO(ctx, len(data)); err != nil {
		return ec.Column(ec.ErrPersistence, "flush", c.path, c.column, err)
	}
	if err := fs.WriteFileAtomic(c.opts.fs, c.path, data); err != nil {
		return ec.Column(ec.ErrPersistence, "flush", c.path, c.column, err)
	}
	size = int64(len(data))
	c.watermark = total
	return nil
}

// Close flushes pending rows. Failures are logged and reported to the
// metrics observer; there is no caller left to handle them. A column index
// owned by an indexer.Indexer is torn down by Indexer.Close instead, which
// returns the flush error.
func (c *ColumnIndex) Close() {
	if err := c.Flush(context.Background()); err != nil {
		c.logger.Error("failed to flush column index on close", "error", err)
	}
}

func (c *ColumnIndex) absent(op string) error {
	return ec.Column(ec.ErrPrecondition, op, c.path, c.column, errors.New("value index absent"))
}

// Dirty reports whether rows were added since the last flush.
func (c *ColumnIndex) Dirty() bool {
	return c.idx != nil && c.watermark < c.idx.Offset()
}

// Watermark returns the number of rows covered by the last flush.
func (c *ColumnIndex) Watermark() uint64 { return c.watermark }

// Offset returns one past the highest indexed row id, or 0 if the index
// is absent.
func (c *ColumnIndex) Offset() uint64 {
	if c.idx == nil {
		return 0
	}
	return c.idx.Offset()
}

// Type returns the declared column type.
func (c *ColumnIndex) Type() types.Type { return c.typ }

// Column returns the column ordinal.
func (c *ColumnIndex) Column() int { return c.column }

// Path returns the index file path.
func (c *ColumnIndex) Path() string { return c.path }

// Skipped reports whether the column carries the skip attribute.
func (c *ColumnIndex) Skipped() bool { return c.skip }

// Loaded reports whether the value index is present.
func (c *ColumnIndex) Loaded() bool { return c.idx != nil }
