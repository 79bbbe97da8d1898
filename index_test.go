package eventidx

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventidx/blobstore"
	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/evaluator"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/ids"
	"github.com/hupe1980/eventidx/metrics"
	"github.com/hupe1980/eventidx/tableslice"
	"github.com/hupe1980/eventidx/types"
)

var layout = types.RecordType(
	types.Field{Name: "ts", Type: types.TimeType()},
	types.Field{Name: "src", Type: types.AddressType()},
	types.Field{Name: "port", Type: types.CountType()},
	types.Field{Name: "proto", Type: types.StringType()},
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func generate(t *testing.T, seed uint64, slices int) []*tableslice.Slice {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed^0x5eed))
	out, err := tableslice.Generate(rng, layout, tableslice.GenerateOptions{
		Slices:      slices,
		Rows:        50,
		Cardinality: 10,
		NilRate:     0.05,
	})
	require.NoError(t, err)
	return out
}

func open(t *testing.T, dir string, opts ...Option) *Index {
	t.Helper()
	idx, err := Open(t.Context(), dir, layout, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close(context.Background()) })
	return idx
}

func addAll(t *testing.T, idx *Index, slices []*tableslice.Slice) {
	t.Helper()
	for _, s := range slices {
		_, err := idx.Add(t.Context(), s)
		require.NoError(t, err)
	}
}

func column(name string) int {
	for i, f := range layout.Flatten() {
		if f.Name == name {
			return i
		}
	}
	panic("unknown field " + name)
}

// matches evaluates a normalized expression row by row.
func matches(e expr.Expression, row []types.Data) bool {
	switch x := e.(type) {
	case expr.Predicate:
		v := row[column(x.LHS.(expr.FieldExtractor).Name)]
		return !v.IsNil() && expr.Evaluate(v, x.Op, x.RHS.(expr.Value).Data)
	case expr.Conjunction:
		for _, c := range x {
			if !matches(c, row) {
				return false
			}
		}
		return true
	case expr.Disjunction:
		for _, c := range x {
			if matches(c, row) {
				return true
			}
		}
		return false
	}
	return false
}

func bruteForce(slices []*tableslice.Slice, e expr.Expression) *ids.IDs {
	out := ids.New()
	for _, s := range slices {
		for row := range s.Rows() {
			if matches(e, s.Row(row)) {
				out.Add(s.Offset() + uint64(row))
			}
		}
	}
	return out
}

var queries = []expr.Expression{
	expr.Field("port", expr.Equal, types.Count(3)),
	expr.Field("port", expr.Less, types.Count(4)),
	expr.Field("src", expr.Equal, types.MustParseAddress("10.0.0.7")),
	expr.Field("src", expr.Equal, types.MustParseAddress("192.168.1.1")),
	expr.Field("proto", expr.Equal, types.String("value-2")),
	expr.Field("ts", expr.GreaterEqual, types.Time(epoch.Add(5*time.Minute))),
	expr.And(
		expr.Field("port", expr.Greater, types.Count(2)),
		expr.Field("src", expr.Equal, types.MustParseAddress("10.0.0.1")),
	),
	expr.Or(
		expr.Field("proto", expr.Equal, types.String("value-1")),
		expr.Field("port", expr.Equal, types.Count(9)),
	),
}

func assertMatchesBruteForce(t *testing.T, idx *Index, slices []*tableslice.Slice) {
	t.Helper()
	for _, q := range queries {
		got, err := idx.Lookup(t.Context(), q)
		require.NoError(t, err)
		want := bruteForce(slices, q)
		require.True(t, want.Equal(got), "%s: want %s got %s", q, want, got)
	}
}

func TestAddRollsOver(t *testing.T) {
	idx := open(t, t.TempDir(), WithMaxPartitionSize(100))

	slices := generate(t, 1, 5)
	for i, s := range slices {
		offset, err := idx.Add(t.Context(), s)
		require.NoError(t, err)
		assert.Equal(t, uint64(i*50), offset)
		assert.Equal(t, uint64(i*50), s.Offset())
	}
	assert.Equal(t, uint64(250), idx.Rows())

	sealed, active := idx.Partitions()
	assert.Equal(t, 2, sealed)
	assert.True(t, active)

	require.NoError(t, idx.Rollover(t.Context()))
	sealed, active = idx.Partitions()
	assert.Equal(t, 3, sealed)
	assert.False(t, active)
	require.NoError(t, idx.Rollover(t.Context()))
}

func TestOversizedSliceGetsOwnPartition(t *testing.T) {
	idx := open(t, t.TempDir(), WithMaxPartitionSize(40))
	addAll(t, idx, generate(t, 2, 2))

	sealed, active := idx.Partitions()
	assert.Equal(t, 2, sealed)
	assert.False(t, active)
}

func TestLookupMatchesBruteForce(t *testing.T) {
	observer := &metrics.Basic{}
	idx := open(t, t.TempDir(),
		WithMaxPartitionSize(100),
		WithMetricsObserver(observer),
		WithWorkers(2),
		WithEvaluatorConcurrency(2),
	)
	slices := generate(t, 3, 5)
	addAll(t, idx, slices)

	assertMatchesBruteForce(t, idx, slices)
	assert.Zero(t, observer.QueryCanceled.Load())
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	opts := []Option{WithMaxPartitionSize(100), WithCompression(CompressionZstd)}

	idx, err := Open(t.Context(), dir, layout, opts...)
	require.NoError(t, err)
	slices := generate(t, 4, 5)
	addAll(t, idx, slices)
	require.NoError(t, idx.Close(t.Context()))
	require.NoError(t, idx.Close(t.Context()))

	reopened := open(t, dir, opts...)
	assert.Equal(t, uint64(250), reopened.Rows())
	sealed, active := reopened.Partitions()
	assert.Equal(t, 3, sealed)
	assert.False(t, active)
	assertMatchesBruteForce(t, reopened, slices)

	more := generate(t, 5, 1)
	offset, err := reopened.Add(t.Context(), more[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(250), offset)
	assertMatchesBruteForce(t, reopened, append(slices, more...))
}

func TestReopenWithBlobStore(t *testing.T) {
	dir := t.TempDir()
	store := blobstore.NewMemoryStore()

	idx, err := Open(t.Context(), dir, layout, WithBlobStore(store), WithMaxPartitionSize(50),
		WithCompression(CompressionLZ4),
		WithResourceLimits(ResourceLimits{MaxWorkers: 2, IOLimitBytesPerSec: 1 << 30}))
	require.NoError(t, err)
	slices := generate(t, 6, 3)
	addAll(t, idx, slices)
	require.NoError(t, idx.Close(t.Context()))

	names, err := store.List(t.Context(), "")
	require.NoError(t, err)
	assert.Len(t, names, 6)

	reopened := open(t, dir, WithBlobStore(store))
	assertMatchesBruteForce(t, reopened, slices)
}

func timeSlice(t *testing.T, start time.Time, rows int) *tableslice.Slice {
	t.Helper()
	b, err := tableslice.NewBuilder(layout)
	require.NoError(t, err)
	for i := range rows {
		require.NoError(t, b.Add(
			types.Time(start.Add(time.Duration(i)*time.Second)),
			types.MustParseAddress("10.0.0.1"),
			types.Count(uint64(i)),
			types.String("tcp"),
		))
	}
	return b.Finish()
}

func TestQuerySkipsPartitionsBySynopsis(t *testing.T) {
	observer := &metrics.Basic{}
	idx := open(t, t.TempDir(), WithMaxPartitionSize(10), WithMetricsObserver(observer))

	day := 24 * time.Hour
	for i := range 3 {
		_, err := idx.Add(t.Context(), timeSlice(t, epoch.Add(time.Duration(i)*day), 10))
		require.NoError(t, err)
	}
	sealed, _ := idx.Partitions()
	require.Equal(t, 3, sealed)

	// Only the second partition overlaps the second day.
	q := expr.And(
		expr.Field("ts", expr.GreaterEqual, types.Time(epoch.Add(day))),
		expr.Field("ts", expr.Less, types.Time(epoch.Add(day+time.Hour))),
	)
	hits, err := idx.Lookup(t.Context(), q)
	require.NoError(t, err)
	assert.True(t, ids.Range(10, 20).Equal(hits), "got %s", hits)
	assert.Equal(t, int64(1), observer.QueryCount.Load())

	// No partition covers a later day; no evaluator runs.
	hits, err = idx.Lookup(t.Context(), expr.Field("ts", expr.Greater, types.Time(epoch.Add(10*day))))
	require.NoError(t, err)
	assert.True(t, hits.IsEmpty())
	assert.Equal(t, int64(1), observer.QueryCount.Load())

	// Unknown fields resolve to no column.
	hits, err = idx.Lookup(t.Context(), expr.Field("nope", expr.Equal, types.Count(1)))
	require.NoError(t, err)
	assert.True(t, hits.IsEmpty())
}

func TestQueryStreamsDisjointDeltas(t *testing.T) {
	idx := open(t, t.TempDir(), WithMaxPartitionSize(100))
	slices := generate(t, 7, 4)
	addAll(t, idx, slices)

	q := expr.Or(
		expr.Field("port", expr.LessEqual, types.Count(5)),
		expr.Field("proto", expr.Equal, types.String("value-3")),
	)
	ch := make(chan evaluator.Message, 64)
	errc := make(chan error, 1)
	go func() { errc <- idx.Query(t.Context(), q, evaluator.ChanClient(ch)) }()

	union := ids.New()
	done := 0
	for done == 0 {
		m := <-ch
		if m.Done {
			done++
			continue
		}
		assert.True(t, ids.Intersection(union, m.Hits).IsEmpty(), "delta overlaps earlier deltas")
		union.Or(m.Hits)
	}
	require.NoError(t, <-errc)
	assert.Empty(t, ch)
	assert.True(t, bruteForce(slices, q).Equal(union))
}

func TestQueryNegationIsNormalized(t *testing.T) {
	idx := open(t, t.TempDir())
	slices := generate(t, 8, 2)
	addAll(t, idx, slices)

	q := expr.Not(expr.Field("port", expr.Less, types.Count(5)))
	got, err := idx.Lookup(t.Context(), q)
	require.NoError(t, err)
	want := bruteForce(slices, expr.Field("port", expr.GreaterEqual, types.Count(5)))
	assert.True(t, want.Equal(got))
}

func TestAddPreconditions(t *testing.T) {
	idx := open(t, t.TempDir())

	b, err := tableslice.NewBuilder(layout)
	require.NoError(t, err)
	_, err = idx.Add(t.Context(), b.Finish())
	assert.ErrorIs(t, err, ErrEmptySlice)
	assert.ErrorIs(t, err, ec.ErrPrecondition)

	other := types.RecordType(types.Field{Name: "x", Type: types.CountType()})
	ob, err := tableslice.NewBuilder(other)
	require.NoError(t, err)
	require.NoError(t, ob.Add(types.Count(1)))
	_, err = idx.Add(t.Context(), ob.Finish())
	var mismatch *ErrLayoutMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, mismatch.Actual.Equal(other))
	assert.ErrorIs(t, err, ec.ErrPrecondition)
	assert.Zero(t, idx.Rows())
}

func TestOpenPreconditions(t *testing.T) {
	_, err := Open(t.Context(), t.TempDir(), types.CountType())
	var invalid *ErrInvalidLayout
	assert.ErrorAs(t, err, &invalid)
	assert.ErrorIs(t, err, ec.ErrPrecondition)

	_, err = Open(t.Context(), t.TempDir(), layout, WithSynopsisSettings(map[string]any{"buffer-ips": "yes"}))
	assert.ErrorIs(t, err, ec.ErrSyntax)
}

func TestOpenCorruptPartition(t *testing.T) {
	dir := t.TempDir()
	store := blobstore.NewMemoryStore()
	idx, err := Open(t.Context(), dir, layout, WithBlobStore(store), WithMaxPartitionSize(50))
	require.NoError(t, err)
	addAll(t, idx, generate(t, 10, 2))
	require.NoError(t, idx.Close(t.Context()))

	names, err := store.List(t.Context(), "")
	require.NoError(t, err)
	var corrupt string
	for _, name := range names {
		if strings.HasSuffix(name, "/synopses") {
			corrupt = name
			break
		}
	}
	require.NotEmpty(t, corrupt)
	var blob []byte
	require.NoError(t, blobstore.View(t.Context(), store, corrupt, func(data []byte) error {
		blob = append([]byte(nil), data...)
		return nil
	}))
	blob[len(blob)-1] ^= 0xff
	require.NoError(t, store.Put(t.Context(), corrupt, blob))

	_, err = Open(t.Context(), dir, layout, WithBlobStore(store))
	assert.ErrorIs(t, err, ec.ErrPersistence)
}

func TestSynopsisSettings(t *testing.T) {
	idx := open(t, t.TempDir(),
		WithMaxPartitionSize(1000),
		WithSynopsisSettings(map[string]any{"max-partition-size": 50, "buffer-ips": true}),
	)
	slices := generate(t, 9, 3)
	addAll(t, idx, slices)

	sealed, active := idx.Partitions()
	assert.Equal(t, 3, sealed)
	assert.False(t, active)
	assertMatchesBruteForce(t, idx, slices)
}

func TestLookupNilInActiveAndSealedPartition(t *testing.T) {
	for _, settings := range []map[string]any{{"buffer-ips": true}, {}} {
		idx := open(t, t.TempDir(), WithSynopsisSettings(settings))

		b, err := tableslice.NewBuilder(layout)
		require.NoError(t, err)
		require.NoError(t, b.Add(types.Time(epoch), types.Nil, types.Count(1), types.String("tcp")))
		require.NoError(t, b.Add(types.Time(epoch), types.MustParseAddress("10.0.0.1"), types.Nil, types.String("udp")))
		_, err = idx.Add(t.Context(), b.Finish())
		require.NoError(t, err)

		lookup := func(q expr.Expression) *ids.IDs {
			hits, err := idx.Lookup(t.Context(), q)
			require.NoError(t, err)
			return hits
		}
		srcNil := expr.Field("src", expr.Equal, types.Nil)
		tsNil := expr.Field("ts", expr.Equal, types.Nil)

		active := lookup(srcNil)
		assert.True(t, ids.Range(0, 1).Equal(active), "active: %s", active)
		assert.True(t, lookup(tsNil).IsEmpty())

		require.NoError(t, idx.Rollover(t.Context()))
		sealed := lookup(srcNil)
		assert.True(t, active.Equal(sealed), "active %s sealed %s", active, sealed)
		assert.True(t, lookup(tsNil).IsEmpty())
	}
}

func TestQueryPreconditions(t *testing.T) {
	idx := open(t, t.TempDir())
	err := idx.Query(t.Context(), nil, evaluator.NewCollector())
	assert.ErrorIs(t, err, ec.ErrPrecondition)
	assert.ErrorIs(t, err, expr.ErrEmpty)

	err = idx.Query(t.Context(), expr.Field("port", expr.Equal, types.Count(1)), nil)
	assert.ErrorIs(t, err, ec.ErrPrecondition)
}

func TestClosedIndex(t *testing.T) {
	idx, err := Open(t.Context(), t.TempDir(), layout)
	require.NoError(t, err)
	require.NoError(t, idx.Close(t.Context()))

	_, err = idx.Add(t.Context(), generate(t, 10, 1)[0])
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.Lookup(t.Context(), expr.Field("port", expr.Equal, types.Count(1)))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, idx.Rollover(t.Context()), ErrClosed)
}

func TestQueryCanceled(t *testing.T) {
	idx := open(t, t.TempDir())
	addAll(t, idx, generate(t, 11, 2))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	c := evaluator.NewCollector()
	err := idx.Query(ctx, expr.Field("port", expr.Equal, types.Count(1)), c)
	assert.ErrorIs(t, err, context.Canceled)
}
