package tableslice

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventidx/codec"
	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/types"
	"github.com/hupe1980/eventidx/valueindex"
)

func connLayout() types.Type {
	return types.RecordType(
		types.Field{Name: "ts", Type: types.TimeType()},
		types.Field{Name: "id", Type: types.RecordType(
			types.Field{Name: "orig_h", Type: types.AddressType()},
			types.Field{Name: "resp_p", Type: types.CountType().Named("port")},
		)},
		types.Field{Name: "service", Type: types.StringType()},
		types.Field{Name: "tags", Type: types.ListType(types.StringType())},
	)
}

func TestBuilder(t *testing.T) {
	layout := types.RecordType(
		types.Field{Name: "x", Type: types.CountType()},
		types.Field{Name: "y", Type: types.StringType()},
	)
	b, err := NewBuilder(layout)
	require.NoError(t, err)
	require.NoError(t, b.Add(types.Count(1), types.String("a")))
	require.NoError(t, b.Add(types.Count(2), types.Nil))
	assert.ErrorIs(t, b.Add(types.Count(3)), ec.ErrPrecondition)
	assert.ErrorIs(t, b.Add(types.String("x"), types.String("b")), ec.ErrPrecondition)
	assert.Equal(t, 2, b.Rows())

	s := b.Finish()
	assert.Equal(t, 0, b.Rows())
	assert.Equal(t, 2, s.Rows())
	assert.Equal(t, 2, s.Columns())
	assert.True(t, s.At(1, 0).Equal(types.Count(2)))
	assert.True(t, s.At(1, 1).IsNil())
	assert.Len(t, s.Row(0), 2)

	_, err = NewBuilder(types.StringType())
	assert.ErrorIs(t, err, ec.ErrConstruction)
}

func TestAppendColumnToIndex(t *testing.T) {
	layout := types.RecordType(types.Field{Name: "x", Type: types.CountType()})
	b, err := NewBuilder(layout)
	require.NoError(t, err)
	for i := range 4 {
		require.NoError(t, b.Add(types.Count(uint64(i%2))))
	}
	s := b.Finish()
	s.SetOffset(100)

	idx, err := valueindex.New(types.CountType())
	require.NoError(t, err)
	require.NoError(t, s.AppendColumnToIndex(0, idx))
	hits, err := idx.Lookup(expr.Equal, types.Count(1))
	require.NoError(t, err)
	assert.Equal(t, []uint64{101, 103}, hits.Slice())
	assert.Equal(t, uint64(104), idx.Offset())

	assert.ErrorIs(t, s.AppendColumnToIndex(1, idx), ec.ErrPrecondition)
}

func TestHandleCopyOnWrite(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	slices, err := Generate(rng, connLayout(), GenerateOptions{Slices: 1, Rows: 8})
	require.NoError(t, err)

	h := NewHandle(slices[0])
	assert.True(t, h.Unique())

	// A unique handle mutates in place.
	same := h.Unshared()
	assert.Same(t, slices[0], same)

	other := h.Share()
	assert.Equal(t, int64(2), h.Refs())

	cp := h.Unshared()
	assert.NotSame(t, other.Slice(), cp)
	cp.SetOffset(1000)
	assert.Equal(t, uint64(0), other.Slice().Offset())
	assert.Equal(t, uint64(1000), h.Slice().Offset())
	assert.True(t, h.Unique())
	assert.True(t, other.Unique())

	other.Release()
	assert.Nil(t, other.Slice())
	assert.Equal(t, int64(0), other.Refs())
}

func TestEncodingRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	slices, err := Generate(rng, connLayout(), GenerateOptions{Slices: 2, Rows: 20, Offset: 40, NilRate: 0.1})
	require.NoError(t, err)
	require.Len(t, slices, 2)
	assert.Equal(t, uint64(60), slices[1].Offset())

	reg := DefaultRegistry()
	for _, name := range []string{"", "json", "go-json"} {
		t.Run(name, func(t *testing.T) {
			data, err := reg.Encode(slices[1], name)
			require.NoError(t, err)
			got, err := reg.Decode(data)
			require.NoError(t, err)

			want := slices[1]
			wantName := name
			if wantName == "" {
				wantName = codec.Default.Name()
			}
			assert.Equal(t, wantName, got.Encoding())
			assert.True(t, want.Layout().Equal(got.Layout()))
			assert.Equal(t, want.Offset(), got.Offset())
			require.Equal(t, want.Rows(), got.Rows())
			for row := range want.Rows() {
				for col := range want.Columns() {
					assert.True(t, want.At(row, col).Equal(got.At(row, col)), "row %d col %d", row, col)
				}
			}
		})
	}

	_, err = reg.Encode(slices[0], "msgpack")
	assert.ErrorIs(t, err, ec.ErrConstruction)
	_, err = reg.Decode([]byte{3, 'f', 'o', 'o'})
	assert.ErrorIs(t, err, ec.ErrPersistence)
	_, err = reg.Decode([]byte{9, 'x'})
	assert.ErrorIs(t, err, ec.ErrPersistence)
}

func TestRegistryDefault(t *testing.T) {
	r := NewRegistry()
	r.Register(CodecEncoding{Codec: codec.JSON{}})
	e, ok := r.Lookup("json")
	require.True(t, ok)
	assert.Equal(t, "json", e.Name())

	b, err := NewBuilder(types.RecordType(types.Field{Name: "b", Type: types.BoolType()}))
	require.NoError(t, err)
	require.NoError(t, b.Add(types.Bool(true)))
	data, err := r.Encode(b.Finish(), "")
	require.NoError(t, err)
	got, err := r.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "json", got.Encoding())
}
