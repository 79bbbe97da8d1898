package synopsis

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/internal/bloom"
	"github.com/hupe1980/eventidx/types"
)

var (
	addrA = types.MustParseAddress("192.168.0.1")
	addrB = types.MustParseAddress("192.168.0.2")
	addrC = types.MustParseAddress("192.168.0.3")
	addrD = types.MustParseAddress("10.10.10.10")
)

func TestBloomSynopsisNoFalseNegatives(t *testing.T) {
	s, err := NewBloomSynopsis(types.AddressType(), bloom.Params{N: 100, P: 0.01})
	require.NoError(t, err)
	var added []types.Data
	for i := range 100 {
		a := types.MustParseAddress(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
		s.Add(a)
		added = append(added, a)
	}
	for _, a := range added {
		assert.NotEqual(t, False, s.Lookup(expr.Equal, a))
	}
	assert.Equal(t, True, s.Lookup(expr.In, types.List(addrD, added[3])))
	assert.Equal(t, Indeterminate, s.Lookup(expr.NotEqual, added[0]))
	assert.Equal(t, Indeterminate, s.Lookup(expr.In, types.MustParseSubnet("10.0.0.0/8")))
	assert.Equal(t, Indeterminate, s.Lookup(expr.Equal, types.String("10.0.0.1")))
}

func TestBloomSynopsisProvesAbsence(t *testing.T) {
	s, err := NewBloomSynopsis(types.AddressType(), bloom.Params{N: 16, P: 0.001})
	require.NoError(t, err)
	s.Add(addrA)
	// An empty filter has no set bits, so every probe misses.
	empty, err := NewBloomSynopsis(types.AddressType(), bloom.Params{N: 16, P: 0.001})
	require.NoError(t, err)
	assert.Equal(t, False, empty.Lookup(expr.Equal, addrA))
	assert.Equal(t, False, empty.Lookup(expr.In, types.List(addrA, addrB)))
	assert.Equal(t, False, s.Lookup(expr.In, types.List()))
	assert.Equal(t, True, s.Lookup(expr.Equal, addrA))
}

func TestBadParameters(t *testing.T) {
	_, err := NewBloomSynopsis(types.AddressType(), bloom.Params{N: 0, P: 0.1})
	assert.ErrorIs(t, err, ec.ErrConstruction)
	_, err = NewBloomSynopsis(types.AddressType(), bloom.Params{N: 10, P: 2})
	assert.ErrorIs(t, err, ec.ErrConstruction)
	_, err = NewBloomSynopsis(types.AddressType(), bloom.Params{N: 10, P: 0.1}, 1, 2, 3)
	assert.ErrorIs(t, err, ec.ErrConstruction)
	_, err = NewBufferedSynopsis(types.AddressType(), 0)
	assert.ErrorIs(t, err, ec.ErrConstruction)
}

func TestBufferedShrink(t *testing.T) {
	buf, err := NewBufferedSynopsis(types.AddressType(), 0.01)
	require.NoError(t, err)
	buf.Add(addrA)
	buf.Add(addrB)
	buf.Add(addrC)
	buf.Add(addrA)
	buf.Add(types.Nil)
	assert.Equal(t, 3, buf.Len())

	assert.Equal(t, True, buf.Lookup(expr.Equal, addrA))
	assert.Equal(t, False, buf.Lookup(expr.Equal, addrD))
	assert.Equal(t, True, buf.Lookup(expr.In, types.List(addrD, addrC)))
	assert.Equal(t, False, buf.Lookup(expr.In, types.List(addrD)))
	assert.Equal(t, Indeterminate, buf.Lookup(expr.Less, addrD))

	shrunk, err := buf.Shrink()
	require.NoError(t, err)
	fixed, ok := shrunk.(*BloomSynopsis)
	require.True(t, ok)
	assert.Equal(t, uint64(4), fixed.Params().N)
	assert.Equal(t, 0.01, fixed.Params().P)
	attr, ok := fixed.Type().Attribute(types.AttrSynopsis)
	require.True(t, ok)
	assert.Equal(t, "bloomfilter(4,0.01)", attr)
	for _, a := range []types.Data{addrA, addrB, addrC} {
		assert.NotEqual(t, False, fixed.Lookup(expr.Equal, a))
	}

	// The buffered synopsis is unchanged.
	assert.Equal(t, 3, buf.Len())
	_, ok = buf.Type().Attribute(types.AttrSynopsis)
	assert.False(t, ok)

	// Finalize shrinks buffered synopses and leaves fixed ones alone.
	fin, err := Finalize(buf)
	require.NoError(t, err)
	assert.True(t, fin.Equal(shrunk))
	same, err := Finalize(fixed)
	require.NoError(t, err)
	assert.Same(t, fixed, same)
}

func TestNextPowerOfTwo(t *testing.T) {
	for in, want := range map[uint64]uint64{0: 1, 1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 1000: 1024, 1024: 1024} {
		assert.Equal(t, want, nextPowerOfTwo(in), "%d", in)
	}

	empty, err := NewBufferedSynopsis(types.StringType(), 0.1)
	require.NoError(t, err)
	s, err := empty.Shrink()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.(*BloomSynopsis).Params().N)
}

func TestBufferedSerializationFails(t *testing.T) {
	buf, err := NewBufferedSynopsis(types.AddressType(), 0.01)
	require.NoError(t, err)
	buf.Add(addrA)
	_, err = buf.MarshalBinary()
	assert.ErrorIs(t, err, ec.ErrLogic)
	assert.NotErrorIs(t, err, ec.ErrPersistence)
	assert.ErrorIs(t, buf.UnmarshalBinary([]byte{1, 2, 3}), ec.ErrLogic)
}

func TestEquality(t *testing.T) {
	mk := func() *BloomSynopsis {
		s, err := NewBloomSynopsis(types.AddressType(), bloom.Params{N: 8, P: 0.1}, 7)
		require.NoError(t, err)
		return s
	}
	a, b := mk(), mk()
	assert.True(t, a.Equal(b))
	a.Add(addrA)
	assert.False(t, a.Equal(b))
	b.Add(addrA)
	assert.True(t, a.Equal(b))

	buf1, _ := NewBufferedSynopsis(types.AddressType(), 0.1)
	buf2, _ := NewBufferedSynopsis(types.AddressType(), 0.1)
	buf1.Add(addrA)
	assert.False(t, buf1.Equal(buf2))
	buf2.Add(addrA)
	assert.True(t, buf1.Equal(buf2))
	assert.False(t, buf1.Equal(a))
	assert.False(t, a.Equal(buf1))
}

func TestMarshalRoundTrip(t *testing.T) {
	bs, err := NewBloomSynopsis(Annotate(types.AddressType(), bloom.Params{N: 8, P: 0.1}), bloom.Params{N: 8, P: 0.1})
	require.NoError(t, err)
	bs.Add(addrA)

	mm, err := NewMinMaxSynopsis(types.TimeType())
	require.NoError(t, err)
	mm.Add(types.Time(time.Unix(100, 0)))
	mm.Add(types.Time(time.Unix(50, 0)))

	bo, err := NewBoolSynopsis(types.BoolType())
	require.NoError(t, err)
	bo.Add(types.Bool(false))

	for _, s := range []Synopsis{bs, mm, bo} {
		t.Run(fmt.Sprintf("%T", s), func(t *testing.T) {
			data, err := s.MarshalBinary()
			require.NoError(t, err)
			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.True(t, s.Equal(got))
			assert.True(t, s.Type().Equal(got.Type()))

			_, err = Unmarshal(data[:len(data)/2])
			assert.ErrorIs(t, err, ec.ErrPersistence)
		})
	}

	_, err = Unmarshal([]byte{99, 0})
	assert.ErrorIs(t, err, ec.ErrPersistence)

	data, err := mm.MarshalBinary()
	require.NoError(t, err)
	assert.ErrorIs(t, bs.UnmarshalBinary(data), ec.ErrPersistence)
}

func TestMinMaxSynopsis(t *testing.T) {
	s, err := NewMinMaxSynopsis(types.TimeType())
	require.NoError(t, err)
	at := func(sec int64) types.Data { return types.Time(time.Unix(sec, 0)) }

	assert.Equal(t, False, s.Lookup(expr.Equal, at(1)))
	_, _, ok := s.Bounds()
	assert.False(t, ok)

	s.Add(at(10))
	s.Add(at(20))
	s.Add(types.Nil)

	tests := []struct {
		op   expr.Op
		sec  int64
		want Result
	}{
		{expr.Equal, 15, True},
		{expr.Equal, 5, False},
		{expr.Equal, 25, False},
		{expr.NotEqual, 15, True},
		{expr.Less, 10, False},
		{expr.Less, 11, True},
		{expr.LessEqual, 10, True},
		{expr.Greater, 20, False},
		{expr.Greater, 19, True},
		{expr.GreaterEqual, 20, True},
		{expr.In, 15, Indeterminate},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Lookup(tt.op, at(tt.sec)), "%s %d", tt.op, tt.sec)
	}
	assert.Equal(t, Indeterminate, s.Lookup(expr.Equal, types.String("x")))

	single, _ := NewMinMaxSynopsis(types.TimeType())
	single.Add(at(10))
	assert.Equal(t, False, single.Lookup(expr.NotEqual, at(10)))

	_, err = NewMinMaxSynopsis(types.StringType())
	assert.ErrorIs(t, err, ec.ErrConstruction)
}

func TestBoolSynopsis(t *testing.T) {
	s, err := NewBoolSynopsis(types.BoolType())
	require.NoError(t, err)
	s.Add(types.Bool(true))
	assert.Equal(t, True, s.Lookup(expr.Equal, types.Bool(true)))
	assert.Equal(t, False, s.Lookup(expr.Equal, types.Bool(false)))
	assert.Equal(t, False, s.Lookup(expr.NotEqual, types.Bool(true)))
	assert.Equal(t, Indeterminate, s.Lookup(expr.Less, types.Bool(true)))
	assert.Equal(t, Indeterminate, s.Lookup(expr.Equal, types.Count(1)))
}

func TestMakeBloomPolicy(t *testing.T) {
	t.Run("attribute wins", func(t *testing.T) {
		typ := types.AddressType().WithAttribute(types.AttrSynopsis, "bloomfilter(64,0.1)")
		s, err := MakeBloom(typ, Options{MaxPartitionSize: 1 << 20, BufferIPs: true}, true)
		require.NoError(t, err)
		b, ok := s.(*BloomSynopsis)
		require.True(t, ok)
		assert.Equal(t, uint64(64), b.Params().N)
		assert.Equal(t, 0.1, b.Params().P)
	})

	t.Run("partition size", func(t *testing.T) {
		s, err := MakeBloom(types.AddressType(), Options{MaxPartitionSize: 1000}, false)
		require.NoError(t, err)
		b := s.(*BloomSynopsis)
		assert.Equal(t, uint64(1000), b.Params().N)
		attr, _ := b.Type().Attribute(types.AttrSynopsis)
		assert.Equal(t, "bloomfilter(1000,0.01)", attr)
	})

	t.Run("buffered keeps plain type", func(t *testing.T) {
		s, err := MakeBloom(types.AddressType(), Options{MaxPartitionSize: 1000, FalsePositiveRate: 0.05}, true)
		require.NoError(t, err)
		buf, ok := s.(*BufferedSynopsis)
		require.True(t, ok)
		assert.True(t, buf.Type().Equal(types.AddressType()))
		shrunk, err := buf.Shrink()
		require.NoError(t, err)
		assert.Equal(t, 0.05, shrunk.(*BloomSynopsis).Params().P)
	})

	t.Run("annotation replaces", func(t *testing.T) {
		typ := Annotate(types.AddressType(), bloom.Params{N: 1, P: 0.5})
		typ = Annotate(typ, bloom.Params{N: 2, P: 0.25})
		assert.Len(t, typ.Attrs, 1)
		attr, _ := typ.Attribute(types.AttrSynopsis)
		assert.Equal(t, "bloomfilter(2,0.25)", attr)
	})

	t.Run("missing parameters", func(t *testing.T) {
		_, err := MakeBloom(types.AddressType(), Options{}, false)
		assert.ErrorIs(t, err, ec.ErrConstruction)
	})

	t.Run("malformed attribute", func(t *testing.T) {
		typ := types.AddressType().WithAttribute(types.AttrSynopsis, "bloomfilter(x)")
		_, err := MakeBloom(typ, Options{MaxPartitionSize: 10}, false)
		assert.ErrorIs(t, err, ec.ErrSyntax)
	})
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	opts := Options{MaxPartitionSize: 128, BufferStrings: true}

	s, err := r.Make(types.StringType(), opts)
	require.NoError(t, err)
	assert.IsType(t, &BufferedSynopsis{}, s)

	s, err = r.Make(types.AddressType(), opts)
	require.NoError(t, err)
	assert.IsType(t, &BloomSynopsis{}, s)

	s, err = r.Make(types.TimeType(), opts)
	require.NoError(t, err)
	assert.IsType(t, &MinMaxSynopsis{}, s)

	s, err = r.Make(types.CountType(), opts)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = r.Make(types.AddressType().WithAttribute(types.AttrSkip, ""), opts)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestParseOptions(t *testing.T) {
	o, err := ParseOptions(map[string]any{
		KeyMaxPartitionSize:  1 << 20,
		KeyBufferIPs:         true,
		KeyFalsePositiveRate: 0.05,
		"unrelated":          "x",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<20), o.MaxPartitionSize)
	assert.True(t, o.BufferIPs)
	assert.False(t, o.BufferStrings)
	assert.Equal(t, 0.05, o.FalsePositiveRate)

	o, err = ParseOptions(map[string]any{KeyMaxPartitionSize: float64(1000)})
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), o.MaxPartitionSize)

	for _, bad := range []map[string]any{
		{KeyMaxPartitionSize: -1},
		{KeyMaxPartitionSize: 1.5},
		{KeyMaxPartitionSize: "big"},
		{KeyBufferIPs: "yes"},
		{KeyFalsePositiveRate: 1.0},
	} {
		_, err := ParseOptions(bad)
		assert.ErrorIs(t, err, ec.ErrSyntax, "%v", bad)
	}
}

func TestNilIsNeverRuledOut(t *testing.T) {
	buf, err := NewBufferedSynopsis(types.AddressType(), 0.01)
	require.NoError(t, err)
	buf.Add(types.Nil)
	buf.Add(addrA)

	fixed, err := buf.Shrink()
	require.NoError(t, err)

	mm, err := NewMinMaxSynopsis(types.TimeType())
	require.NoError(t, err)
	mm.Add(types.Nil)

	bs, err := NewBoolSynopsis(types.BoolType())
	require.NoError(t, err)
	bs.Add(types.Bool(true))

	synopses := map[string]Synopsis{
		"buffered": buf,
		"bloom":    fixed,
		"minmax":   mm,
		"bool":     bs,
	}
	for name, s := range synopses {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, Indeterminate, s.Lookup(expr.Equal, types.Nil))
			assert.Equal(t, Indeterminate, s.Lookup(expr.NotEqual, types.Nil))
		})
	}
	assert.Equal(t, Indeterminate, buf.Lookup(expr.In, types.List(addrD, types.Nil)))
}
