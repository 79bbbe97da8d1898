package valueindex

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/ids"
	"github.com/hupe1980/eventidx/types"
)

func bruteForce(values []types.Data, op expr.Op, x types.Data) *ids.IDs {
	out := ids.New()
	for pos, v := range values {
		if v.IsNil() {
			continue
		}
		if expr.Evaluate(v, op, x) {
			out.Add(uint64(pos))
		}
	}
	return out
}

func TestArithmeticMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	idx, err := New(types.IntegerType())
	require.NoError(t, err)

	values := make([]types.Data, 500)
	for i := range values {
		if rng.IntN(10) == 0 {
			values[i] = types.Nil
		} else {
			values[i] = types.Integer(rng.Int64N(20) - 10)
		}
		require.NoError(t, idx.Append(values[i], uint64(i)))
	}

	for _, op := range []expr.Op{expr.Equal, expr.NotEqual, expr.Less, expr.LessEqual, expr.Greater, expr.GreaterEqual} {
		for x := int64(-11); x <= 11; x++ {
			got, err := idx.Lookup(op, types.Integer(x))
			require.NoError(t, err)
			want := bruteForce(values, op, types.Integer(x))
			assert.True(t, want.Equal(got), "%s %d: want %s got %s", op, x, want, got)
		}
	}

	in := types.List(types.Integer(1), types.Integer(2))
	got, err := idx.Lookup(expr.In, in)
	require.NoError(t, err)
	assert.True(t, bruteForce(values, expr.In, in).Equal(got))
}

func TestStringIndex(t *testing.T) {
	idx, err := New(types.StringType())
	require.NoError(t, err)
	for i, s := range []string{"foo", "bar", "foobar", "baz", "foo"} {
		require.NoError(t, idx.Append(types.String(s), uint64(i)))
	}

	tests := []struct {
		op   expr.Op
		x    types.Data
		want []uint64
	}{
		{expr.Equal, types.String("foo"), []uint64{0, 4}},
		{expr.NotEqual, types.String("foo"), []uint64{1, 2, 3}},
		{expr.Ni, types.String("ba"), []uint64{1, 2, 3}},
		{expr.NotNi, types.String("ba"), []uint64{0, 4}},
		{expr.In, types.String("xfoox"), []uint64{0, 4}},
		{expr.Match, types.String("^ba."), []uint64{1, 3}},
		{expr.NotMatch, types.String("o"), []uint64{1, 3}},
		{expr.In, types.List(types.String("bar"), types.String("baz")), []uint64{1, 3}},
		{expr.Less, types.String("baz"), []uint64{1}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.op, tt.x), func(t *testing.T) {
			got, err := idx.Lookup(tt.op, tt.x)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Slice())
		})
	}

	_, err = idx.Lookup(expr.Match, types.String("("))
	assert.ErrorIs(t, err, ec.ErrSyntax)
}

func TestAddressIndex(t *testing.T) {
	idx, err := New(types.AddressType())
	require.NoError(t, err)
	addrs := []string{"10.0.0.1", "10.0.0.2", "192.168.1.1", "2001:db8::1"}
	for i, a := range addrs {
		require.NoError(t, idx.Append(types.MustParseAddress(a), uint64(i)))
	}

	got, err := idx.Lookup(expr.Equal, types.Address(netip.MustParseAddr("::ffff:10.0.0.2")))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, got.Slice())

	got, err = idx.Lookup(expr.In, types.MustParseSubnet("10.0.0.0/8"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, got.Slice())

	got, err = idx.Lookup(expr.NotIn, types.MustParseSubnet("10.0.0.0/8"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, got.Slice())

	_, err = idx.Lookup(expr.Match, types.String("x"))
	assert.ErrorIs(t, err, ec.ErrPrecondition)
}

func TestSubnetIndex(t *testing.T) {
	idx, err := New(types.SubnetType())
	require.NoError(t, err)
	require.NoError(t, idx.Append(types.MustParseSubnet("10.0.0.0/8"), 0))
	require.NoError(t, idx.Append(types.MustParseSubnet("10.1.0.0/16"), 1))
	require.NoError(t, idx.Append(types.MustParseSubnet("192.168.0.0/16"), 2))

	got, err := idx.Lookup(expr.Ni, types.MustParseAddress("10.1.2.3"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, got.Slice())

	got, err = idx.Lookup(expr.In, types.MustParseSubnet("10.0.0.0/8"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, got.Slice())
}

func TestListIndex(t *testing.T) {
	idx, err := New(types.ListType(types.CountType()))
	require.NoError(t, err)
	require.NoError(t, idx.Append(types.List(types.Count(1), types.Count(2)), 0))
	require.NoError(t, idx.Append(types.List(types.Count(3)), 1))
	require.NoError(t, idx.Append(types.List(), 2))
	require.NoError(t, idx.Append(types.Nil, 3))

	got, err := idx.Lookup(expr.Ni, types.Count(2))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, got.Slice())

	got, err = idx.Lookup(expr.NotNi, types.Count(2))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, got.Slice())

	got, err = idx.Lookup(expr.Equal, types.List(types.Count(3)))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, got.Slice())

	got, err = idx.Lookup(expr.Equal, types.Nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, got.Slice())

	_, err = idx.Lookup(expr.Less, types.Count(1))
	assert.ErrorIs(t, err, ec.ErrPrecondition)
}

func TestNilAndGaps(t *testing.T) {
	idx, err := New(types.CountType())
	require.NoError(t, err)
	require.NoError(t, idx.Append(types.Count(1), 0))
	require.NoError(t, idx.Append(types.Nil, 1))
	require.NoError(t, idx.Append(types.Count(1), 5))
	assert.Equal(t, uint64(6), idx.Offset())

	got, err := idx.Lookup(expr.NotEqual, types.Count(2))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 5}, got.Slice())

	got, err = idx.Lookup(expr.NotEqual, types.Nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 5}, got.Slice())

	_, err = idx.Lookup(expr.Less, types.Nil)
	assert.ErrorIs(t, err, ec.ErrPrecondition)

	err = idx.Append(types.Count(1), 3)
	assert.ErrorIs(t, err, ec.ErrPrecondition)

	err = idx.Append(types.String("x"), 6)
	assert.ErrorIs(t, err, ec.ErrPrecondition)
}

func TestUnsupportedTypes(t *testing.T) {
	for _, typ := range []types.Type{
		{},
		types.MapType(types.StringType(), types.CountType()),
		types.RecordType(types.Field{Name: "a", Type: types.CountType()}),
		types.ListType(types.ListType(types.CountType())),
	} {
		_, err := New(typ)
		assert.ErrorIs(t, err, ec.ErrConstruction, typ.String())
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	for _, typ := range []types.Type{types.RealType(), types.ListType(types.StringType())} {
		t.Run(typ.String(), func(t *testing.T) {
			idx, err := New(typ)
			require.NoError(t, err)
			for i := range 50 {
				var v types.Data
				switch {
				case i%7 == 0:
					v = types.Nil
				case typ.Kind == types.KindReal:
					v = types.Real(float64(i % 5))
				default:
					v = types.List(types.String(fmt.Sprint(i%3)), types.String("x"))
				}
				require.NoError(t, idx.Append(v, uint64(i)))
			}

			b1, err := idx.MarshalBinary()
			require.NoError(t, err)
			b2, err := idx.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, b1, b2, "encoding is deterministic")

			loaded, err := New(typ)
			require.NoError(t, err)
			require.NoError(t, loaded.UnmarshalBinary(b1))
			assert.Equal(t, idx.Offset(), loaded.Offset())

			var probe types.Data
			op := expr.Equal
			if typ.Kind == types.KindReal {
				probe = types.Real(2)
			} else {
				probe, op = types.String("1"), expr.Ni
			}
			want, err := idx.Lookup(op, probe)
			require.NoError(t, err)
			got, err := loaded.Lookup(op, probe)
			require.NoError(t, err)
			assert.True(t, want.Equal(got))
			assert.False(t, got.IsEmpty())
		})
	}
}

func TestUnmarshalErrors(t *testing.T) {
	idx, err := New(types.CountType())
	require.NoError(t, err)
	require.NoError(t, idx.Append(types.Count(1), 0))
	b, err := idx.MarshalBinary()
	require.NoError(t, err)

	other, err := New(types.StringType())
	require.NoError(t, err)
	assert.ErrorIs(t, other.UnmarshalBinary(b), ec.ErrPersistence)

	fresh, err := New(types.CountType())
	require.NoError(t, err)
	assert.ErrorIs(t, fresh.UnmarshalBinary(b[:len(b)-3]), ec.ErrPersistence)
	assert.ErrorIs(t, fresh.UnmarshalBinary([]byte{9}), ec.ErrPersistence)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, err := r.Make(types.CountType())
	assert.ErrorIs(t, err, ec.ErrConstruction)

	r.Register(types.KindCount, NewScalar)
	idx, err := r.Make(types.CountType())
	require.NoError(t, err)
	assert.Equal(t, types.KindCount, idx.Type().Kind)
}
