package tableslice

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"time"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/types"
)

// GenerateOptions controls random slice generation.
type GenerateOptions struct {
	// Slices is the number of slices to produce.
	Slices int
	// Rows is the number of rows per slice.
	Rows int
	// Offset is the global row id of the first row of the first slice.
	Offset uint64
	// Cardinality bounds the number of distinct values per column. Zero
	// means 16.
	Cardinality int
	// NilRate is the probability of a null value.
	NilRate float64
}

// Generate produces consecutive random slices for layout. It is meant for
// tests and benchmarks; the values of a column are drawn from a small
// domain so that lookups have hits.
func Generate(rng *rand.Rand, layout types.Type, opts GenerateOptions) ([]*Slice, error) {
	b, err := NewBuilder(layout)
	if err != nil {
		return nil, err
	}
	card := opts.Cardinality
	if card <= 0 {
		card = 16
	}
	out := make([]*Slice, 0, opts.Slices)
	offset := opts.Offset
	row := make([]types.Data, len(b.fields))
	for range opts.Slices {
		for range opts.Rows {
			for i, f := range b.fields {
				if opts.NilRate > 0 && rng.Float64() < opts.NilRate {
					row[i] = types.Nil
					continue
				}
				v, err := randomData(rng, f.Type, card)
				if err != nil {
					return nil, err
				}
				row[i] = v
			}
			if err := b.Add(row...); err != nil {
				return nil, err
			}
		}
		s := b.Finish()
		s.SetOffset(offset)
		offset += uint64(opts.Rows)
		out = append(out, s)
	}
	return out, nil
}

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func randomData(rng *rand.Rand, t types.Type, card int) (types.Data, error) {
	n := rng.IntN(card)
	switch t.Kind {
	case types.KindBool:
		return types.Bool(n%2 == 0), nil
	case types.KindInteger:
		return types.Integer(int64(n - card/2)), nil
	case types.KindCount:
		return types.Count(uint64(n)), nil
	case types.KindReal:
		return types.Real(float64(n) / 4), nil
	case types.KindDuration:
		return types.Duration(time.Duration(n) * time.Second), nil
	case types.KindTime:
		return types.Time(epoch.Add(time.Duration(n) * time.Minute)), nil
	case types.KindString:
		return types.String(fmt.Sprintf("value-%d", n)), nil
	case types.KindAddress:
		return types.Address(netip.AddrFrom4([4]byte{10, 0, byte(n >> 8), byte(n)})), nil
	case types.KindSubnet:
		a := netip.AddrFrom4([4]byte{10, byte(n), 0, 0})
		return types.Subnet(netip.PrefixFrom(a, 16)), nil
	case types.KindList:
		if t.Elem == nil {
			return types.Nil, ec.New(ec.ErrConstruction, "list type without element type")
		}
		xs := make([]types.Data, rng.IntN(4))
		for i := range xs {
			x, err := randomData(rng, *t.Elem, card)
			if err != nil {
				return types.Nil, err
			}
			xs[i] = x
		}
		return types.List(xs...), nil
	default:
		return types.Nil, ec.New(ec.ErrConstruction, "cannot generate values of type %s", t)
	}
}
