package synopsis

import (
	"math/bits"
	"slices"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/internal/bloom"
	"github.com/hupe1980/eventidx/types"
)

// BufferedSynopsis holds the exact set of observed values. It answers
// lookups exactly and converts into a right-sized BloomSynopsis with
// Shrink. It cannot be serialized.
type BufferedSynopsis struct {
	typ    types.Type
	p      float64
	seeds  []uint64
	values map[string]types.Data
}

// NewBufferedSynopsis creates an empty buffered synopsis for t. p is the
// false positive rate of the Bloom filter produced by Shrink.
func NewBufferedSynopsis(t types.Type, p float64, seeds ...uint64) (*BufferedSynopsis, error) {
	if p <= 0 || p >= 1 {
		return nil, ec.New(ec.ErrConstruction, "false positive rate %v not in (0, 1)", p)
	}
	if len(seeds) > 2 {
		return nil, ec.Wrap(ec.ErrConstruction, "create buffered synopsis", bloom.ErrTooManySeeds)
	}
	return &BufferedSynopsis{typ: t, p: p, seeds: seeds, values: make(map[string]types.Data)}, nil
}

// Type implements Synopsis.
func (s *BufferedSynopsis) Type() types.Type { return s.typ }

// Len returns the number of distinct observed values.
func (s *BufferedSynopsis) Len() int { return len(s.values) }

// Add implements Synopsis.
func (s *BufferedSynopsis) Add(x types.Data) {
	if x.IsNil() {
		return
	}
	s.values[x.Key()] = x
}

// Lookup implements Synopsis.
func (s *BufferedSynopsis) Lookup(op expr.Op, rhs types.Data) Result {
	// Nil values are not buffered.
	if rhs.IsNil() {
		return Indeterminate
	}
	switch op {
	case expr.Equal:
		_, ok := s.values[rhs.Key()]
		return FromBool(ok)
	case expr.In:
		xs, ok := rhs.AsList()
		if !ok || slices.ContainsFunc(xs, types.Data.IsNil) {
			return Indeterminate
		}
		for _, x := range xs {
			if _, ok := s.values[x.Key()]; ok {
				return True
			}
		}
		return False
	default:
		return Indeterminate
	}
}

// SizeBytes implements Synopsis.
func (s *BufferedSynopsis) SizeBytes() uint64 {
	var n uint64
	for key := range s.values {
		n += uint64(len(key)) + 64
	}
	return n
}

// Equal implements Synopsis.
func (s *BufferedSynopsis) Equal(other Synopsis) bool {
	o, ok := other.(*BufferedSynopsis)
	if !ok || !s.typ.Equal(o.typ) || len(s.values) != len(o.values) {
		return false
	}
	for key := range s.values {
		if _, ok := o.values[key]; !ok {
			return false
		}
	}
	return true
}

// MarshalBinary always fails with ec.ErrLogic.
func (s *BufferedSynopsis) MarshalBinary() ([]byte, error) {
	return nil, ec.New(ec.ErrLogic, "attempted to serialize a buffered synopsis; shrink it first")
}

// UnmarshalBinary always fails with ec.ErrLogic.
func (s *BufferedSynopsis) UnmarshalBinary([]byte) error {
	return ec.New(ec.ErrLogic, "attempted to deserialize a buffered synopsis")
}

// Shrink builds a BloomSynopsis sized for the next power of two at or above
// the number of observed values and inserts every value into it. The
// result's type carries the derived parameters. s itself is not modified.
func (s *BufferedSynopsis) Shrink() (Synopsis, error) {
	n := nextPowerOfTwo(uint64(len(s.values)))
	params := bloom.Params{N: n, P: s.p}
	out, err := NewBloomSynopsis(Annotate(s.typ, params), params, s.seeds...)
	if err != nil {
		return nil, err
	}
	for _, x := range s.values {
		out.Add(x)
	}
	return out, nil
}

// nextPowerOfTwo returns the smallest power of two >= x; 0 maps to 1.
func nextPowerOfTwo(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	return 1 << bits.Len64(x-1)
}

// Annotate returns t with its synopsis attribute set to the Bloom filter
// sizing of params. A prior synopsis attribute is replaced.
func Annotate(t types.Type, params bloom.Params) types.Type {
	return t.WithAttribute(types.AttrSynopsis, bloom.FormatAttribute(params.N, params.P))
}
