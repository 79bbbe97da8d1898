package synopsis

import (
	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/internal/bloom"
	"github.com/hupe1980/eventidx/types"
)

// BloomSynopsis summarizes a column with a fixed-size Bloom filter over
// the binary encoding of its values.
type BloomSynopsis struct {
	typ    types.Type
	filter *bloom.Filter
}

// NewBloomSynopsis creates an empty Bloom filter synopsis for t. Unset
// parameters are derived from the others; zero to two hash seeds may be
// given.
func NewBloomSynopsis(t types.Type, params bloom.Params, seeds ...uint64) (*BloomSynopsis, error) {
	f, err := bloom.New(params, seeds...)
	if err != nil {
		return nil, ec.Wrap(ec.ErrConstruction, "create bloom filter", err)
	}
	return &BloomSynopsis{typ: t, filter: f}, nil
}

// Type implements Synopsis.
func (s *BloomSynopsis) Type() types.Type { return s.typ }

// Params returns the evaluated Bloom filter parameters.
func (s *BloomSynopsis) Params() bloom.Params { return s.filter.Params() }

// Add implements Synopsis.
func (s *BloomSynopsis) Add(x types.Data) {
	if x.IsNil() {
		return
	}
	s.filter.Add([]byte(x.Key()))
}

// Lookup implements Synopsis. Equality answers False when the filter
// proves absence and True otherwise. "in" over a list answers True if any
// candidate may be present and False if none can be.
func (s *BloomSynopsis) Lookup(op expr.Op, rhs types.Data) Result {
	switch op {
	case expr.Equal:
		if rhs.Kind() != s.typ.Kind {
			return Indeterminate
		}
		return FromBool(s.filter.Lookup([]byte(rhs.Key())))
	case expr.In:
		xs, ok := rhs.AsList()
		if !ok {
			return Indeterminate
		}
		for _, x := range xs {
			if x.Kind() != s.typ.Kind {
				return Indeterminate
			}
		}
		for _, x := range xs {
			if s.filter.Lookup([]byte(x.Key())) {
				return True
			}
		}
		return False
	default:
		return Indeterminate
	}
}

// SizeBytes implements Synopsis.
func (s *BloomSynopsis) SizeBytes() uint64 {
	return s.filter.SizeBytes() + 64
}

// Equal implements Synopsis.
func (s *BloomSynopsis) Equal(other Synopsis) bool {
	o, ok := other.(*BloomSynopsis)
	return ok && s.typ.Equal(o.typ) && s.filter.Equal(o.filter)
}

// MarshalBinary implements Synopsis.
func (s *BloomSynopsis) MarshalBinary() ([]byte, error) {
	return envelope(variantBloom, s.typ, s.filter.AppendBinary(nil))
}

// UnmarshalBinary implements Synopsis.
func (s *BloomSynopsis) UnmarshalBinary(data []byte) error {
	t, state, err := expect(data, variantBloom)
	if err != nil {
		return err
	}
	var f bloom.Filter
	if err := f.UnmarshalBinary(state); err != nil {
		return corrupt(err)
	}
	s.typ, s.filter = t, &f
	return nil
}
