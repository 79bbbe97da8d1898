package synopsis

import (
	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/types"
)

// MinMaxSynopsis tracks the smallest and largest observed value of an
// ordered column, typically a timestamp.
type MinMaxSynopsis struct {
	typ      types.Type
	min, max types.Data
}

// NewMinMaxSynopsis creates an empty min/max synopsis for t.
func NewMinMaxSynopsis(t types.Type) (*MinMaxSynopsis, error) {
	switch t.Kind {
	case types.KindInteger, types.KindCount, types.KindReal, types.KindDuration, types.KindTime:
		return &MinMaxSynopsis{typ: t}, nil
	default:
		return nil, ec.New(ec.ErrConstruction, "no min/max synopsis for type %s", t)
	}
}

// Type implements Synopsis.
func (s *MinMaxSynopsis) Type() types.Type { return s.typ }

// Bounds returns the observed range. ok is false if no value was observed.
func (s *MinMaxSynopsis) Bounds() (lo, hi types.Data, ok bool) {
	return s.min, s.max, !s.min.IsNil()
}

// Add implements Synopsis.
func (s *MinMaxSynopsis) Add(x types.Data) {
	if x.IsNil() || x.Kind() != s.typ.Kind {
		return
	}
	if s.min.IsNil() {
		s.min, s.max = x, x
		return
	}
	if c, _ := types.Compare(x, s.min); c < 0 {
		s.min = x
	}
	if c, _ := types.Compare(x, s.max); c > 0 {
		s.max = x
	}
}

// Lookup implements Synopsis.
func (s *MinMaxSynopsis) Lookup(op expr.Op, rhs types.Data) Result {
	if rhs.IsNil() {
		return Indeterminate
	}
	if s.min.IsNil() {
		switch op {
		case expr.Equal, expr.Less, expr.LessEqual, expr.Greater, expr.GreaterEqual:
			return False
		default:
			return Indeterminate
		}
	}
	lo, okLo := types.Compare(rhs, s.min)
	hi, okHi := types.Compare(rhs, s.max)
	if !okLo || !okHi {
		return Indeterminate
	}
	switch op {
	case expr.Equal:
		return FromBool(lo >= 0 && hi <= 0)
	case expr.NotEqual:
		return FromBool(!(lo == 0 && hi == 0))
	case expr.Less:
		return FromBool(lo > 0)
	case expr.LessEqual:
		return FromBool(lo >= 0)
	case expr.Greater:
		return FromBool(hi < 0)
	case expr.GreaterEqual:
		return FromBool(hi <= 0)
	default:
		return Indeterminate
	}
}

// SizeBytes implements Synopsis.
func (s *MinMaxSynopsis) SizeBytes() uint64 { return 2 * 64 }

// Equal implements Synopsis.
func (s *MinMaxSynopsis) Equal(other Synopsis) bool {
	o, ok := other.(*MinMaxSynopsis)
	return ok && s.typ.Equal(o.typ) && s.min.Equal(o.min) && s.max.Equal(o.max)
}

// MarshalBinary implements Synopsis.
func (s *MinMaxSynopsis) MarshalBinary() ([]byte, error) {
	state := s.min.AppendBinary(nil)
	state = s.max.AppendBinary(state)
	return envelope(variantMinMax, s.typ, state)
}

// UnmarshalBinary implements Synopsis.
func (s *MinMaxSynopsis) UnmarshalBinary(data []byte) error {
	t, state, err := expect(data, variantMinMax)
	if err != nil {
		return err
	}
	lo, n, err := types.DecodeData(state)
	if err != nil {
		return corrupt(err)
	}
	hi, m, err := types.DecodeData(state[n:])
	if err != nil {
		return corrupt(err)
	}
	if n+m != len(state) {
		return corrupt(types.ErrCorrupt)
	}
	s.typ, s.min, s.max = t, lo, hi
	return nil
}
