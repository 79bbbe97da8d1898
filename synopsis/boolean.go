package synopsis

import (
	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/types"
)

// BoolSynopsis records whether true and false values were observed.
type BoolSynopsis struct {
	typ       types.Type
	seenTrue  bool
	seenFalse bool
}

// NewBoolSynopsis creates an empty bool synopsis for t.
func NewBoolSynopsis(t types.Type) (*BoolSynopsis, error) {
	if t.Kind != types.KindBool {
		return nil, ec.New(ec.ErrConstruction, "no bool synopsis for type %s", t)
	}
	return &BoolSynopsis{typ: t}, nil
}

// Type implements Synopsis.
func (s *BoolSynopsis) Type() types.Type { return s.typ }

// Add implements Synopsis.
func (s *BoolSynopsis) Add(x types.Data) {
	b, ok := x.AsBool()
	if !ok {
		return
	}
	if b {
		s.seenTrue = true
	} else {
		s.seenFalse = true
	}
}

// Lookup implements Synopsis.
func (s *BoolSynopsis) Lookup(op expr.Op, rhs types.Data) Result {
	b, ok := rhs.AsBool()
	if !ok {
		return Indeterminate
	}
	switch op {
	case expr.Equal:
		return FromBool(s.seen(b))
	case expr.NotEqual:
		return FromBool(s.seen(!b))
	default:
		return Indeterminate
	}
}

func (s *BoolSynopsis) seen(b bool) bool {
	if b {
		return s.seenTrue
	}
	return s.seenFalse
}

// SizeBytes implements Synopsis.
func (s *BoolSynopsis) SizeBytes() uint64 { return 2 }

// Equal implements Synopsis.
func (s *BoolSynopsis) Equal(other Synopsis) bool {
	o, ok := other.(*BoolSynopsis)
	return ok && s.typ.Equal(o.typ) && s.seenTrue == o.seenTrue && s.seenFalse == o.seenFalse
}

// MarshalBinary implements Synopsis.
func (s *BoolSynopsis) MarshalBinary() ([]byte, error) {
	var flags byte
	if s.seenTrue {
		flags |= 1
	}
	if s.seenFalse {
		flags |= 2
	}
	return envelope(variantBool, s.typ, []byte{flags})
}

// UnmarshalBinary implements Synopsis.
func (s *BoolSynopsis) UnmarshalBinary(data []byte) error {
	t, state, err := expect(data, variantBool)
	if err != nil {
		return err
	}
	if len(state) != 1 || state[0] > 3 {
		return corrupt(types.ErrCorrupt)
	}
	s.typ, s.seenTrue, s.seenFalse = t, state[0]&1 != 0, state[0]&2 != 0
	return nil
}
