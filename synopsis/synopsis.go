// Package synopsis provides compact per-partition column summaries that let
// a query skip partitions without consulting their column indexes.
//
// A lookup answers with a tri-state Result. False means no row of the
// partition can satisfy the predicate; True means some row may satisfy it;
// Indeterminate means the synopsis cannot answer the operator.
//
// Fixed synopses (Bloom filter, min/max, bool) are serializable. Buffered
// synopses hold an exact value set during ingestion and must be shrunk into
// a fixed synopsis before persistence.
package synopsis

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/types"
)

// Result is the tri-state outcome of a synopsis lookup.
type Result uint8

const (
	// Indeterminate means the synopsis cannot answer.
	Indeterminate Result = iota
	// False means the predicate cannot hold for any summarized value.
	False
	// True means the predicate may hold.
	True
)

func (r Result) String() string {
	switch r {
	case False:
		return "false"
	case True:
		return "true"
	default:
		return "indeterminate"
	}
}

// FromBool converts b into True or False.
func FromBool(b bool) Result {
	if b {
		return True
	}
	return False
}

// Synopsis summarizes the values of one column of one partition.
type Synopsis interface {
	// Type returns the declared column type, including sizing annotations.
	Type() types.Type

	// Add records an observed value. Null values are ignored.
	Add(x types.Data)

	// Lookup evaluates "column op rhs" against the summary.
	Lookup(op expr.Op, rhs types.Data) Result

	// SizeBytes estimates the memory footprint.
	SizeBytes() uint64

	// Equal reports whether other is the same variant with the same type
	// and state.
	Equal(other Synopsis) bool

	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// Shrinker is implemented by synopses that must be converted before they
// can be persisted.
type Shrinker interface {
	Shrink() (Synopsis, error)
}

// Finalize shrinks s if it is a Shrinker and returns s unchanged otherwise.
func Finalize(s Synopsis) (Synopsis, error) {
	if sh, ok := s.(Shrinker); ok {
		return sh.Shrink()
	}
	return s, nil
}

type variant uint8

const (
	variantBloom variant = iota + 1
	variantMinMax
	variantBool
)

// envelope writes the variant tag and type ahead of the variant state.
func envelope(v variant, t types.Type, state []byte) ([]byte, error) {
	tb, err := t.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+binary.MaxVarintLen64+len(tb)+len(state))
	out = append(out, byte(v))
	out = binary.AppendUvarint(out, uint64(len(tb)))
	out = append(out, tb...)
	return append(out, state...), nil
}

// open splits an envelope into its parts.
func open(data []byte) (variant, types.Type, []byte, error) {
	r := bytes.NewReader(data)
	tag, err := r.ReadByte()
	if err != nil {
		return 0, types.Type{}, nil, corrupt(err)
	}
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, types.Type{}, nil, corrupt(err)
	}
	if n > uint64(r.Len()) {
		return 0, types.Type{}, nil, corrupt(fmt.Errorf("type length %d exceeds input", n))
	}
	start := len(data) - r.Len()
	var t types.Type
	if err := t.UnmarshalBinary(data[start : start+int(n)]); err != nil {
		return 0, types.Type{}, nil, corrupt(err)
	}
	return variant(tag), t, data[start+int(n):], nil
}

// Unmarshal decodes any fixed synopsis by its variant tag.
func Unmarshal(data []byte) (Synopsis, error) {
	v, _, _, err := open(data)
	if err != nil {
		return nil, err
	}
	var s Synopsis
	switch v {
	case variantBloom:
		s = &BloomSynopsis{}
	case variantMinMax:
		s = &MinMaxSynopsis{}
	case variantBool:
		s = &BoolSynopsis{}
	default:
		return nil, ec.New(ec.ErrPersistence, "unknown synopsis variant %d", v)
	}
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return s, nil
}

func corrupt(err error) error {
	return ec.Wrap(ec.ErrPersistence, "decode synopsis", err)
}

func expect(data []byte, want variant) (types.Type, []byte, error) {
	v, t, state, err := open(data)
	if err != nil {
		return types.Type{}, nil, err
	}
	if v != want {
		return types.Type{}, nil, ec.New(ec.ErrPersistence, "synopsis variant %d, expected %d", v, want)
	}
	return t, state, nil
}
