// Package valueindex provides bitmap value indexes over typed columns.
//
// A value index maps row positions to values and answers relational
// lookups with the set of matching positions. Positions are appended in
// strictly increasing order; skipped positions are never members of any
// result. Null values are tracked separately and only match "== nil".
package valueindex

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/ids"
	"github.com/hupe1980/eventidx/types"
)

// ValueIndex is the capability consumed by column indexes.
type ValueIndex interface {
	// Append records x at position pos. pos must not be below Offset.
	Append(x types.Data, pos uint64) error

	// Lookup returns the positions whose value satisfies "value op x".
	Lookup(op expr.Op, x types.Data) (*ids.IDs, error)

	// Offset returns one past the highest appended position.
	Offset() uint64

	// Type returns the indexed type.
	Type() types.Type

	// SizeBytes estimates the memory footprint.
	SizeBytes() uint64

	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// kernel is the kind-specific part of an Index.
type kernel interface {
	append(x types.Data, pos uint64) error
	lookup(op expr.Op, x types.Data, universe *ids.IDs) (*ids.IDs, error)
	sizeBytes() uint64
	encode(w *bytes.Buffer) error
	decode(r *bytes.Reader) error
}

const formatVersion = 1

// Index is a ValueIndex composed of position bookkeeping and a kernel.
type Index struct {
	typ    types.Type
	mask   *ids.IDs // every appended position
	none   *ids.IDs // positions holding null
	offset uint64
	k      kernel
}

func newIndex(t types.Type, k kernel) *Index {
	return &Index{typ: t, mask: ids.New(), none: ids.New(), k: k}
}

// Append implements ValueIndex.
func (x *Index) Append(v types.Data, pos uint64) error {
	if pos < x.offset {
		return ec.New(ec.ErrPrecondition, "position %d below offset %d", pos, x.offset)
	}
	if v.IsNil() {
		x.none.Add(pos)
	} else {
		if !v.Conforms(x.typ) {
			return ec.New(ec.ErrPrecondition, "value %s does not conform to %s", v, x.typ)
		}
		if err := x.k.append(v, pos); err != nil {
			return err
		}
	}
	x.mask.Add(pos)
	x.offset = pos + 1
	return nil
}

// Lookup implements ValueIndex.
func (x *Index) Lookup(op expr.Op, v types.Data) (*ids.IDs, error) {
	if v.IsNil() {
		switch op {
		case expr.Equal:
			return x.none.Clone(), nil
		case expr.NotEqual:
			return ids.Difference(x.mask, x.none), nil
		default:
			return nil, ec.New(ec.ErrPrecondition, "operator %s not applicable to nil", op)
		}
	}
	universe := ids.Difference(x.mask, x.none)
	result, err := x.k.lookup(op, v, universe)
	if err != nil {
		return nil, err
	}
	result.And(universe)
	return result, nil
}

// Offset implements ValueIndex.
func (x *Index) Offset() uint64 { return x.offset }

// Type implements ValueIndex.
func (x *Index) Type() types.Type { return x.typ }

// SizeBytes implements ValueIndex.
func (x *Index) SizeBytes() uint64 {
	return x.mask.SizeInBytes() + x.none.SizeInBytes() + x.k.sizeBytes()
}

// MarshalBinary implements ValueIndex.
func (x *Index) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(formatVersion)
	t, err := x.typ.MarshalBinary()
	if err != nil {
		return nil, err
	}
	writeBytes(&buf, t)
	buf.Write(binary.AppendUvarint(nil, x.offset))
	if err := writeIDs(&buf, x.mask); err != nil {
		return nil, err
	}
	if err := writeIDs(&buf, x.none); err != nil {
		return nil, err
	}
	if err := x.k.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements ValueIndex. The persisted type must be
// congruent to the type the index was created for.
func (x *Index) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return corrupt(err)
	}
	if version != formatVersion {
		return ec.New(ec.ErrPersistence, "unsupported value index version %d", version)
	}
	raw, err := readBytes(r)
	if err != nil {
		return err
	}
	var t types.Type
	if err := t.UnmarshalBinary(raw); err != nil {
		return corrupt(err)
	}
	if !t.Congruent(x.typ) {
		return ec.New(ec.ErrPersistence, "persisted type %s does not match %s", t, x.typ)
	}
	offset, err := binary.ReadUvarint(r)
	if err != nil {
		return corrupt(err)
	}
	mask, err := readIDs(r)
	if err != nil {
		return err
	}
	none, err := readIDs(r)
	if err != nil {
		return err
	}
	if err := x.k.decode(r); err != nil {
		return err
	}
	if r.Len() != 0 {
		return corrupt(fmt.Errorf("%d trailing bytes", r.Len()))
	}
	x.offset, x.mask, x.none = offset, mask, none
	return nil
}

func corrupt(err error) error {
	return ec.Wrap(ec.ErrPersistence, "decode value index", err)
}

func writeBytes(w *bytes.Buffer, p []byte) {
	w.Write(binary.AppendUvarint(nil, uint64(len(p))))
	w.Write(p)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, corrupt(err)
	}
	if n > uint64(r.Len()) {
		return nil, corrupt(fmt.Errorf("length %d exceeds remaining %d bytes", n, r.Len()))
	}
	p := make([]byte, n)
	if _, err := r.Read(p); err != nil && n > 0 {
		return nil, corrupt(err)
	}
	return p, nil
}

func writeIDs(w *bytes.Buffer, b *ids.IDs) error {
	p, err := b.MarshalBinary()
	if err != nil {
		return err
	}
	writeBytes(w, p)
	return nil
}

func readIDs(r *bytes.Reader) (*ids.IDs, error) {
	p, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	b := ids.New()
	if err := b.UnmarshalBinary(p); err != nil {
		return nil, corrupt(err)
	}
	return b, nil
}
