// Package ids provides sets of 64-bit row ids.
package ids

import (
	"bytes"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// IDs is a compressed set of row ids. The zero value is not usable; use New
// or Of.
type IDs struct {
	rb *roaring64.Bitmap
}

// New returns an empty set.
func New() *IDs {
	return &IDs{rb: roaring64.New()}
}

// Of returns the set containing xs.
func Of(xs ...uint64) *IDs {
	return &IDs{rb: roaring64.BitmapOf(xs...)}
}

// Range returns the set [lo, hi).
func Range(lo, hi uint64) *IDs {
	b := New()
	if hi > lo {
		b.rb.AddRange(lo, hi)
	}
	return b
}

// Add inserts id.
func (b *IDs) Add(id uint64) {
	b.rb.Add(id)
}

// AddRange inserts every id in [lo, hi).
func (b *IDs) AddRange(lo, hi uint64) {
	if hi > lo {
		b.rb.AddRange(lo, hi)
	}
}

// Contains reports whether id is in the set.
func (b *IDs) Contains(id uint64) bool {
	return b.rb.Contains(id)
}

// IsEmpty reports whether the set has no members.
func (b *IDs) IsEmpty() bool {
	return b == nil || b.rb.IsEmpty()
}

// Cardinality returns the number of members.
func (b *IDs) Cardinality() uint64 {
	if b == nil {
		return 0
	}
	return b.rb.GetCardinality()
}

// Clone returns a deep copy.
func (b *IDs) Clone() *IDs {
	if b == nil {
		return New()
	}
	return &IDs{rb: b.rb.Clone()}
}

// Or adds all members of other.
func (b *IDs) Or(other *IDs) {
	if other != nil {
		b.rb.Or(other.rb)
	}
}

// And keeps only members that are also in other.
func (b *IDs) And(other *IDs) {
	if other == nil {
		b.rb.Clear()
		return
	}
	b.rb.And(other.rb)
}

// AndNot removes all members of other.
func (b *IDs) AndNot(other *IDs) {
	if other != nil {
		b.rb.AndNot(other.rb)
	}
}

// Clear removes all members.
func (b *IDs) Clear() {
	b.rb.Clear()
}

// Equal reports whether b and other have the same members. A nil set
// equals an empty one.
func (b *IDs) Equal(other *IDs) bool {
	if b.IsEmpty() || other.IsEmpty() {
		return b.IsEmpty() && other.IsEmpty()
	}
	return b.rb.Equals(other.rb)
}

// SubsetOf reports whether every member of b is in other.
func (b *IDs) SubsetOf(other *IDs) bool {
	if b.IsEmpty() {
		return true
	}
	return Difference(b, other).IsEmpty()
}

// Iterator returns the members in increasing order.
func (b *IDs) Iterator() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		if b == nil {
			return
		}
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// Slice returns the members in increasing order.
func (b *IDs) Slice() []uint64 {
	if b == nil {
		return nil
	}
	return b.rb.ToArray()
}

// SizeInBytes returns the in-memory size estimate.
func (b *IDs) SizeInBytes() uint64 {
	return b.rb.GetSizeInBytes()
}

// Optimize converts runs to run-length encoding.
func (b *IDs) Optimize() {
	b.rb.RunOptimize()
}

// WriteTo writes the portable serialization of the set to w.
func (b *IDs) WriteTo(w io.Writer) (int64, error) {
	return b.rb.WriteTo(w)
}

// ReadFrom replaces the set with one read from r.
func (b *IDs) ReadFrom(r io.Reader) (int64, error) {
	return b.rb.ReadFrom(r)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (b *IDs) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.rb.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (b *IDs) UnmarshalBinary(data []byte) error {
	if b.rb == nil {
		b.rb = roaring64.New()
	}
	_, err := b.rb.ReadFrom(bytes.NewReader(data))
	return err
}

// String renders the set, e.g. "{0, 2, 4}".
func (b *IDs) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	first := true
	for id := range b.Iterator() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(strconv.FormatUint(id, 10))
	}
	sb.WriteString("}")
	return sb.String()
}

// Union returns a new set with the members of all xs.
func Union(xs ...*IDs) *IDs {
	out := New()
	for _, x := range xs {
		out.Or(x)
	}
	return out
}

// Intersection returns a new set with the members common to all xs. It
// returns an empty set for no arguments.
func Intersection(xs ...*IDs) *IDs {
	if len(xs) == 0 {
		return New()
	}
	out := xs[0].Clone()
	for _, x := range xs[1:] {
		out.And(x)
	}
	return out
}

// Difference returns a new set with the members of a that are not in b.
func Difference(a, b *IDs) *IDs {
	out := a.Clone()
	out.AndNot(b)
	return out
}
