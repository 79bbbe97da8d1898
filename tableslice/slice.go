// Package tableslice provides table slices: batches of rows that share one
// record layout and carry a global row offset.
//
// Slices are immutable once built, except for the offset, which is assigned
// by the ingesting partition through a uniquely held Handle:
//
//	h := tableslice.NewHandle(s)
//	h.Unshared().SetOffset(next)
package tableslice

import (
	"slices"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/types"
	"github.com/hupe1980/eventidx/valueindex"
)

// Slice is a column-major batch of rows.
type Slice struct {
	layout   types.Type
	fields   []types.Field
	offset   uint64
	columns  [][]types.Data
	encoding string
}

// Layout returns the record type of the rows.
func (s *Slice) Layout() types.Type { return s.layout }

// Fields returns the flattened columns of the layout.
func (s *Slice) Fields() []types.Field { return s.fields }

// Offset returns the global row id of the first row.
func (s *Slice) Offset() uint64 { return s.offset }

// SetOffset changes the global row id of the first row. Only call it on an
// exclusively owned slice, see Handle.Unshared.
func (s *Slice) SetOffset(offset uint64) { s.offset = offset }

// Rows returns the number of rows.
func (s *Slice) Rows() int {
	if len(s.columns) == 0 {
		return 0
	}
	return len(s.columns[0])
}

// Columns returns the number of columns.
func (s *Slice) Columns() int { return len(s.fields) }

// Encoding returns the name of the encoding the slice was decoded from, or
// empty for slices built in memory.
func (s *Slice) Encoding() string { return s.encoding }

// At returns the value at row and column.
func (s *Slice) At(row, col int) types.Data { return s.columns[col][row] }

// Row returns the values of one row.
func (s *Slice) Row(row int) []types.Data {
	out := make([]types.Data, len(s.columns))
	for col := range s.columns {
		out[col] = s.columns[col][row]
	}
	return out
}

// Column returns the values of one column. The result must not be modified.
func (s *Slice) Column(col int) []types.Data { return s.columns[col] }

// AppendColumnToIndex appends every value of column col to idx at the
// global row id of its row.
func (s *Slice) AppendColumnToIndex(col int, idx valueindex.ValueIndex) error {
	if col < 0 || col >= len(s.columns) {
		return ec.New(ec.ErrPrecondition, "column %d out of range [0, %d)", col, len(s.columns))
	}
	for row, v := range s.columns[col] {
		if err := idx.Append(v, s.offset+uint64(row)); err != nil {
			return err
		}
	}
	return nil
}

// clone returns a deep copy of the column storage.
func (s *Slice) clone() *Slice {
	cp := *s
	cp.columns = make([][]types.Data, len(s.columns))
	for i, c := range s.columns {
		cp.columns[i] = slices.Clone(c)
	}
	return &cp
}

// Builder assembles a slice row by row.
type Builder struct {
	layout  types.Type
	fields  []types.Field
	columns [][]types.Data
}

// NewBuilder returns a builder for rows of layout, which must be a record.
func NewBuilder(layout types.Type) (*Builder, error) {
	fields := layout.Flatten()
	if len(fields) == 0 {
		return nil, ec.New(ec.ErrConstruction, "layout %s has no columns", layout)
	}
	return &Builder{
		layout:  layout,
		fields:  fields,
		columns: make([][]types.Data, len(fields)),
	}, nil
}

// Add appends one row. Values must conform to the column types.
func (b *Builder) Add(values ...types.Data) error {
	if len(values) != len(b.fields) {
		return ec.New(ec.ErrPrecondition, "row has %d values, layout has %d columns", len(values), len(b.fields))
	}
	for i, v := range values {
		if !v.Conforms(b.fields[i].Type) {
			return ec.New(ec.ErrPrecondition, "value %s does not conform to column %s of type %s", v, b.fields[i].Name, b.fields[i].Type)
		}
	}
	for i, v := range values {
		b.columns[i] = append(b.columns[i], v)
	}
	return nil
}

// Rows returns the number of rows added since the last Finish.
func (b *Builder) Rows() int { return len(b.columns[0]) }

// Finish returns the rows added so far as a slice at offset 0 and resets
// the builder.
func (b *Builder) Finish() *Slice {
	s := &Slice{layout: b.layout, fields: b.fields, columns: b.columns}
	b.columns = make([][]types.Data, len(b.fields))
	return s
}
