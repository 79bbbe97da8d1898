package tableslice

import (
	"encoding/binary"
	"sync"

	"github.com/hupe1980/eventidx/codec"
	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/types"
)

// Encoding converts slices to and from bytes.
type Encoding interface {
	Name() string
	Encode(s *Slice) ([]byte, error)
	Decode(data []byte) (*Slice, error)
}

// wireSlice is the codec representation of a slice. Values are stored in
// their binary encoding.
type wireSlice struct {
	Layout  []byte     `json:"layout"`
	Offset  uint64     `json:"offset"`
	Columns [][][]byte `json:"columns"`
}

// CodecEncoding encodes slices with a codec.
type CodecEncoding struct {
	Codec codec.Codec
}

// Name implements Encoding.
func (e CodecEncoding) Name() string { return codec.OrDefault(e.Codec).Name() }

// Encode implements Encoding.
func (e CodecEncoding) Encode(s *Slice) ([]byte, error) {
	layout, err := s.layout.MarshalBinary()
	if err != nil {
		return nil, err
	}
	w := wireSlice{Layout: layout, Offset: s.offset, Columns: make([][][]byte, len(s.columns))}
	for i, c := range s.columns {
		w.Columns[i] = make([][]byte, len(c))
		for j, v := range c {
			w.Columns[i][j] = v.AppendBinary(nil)
		}
	}
	return codec.OrDefault(e.Codec).Marshal(w)
}

// Decode implements Encoding.
func (e CodecEncoding) Decode(data []byte) (*Slice, error) {
	var w wireSlice
	if err := codec.OrDefault(e.Codec).Unmarshal(data, &w); err != nil {
		return nil, ec.Wrap(ec.ErrPersistence, "decode table slice", err)
	}
	var layout types.Type
	if err := layout.UnmarshalBinary(w.Layout); err != nil {
		return nil, ec.Wrap(ec.ErrPersistence, "decode table slice layout", err)
	}
	fields := layout.Flatten()
	if len(fields) != len(w.Columns) {
		return nil, ec.New(ec.ErrPersistence, "table slice has %d columns, layout has %d", len(w.Columns), len(fields))
	}
	s := &Slice{layout: layout, fields: fields, offset: w.Offset, columns: make([][]types.Data, len(w.Columns)), encoding: e.Name()}
	for i, c := range w.Columns {
		if i > 0 && len(c) != len(w.Columns[0]) {
			return nil, ec.New(ec.ErrPersistence, "column %d has %d rows, expected %d", i, len(c), len(w.Columns[0]))
		}
		s.columns[i] = make([]types.Data, len(c))
		for j, raw := range c {
			v, err := types.DataFromKey(string(raw))
			if err != nil {
				return nil, ec.Wrap(ec.ErrPersistence, "decode table slice value", err)
			}
			s.columns[i][j] = v
		}
	}
	return s, nil
}

// Registry maps encoding names to encodings. Encoded slices are prefixed
// with the encoding name, so Decode selects the encoding automatically.
type Registry struct {
	mu        sync.RWMutex
	encodings map[string]Encoding
	def       string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{encodings: make(map[string]Encoding)}
}

// DefaultRegistry returns a registry with the built-in codec encodings. The
// default encoding is the default codec.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(CodecEncoding{Codec: codec.JSON{}})
	r.Register(CodecEncoding{Codec: codec.GoJSON{}})
	r.def = codec.Default.Name()
	return r
}

// Register installs e under its name. The first registered encoding
// becomes the default.
func (r *Registry) Register(e Encoding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encodings[e.Name()] = e
	if r.def == "" {
		r.def = e.Name()
	}
}

// Lookup returns the encoding registered under name.
func (r *Registry) Lookup(name string) (Encoding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.encodings[name]
	return e, ok
}

// Encode encodes s with the named encoding, or the default for an empty name.
func (r *Registry) Encode(s *Slice, name string) ([]byte, error) {
	if name == "" {
		r.mu.RLock()
		name = r.def
		r.mu.RUnlock()
	}
	e, ok := r.Lookup(name)
	if !ok {
		return nil, ec.New(ec.ErrConstruction, "unknown table slice encoding %q", name)
	}
	payload, err := e.Encode(s)
	if err != nil {
		return nil, err
	}
	out := binary.AppendUvarint(nil, uint64(len(name)))
	out = append(out, name...)
	return append(out, payload...), nil
}

// Decode decodes a slice produced by Encode.
func (r *Registry) Decode(data []byte) (*Slice, error) {
	n, k := binary.Uvarint(data)
	if k <= 0 || n > uint64(len(data)-k) {
		return nil, ec.New(ec.ErrPersistence, "truncated table slice header")
	}
	name := string(data[k : k+int(n)])
	e, ok := r.Lookup(name)
	if !ok {
		return nil, ec.New(ec.ErrPersistence, "unknown table slice encoding %q", name)
	}
	return e.Decode(data[k+int(n):])
}
