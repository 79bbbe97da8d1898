package types

import (
	"encoding/binary"
	"errors"
	"math"
	"net/netip"
)

// ErrCorrupt is returned when decoding truncated or malformed input.
var ErrCorrupt = errors.New("types: corrupt encoding")

// AppendBinary appends the binary encoding of d to b.
func (d Data) AppendBinary(b []byte) []byte {
	b = append(b, byte(d.kind))
	switch d.kind {
	case KindBool:
		b = append(b, byte(d.i))
	case KindInteger, KindDuration, KindTime:
		b = binary.AppendVarint(b, d.i)
	case KindCount:
		b = binary.AppendUvarint(b, d.u)
	case KindReal:
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(d.f))
	case KindString:
		b = appendString(b, d.s)
	case KindAddress:
		b = appendAddr(b, d.addr)
	case KindSubnet:
		b = appendAddr(b, d.net.Addr())
		b = append(b, byte(d.net.Bits()))
	case KindList, KindMap:
		b = binary.AppendUvarint(b, uint64(len(d.xs)))
		for _, x := range d.xs {
			b = x.AppendBinary(b)
		}
	}
	return b
}

// DecodeData decodes one value from b and returns it with the number of
// bytes consumed.
func DecodeData(b []byte) (Data, int, error) {
	r := reader{b: b}
	d := r.data()
	if r.err != nil {
		return Nil, 0, r.err
	}
	return d, r.off, nil
}

// DataFromKey reverses Data.Key.
func DataFromKey(key string) (Data, error) {
	d, n, err := DecodeData([]byte(key))
	if err != nil {
		return Nil, err
	}
	if n != len(key) {
		return Nil, ErrCorrupt
	}
	return d, nil
}

// AppendBinary appends the binary encoding of t to b.
func (t Type) AppendBinary(b []byte) []byte {
	b = append(b, byte(t.Kind))
	b = appendString(b, t.Name)
	b = binary.AppendUvarint(b, uint64(len(t.Attrs)))
	for _, a := range t.Attrs {
		b = appendString(b, a.Key)
		b = appendString(b, a.Value)
	}
	switch t.Kind {
	case KindList:
		b = t.Elem.AppendBinary(b)
	case KindMap:
		b = t.Key.AppendBinary(b)
		b = t.Elem.AppendBinary(b)
	case KindRecord:
		b = binary.AppendUvarint(b, uint64(len(t.Fields)))
		for _, f := range t.Fields {
			b = appendString(b, f.Name)
			b = f.Type.AppendBinary(b)
		}
	}
	return b
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (t Type) MarshalBinary() ([]byte, error) {
	if t.Kind == KindList && t.Elem == nil || t.Kind == KindMap && (t.Key == nil || t.Elem == nil) {
		return nil, errors.New("types: incomplete container type")
	}
	return t.AppendBinary(nil), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (t *Type) UnmarshalBinary(b []byte) error {
	u, n, err := DecodeType(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return ErrCorrupt
	}
	*t = u
	return nil
}

// DecodeType decodes one type from b and returns it with the number of
// bytes consumed.
func DecodeType(b []byte) (Type, int, error) {
	r := reader{b: b}
	t := r.typ(0)
	if r.err != nil {
		return Type{}, 0, r.err
	}
	return t, r.off, nil
}

func appendString(b []byte, s string) []byte {
	b = binary.AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}

func appendAddr(b []byte, a netip.Addr) []byte {
	if a.Is4() {
		b = append(b, 4)
	} else {
		b = append(b, 6)
	}
	raw := a.As16()
	return append(b, raw[:]...)
}

// maxDepth bounds nesting while decoding untrusted input.
const maxDepth = 64

type reader struct {
	b   []byte
	off int
	err error
}

func (r *reader) fail() {
	if r.err == nil {
		r.err = ErrCorrupt
	}
}

func (r *reader) byte() byte {
	if r.err != nil || r.off >= len(r.b) {
		r.fail()
		return 0
	}
	c := r.b[r.off]
	r.off++
	return c
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil || n < 0 || len(r.b)-r.off < n {
		r.fail()
		return nil
	}
	p := r.b[r.off : r.off+n]
	r.off += n
	return p
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.b[r.off:])
	if n <= 0 {
		r.fail()
		return 0
	}
	r.off += n
	return v
}

func (r *reader) varint() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.b[r.off:])
	if n <= 0 {
		r.fail()
		return 0
	}
	r.off += n
	return v
}

func (r *reader) length() int {
	n := r.uvarint()
	if n > uint64(len(r.b)-r.off) {
		r.fail()
		return 0
	}
	return int(n)
}

func (r *reader) string() string {
	return string(r.bytes(r.length()))
}

func (r *reader) addr() netip.Addr {
	family := r.byte()
	raw := r.bytes(16)
	if r.err != nil {
		return netip.Addr{}
	}
	a := netip.AddrFrom16([16]byte(raw))
	switch family {
	case 4:
		return a.Unmap()
	case 6:
		return a
	default:
		r.fail()
		return netip.Addr{}
	}
}

func (r *reader) data() Data {
	return r.dataDepth(0)
}

func (r *reader) dataDepth(depth int) Data {
	if depth > maxDepth {
		r.fail()
		return Nil
	}
	d := Data{kind: Kind(r.byte())}
	switch d.kind {
	case KindNone:
	case KindBool:
		d.i = int64(r.byte())
		if d.i > 1 {
			r.fail()
		}
	case KindInteger, KindDuration, KindTime:
		d.i = r.varint()
	case KindCount:
		d.u = r.uvarint()
	case KindReal:
		if p := r.bytes(8); p != nil {
			d.f = math.Float64frombits(binary.LittleEndian.Uint64(p))
		}
	case KindString:
		d.s = r.string()
	case KindAddress:
		d.addr = r.addr()
	case KindSubnet:
		a := r.addr()
		bits := int(r.byte())
		p := netip.PrefixFrom(a, bits)
		if r.err == nil && !p.IsValid() {
			r.fail()
		}
		d.net = p
	case KindList, KindMap:
		n := r.length()
		if d.kind == KindMap && n%2 != 0 {
			r.fail()
		}
		if n > 0 && r.err == nil {
			d.xs = make([]Data, 0, n)
			for range n {
				d.xs = append(d.xs, r.dataDepth(depth+1))
				if r.err != nil {
					break
				}
			}
		}
	default:
		r.fail()
	}
	return d
}

func (r *reader) typ(depth int) Type {
	if depth > maxDepth {
		r.fail()
		return Type{}
	}
	t := Type{Kind: Kind(r.byte())}
	if t.Kind > KindRecord {
		r.fail()
		return Type{}
	}
	t.Name = r.string()
	if n := r.length(); n > 0 && r.err == nil {
		t.Attrs = make([]Attribute, 0, n)
		for range n {
			t.Attrs = append(t.Attrs, Attribute{Key: r.string(), Value: r.string()})
		}
	}
	switch t.Kind {
	case KindList:
		elem := r.typ(depth + 1)
		t.Elem = &elem
	case KindMap:
		key := r.typ(depth + 1)
		elem := r.typ(depth + 1)
		t.Key, t.Elem = &key, &elem
	case KindRecord:
		if n := r.length(); n > 0 && r.err == nil {
			t.Fields = make([]Field, 0, n)
			for range n {
				name := r.string()
				t.Fields = append(t.Fields, Field{Name: name, Type: r.typ(depth + 1)})
				if r.err != nil {
					break
				}
			}
		}
	}
	return t
}
