package types

import (
	"cmp"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// Data is a typed value. The zero value is the null value.
type Data struct {
	kind Kind
	i    int64 // bool, integer, duration, time
	u    uint64
	f    float64
	s    string
	addr netip.Addr
	net  netip.Prefix
	xs   []Data // list elements, or alternating map keys and values
}

// Nil is the null value.
var Nil = Data{}

// Bool returns a bool value.
func Bool(b bool) Data {
	d := Data{kind: KindBool}
	if b {
		d.i = 1
	}
	return d
}

// Integer returns an int value.
func Integer(i int64) Data { return Data{kind: KindInteger, i: i} }

// Count returns a count value.
func Count(u uint64) Data { return Data{kind: KindCount, u: u} }

// Real returns a real value.
func Real(f float64) Data { return Data{kind: KindReal, f: f} }

// Duration returns a duration value.
func Duration(d time.Duration) Data { return Data{kind: KindDuration, i: int64(d)} }

// Time returns a time value.
func Time(t time.Time) Data { return Data{kind: KindTime, i: t.UnixNano()} }

// String returns a string value.
func String(s string) Data { return Data{kind: KindString, s: s} }

// Address returns an address value. IPv4-mapped IPv6 addresses are unmapped
// so that both spellings compare equal.
func Address(a netip.Addr) Data { return Data{kind: KindAddress, addr: a.Unmap()} }

// Subnet returns a subnet value with the host bits masked.
func Subnet(p netip.Prefix) Data {
	p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits()).Masked()
	return Data{kind: KindSubnet, net: p}
}

// List returns a list value.
func List(xs ...Data) Data { return Data{kind: KindList, xs: xs} }

// MapEntry is a key/value pair of a map value.
type MapEntry struct {
	Key   Data
	Value Data
}

// Map returns a map value.
func Map(entries ...MapEntry) Data {
	xs := make([]Data, 0, 2*len(entries))
	for _, e := range entries {
		xs = append(xs, e.Key, e.Value)
	}
	return Data{kind: KindMap, xs: xs}
}

// MustParseAddress parses s as an address value and panics on failure.
func MustParseAddress(s string) Data { return Address(netip.MustParseAddr(s)) }

// MustParseSubnet parses s as a subnet value and panics on failure.
func MustParseSubnet(s string) Data { return Subnet(netip.MustParsePrefix(s)) }

// Kind returns the kind of the value.
func (d Data) Kind() Kind { return d.kind }

// IsNil reports whether d is the null value.
func (d Data) IsNil() bool { return d.kind == KindNone }

// AsBool returns the bool value.
func (d Data) AsBool() (bool, bool) { return d.i != 0, d.kind == KindBool }

// AsInteger returns the int value.
func (d Data) AsInteger() (int64, bool) { return d.i, d.kind == KindInteger }

// AsCount returns the count value.
func (d Data) AsCount() (uint64, bool) { return d.u, d.kind == KindCount }

// AsReal returns the real value.
func (d Data) AsReal() (float64, bool) { return d.f, d.kind == KindReal }

// AsDuration returns the duration value.
func (d Data) AsDuration() (time.Duration, bool) { return time.Duration(d.i), d.kind == KindDuration }

// AsTime returns the time value in UTC.
func (d Data) AsTime() (time.Time, bool) { return time.Unix(0, d.i).UTC(), d.kind == KindTime }

// AsString returns the string value.
func (d Data) AsString() (string, bool) { return d.s, d.kind == KindString }

// AsAddress returns the address value.
func (d Data) AsAddress() (netip.Addr, bool) { return d.addr, d.kind == KindAddress }

// AsSubnet returns the subnet value.
func (d Data) AsSubnet() (netip.Prefix, bool) { return d.net, d.kind == KindSubnet }

// AsList returns the list elements.
func (d Data) AsList() ([]Data, bool) { return d.xs, d.kind == KindList }

// AsMap returns the map entries.
func (d Data) AsMap() ([]MapEntry, bool) {
	if d.kind != KindMap {
		return nil, false
	}
	out := make([]MapEntry, 0, len(d.xs)/2)
	for i := 0; i+1 < len(d.xs); i += 2 {
		out = append(out, MapEntry{Key: d.xs[i], Value: d.xs[i+1]})
	}
	return out, true
}

// Key returns a string that uniquely identifies the value. Two values are
// equal iff their keys are equal. The key is the binary encoding of d.
func (d Data) Key() string {
	return string(d.AppendBinary(nil))
}

// Equal reports whether d and o are the same value.
func (d Data) Equal(o Data) bool {
	if d.kind != o.kind {
		return false
	}
	switch d.kind {
	case KindNone:
		return true
	case KindBool, KindInteger, KindDuration, KindTime:
		return d.i == o.i
	case KindCount:
		return d.u == o.u
	case KindReal:
		return d.f == o.f
	case KindString:
		return d.s == o.s
	case KindAddress:
		return d.addr == o.addr
	case KindSubnet:
		return d.net == o.net
	default:
		if len(d.xs) != len(o.xs) {
			return false
		}
		for i := range d.xs {
			if !d.xs[i].Equal(o.xs[i]) {
				return false
			}
		}
		return true
	}
}

// Compare orders two values of the same scalar kind. The second result is
// false if the values are not comparable. Integers, counts and reals compare
// across kinds by numeric value.
func Compare(a, b Data) (int, bool) {
	if a.kind != b.kind {
		x, okA := a.number()
		y, okB := b.number()
		if okA && okB {
			return cmp.Compare(x, y), true
		}
		return 0, false
	}
	switch a.kind {
	case KindBool, KindInteger, KindDuration, KindTime:
		return cmp.Compare(a.i, b.i), true
	case KindCount:
		return cmp.Compare(a.u, b.u), true
	case KindReal:
		return cmp.Compare(a.f, b.f), true
	case KindString:
		return strings.Compare(a.s, b.s), true
	case KindAddress:
		return a.addr.Compare(b.addr), true
	default:
		return 0, false
	}
}

func (d Data) number() (float64, bool) {
	switch d.kind {
	case KindInteger:
		return float64(d.i), true
	case KindCount:
		return float64(d.u), true
	case KindReal:
		return d.f, true
	default:
		return 0, false
	}
}

// Conforms reports whether d is a valid value of type t. The null value
// conforms to every type.
func (d Data) Conforms(t Type) bool {
	if d.kind == KindNone {
		return true
	}
	if d.kind != t.Kind {
		return false
	}
	switch t.Kind {
	case KindList:
		for _, x := range d.xs {
			if t.Elem == nil || !x.Conforms(*t.Elem) {
				return false
			}
		}
	case KindMap:
		for i := 0; i+1 < len(d.xs); i += 2 {
			if t.Key == nil || t.Elem == nil || !d.xs[i].Conforms(*t.Key) || !d.xs[i+1].Conforms(*t.Elem) {
				return false
			}
		}
	}
	return true
}

// String renders the value in a human-readable form.
func (d Data) String() string {
	switch d.kind {
	case KindNone:
		return "nil"
	case KindBool:
		return strconv.FormatBool(d.i != 0)
	case KindInteger:
		if d.i >= 0 {
			return "+" + strconv.FormatInt(d.i, 10)
		}
		return strconv.FormatInt(d.i, 10)
	case KindCount:
		return strconv.FormatUint(d.u, 10)
	case KindReal:
		return strconv.FormatFloat(d.f, 'g', -1, 64)
	case KindDuration:
		return time.Duration(d.i).String()
	case KindTime:
		return time.Unix(0, d.i).UTC().Format(time.RFC3339Nano)
	case KindString:
		return strconv.Quote(d.s)
	case KindAddress:
		return d.addr.String()
	case KindSubnet:
		return d.net.String()
	case KindList:
		parts := make([]string, len(d.xs))
		for i, x := range d.xs {
			parts[i] = x.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := make([]string, 0, len(d.xs)/2)
		for i := 0; i+1 < len(d.xs); i += 2 {
			parts = append(parts, d.xs[i].String()+" -> "+d.xs[i+1].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("<%s>", d.kind)
	}
}
