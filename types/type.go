// Package types provides declared column types and typed values.
//
// The kind set is closed: every Type and every Data carries one of the Kind
// constants below, and all consumers dispatch on it with a switch.
//
// Types can carry attributes (key/value strings). Two attributes are
// understood by the indexing core:
//
//	skip                         never index this column
//	synopsis=bloomfilter(n,p)    Bloom filter sizing for the column synopsis
package types

import (
	"slices"
	"strings"
)

// Kind identifies the concrete type of a column or value.
type Kind uint8

const (
	// KindNone is the null kind. A Type of KindNone is invalid.
	KindNone Kind = iota
	// KindBool is a boolean.
	KindBool
	// KindInteger is a signed 64-bit integer.
	KindInteger
	// KindCount is an unsigned 64-bit integer.
	KindCount
	// KindReal is a 64-bit float.
	KindReal
	// KindDuration is a time span with nanosecond resolution.
	KindDuration
	// KindTime is a point in time with nanosecond resolution.
	KindTime
	// KindString is a UTF-8 string.
	KindString
	// KindAddress is an IPv4 or IPv6 address.
	KindAddress
	// KindSubnet is an address prefix.
	KindSubnet
	// KindList is a homogeneous list.
	KindList
	// KindMap is an associative array.
	KindMap
	// KindRecord is a sequence of named fields.
	KindRecord
)

var kindNames = [...]string{
	KindNone:     "none",
	KindBool:     "bool",
	KindInteger:  "int",
	KindCount:    "count",
	KindReal:     "real",
	KindDuration: "duration",
	KindTime:     "time",
	KindString:   "string",
	KindAddress:  "addr",
	KindSubnet:   "subnet",
	KindList:     "list",
	KindMap:      "map",
	KindRecord:   "record",
}

// String returns the short name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// KindByName returns the kind with the given short name.
func KindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return KindNone, false
}

// Basic reports whether the kind is a scalar kind.
func (k Kind) Basic() bool {
	return k >= KindBool && k <= KindSubnet
}

// Attribute is a key/value annotation on a type. An empty Value means the
// attribute is a flag.
type Attribute struct {
	Key   string
	Value string
}

// Well-known attribute keys.
const (
	AttrSkip     = "skip"
	AttrSynopsis = "synopsis"
)

// Field is a named member of a record type.
type Field struct {
	Name string
	Type Type
}

// Type is a declared column type.
type Type struct {
	Kind   Kind
	Name   string      // optional alias, e.g. "port"
	Elem   *Type       // element type of lists, value type of maps
	Key    *Type       // key type of maps
	Fields []Field     // members of records
	Attrs  []Attribute // annotations
}

// BoolType returns the bool type.
func BoolType() Type { return Type{Kind: KindBool} }

// IntegerType returns the int type.
func IntegerType() Type { return Type{Kind: KindInteger} }

// CountType returns the count type.
func CountType() Type { return Type{Kind: KindCount} }

// RealType returns the real type.
func RealType() Type { return Type{Kind: KindReal} }

// DurationType returns the duration type.
func DurationType() Type { return Type{Kind: KindDuration} }

// TimeType returns the time type.
func TimeType() Type { return Type{Kind: KindTime} }

// StringType returns the string type.
func StringType() Type { return Type{Kind: KindString} }

// AddressType returns the addr type.
func AddressType() Type { return Type{Kind: KindAddress} }

// SubnetType returns the subnet type.
func SubnetType() Type { return Type{Kind: KindSubnet} }

// ListType returns a list of elem.
func ListType(elem Type) Type { return Type{Kind: KindList, Elem: &elem} }

// MapType returns a map from key to value.
func MapType(key, value Type) Type { return Type{Kind: KindMap, Key: &key, Elem: &value} }

// RecordType returns a record with the given fields.
func RecordType(fields ...Field) Type { return Type{Kind: KindRecord, Fields: fields} }

// Named returns a copy of t with the alias name set.
func (t Type) Named(name string) Type {
	t.Name = name
	return t
}

// Valid reports whether t denotes a concrete type.
func (t Type) Valid() bool { return t.Kind != KindNone }

// WithAttributes returns a copy of t whose attributes are replaced by attrs.
func (t Type) WithAttributes(attrs ...Attribute) Type {
	t.Attrs = slices.Clone(attrs)
	return t
}

// WithAttribute returns a copy of t with the attribute key set to value.
// Any prior attribute with the same key is replaced.
func (t Type) WithAttribute(key, value string) Type {
	attrs := make([]Attribute, 0, len(t.Attrs)+1)
	for _, a := range t.Attrs {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	t.Attrs = append(attrs, Attribute{Key: key, Value: value})
	return t
}

// Attribute returns the value of the attribute key.
func (t Type) Attribute(key string) (string, bool) {
	for _, a := range t.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// HasSkipAttribute reports whether the column must never be indexed.
func (t Type) HasSkipAttribute() bool {
	_, ok := t.Attribute(AttrSkip)
	return ok
}

// Equal reports whether t and u are structurally identical, including
// names and attributes.
func (t Type) Equal(u Type) bool {
	if t.Kind != u.Kind || t.Name != u.Name || !slices.Equal(t.Attrs, u.Attrs) {
		return false
	}
	if !equalPtr(t.Elem, u.Elem) || !equalPtr(t.Key, u.Key) {
		return false
	}
	return slices.EqualFunc(t.Fields, u.Fields, func(a, b Field) bool {
		return a.Name == b.Name && a.Type.Equal(b.Type)
	})
}

// Congruent reports whether t and u have the same structure, ignoring
// names and attributes.
func (t Type) Congruent(u Type) bool {
	if t.Kind != u.Kind {
		return false
	}
	switch t.Kind {
	case KindList:
		return t.Elem != nil && u.Elem != nil && t.Elem.Congruent(*u.Elem)
	case KindMap:
		return t.Key != nil && u.Key != nil && t.Elem != nil && u.Elem != nil &&
			t.Key.Congruent(*u.Key) && t.Elem.Congruent(*u.Elem)
	case KindRecord:
		return slices.EqualFunc(t.Fields, u.Fields, func(a, b Field) bool {
			return a.Type.Congruent(b.Type)
		})
	default:
		return true
	}
}

func equalPtr(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Flatten returns the leaf fields of a record type in column order. Nested
// record names are joined with a dot. Non-record types yield nil.
func (t Type) Flatten() []Field {
	if t.Kind != KindRecord {
		return nil
	}
	var out []Field
	var walk func(prefix string, fields []Field)
	walk = func(prefix string, fields []Field) {
		for _, f := range fields {
			name := f.Name
			if prefix != "" {
				name = prefix + "." + f.Name
			}
			if f.Type.Kind == KindRecord {
				walk(name, f.Type.Fields)
				continue
			}
			out = append(out, Field{Name: name, Type: f.Type})
		}
	}
	walk("", t.Fields)
	return out
}

// String renders the type, e.g. "list<addr> #skip".
func (t Type) String() string {
	var sb strings.Builder
	if t.Name != "" {
		sb.WriteString(t.Name)
	} else {
		t.writeStructure(&sb)
	}
	for _, a := range t.Attrs {
		sb.WriteString(" #")
		sb.WriteString(a.Key)
		if a.Value != "" {
			sb.WriteString("=")
			sb.WriteString(a.Value)
		}
	}
	return sb.String()
}

func (t Type) writeStructure(sb *strings.Builder) {
	sb.WriteString(t.Kind.String())
	switch t.Kind {
	case KindList:
		if t.Elem != nil {
			sb.WriteString("<" + t.Elem.String() + ">")
		}
	case KindMap:
		if t.Key != nil && t.Elem != nil {
			sb.WriteString("<" + t.Key.String() + ", " + t.Elem.String() + ">")
		}
	case KindRecord:
		sb.WriteString("{")
		for i, f := range t.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name + ": " + f.Type.String())
		}
		sb.WriteString("}")
	}
}
