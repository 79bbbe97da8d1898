// Package codec provides the encodings of table slices and partition
// metadata.
//
// Encoded table slices carry the name of their codec, so data written with
// one codec stays readable when Default changes.
package codec

// Codec marshals values. Implementations are safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default encodes new table slices and partition metadata.
var Default Codec = GoJSON{}

// ByName resolves a codec name recorded next to encoded data.
func ByName(name string) (Codec, bool) {
	for _, c := range []Codec{GoJSON{}, JSON{}} {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// OrDefault returns Default for a nil c.
func OrDefault(c Codec) Codec {
	if c == nil {
		return Default
	}
	return c
}

// Decode unmarshals data into a new T.
func Decode[T any](c Codec, data []byte) (T, error) {
	var v T
	err := OrDefault(c).Unmarshal(data, &v)
	return v, err
}
