package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Offset uint64   `json:"offset"`
	Values []string `json:"values"`
}

func TestCodecsAgree(t *testing.T) {
	want := record{Offset: 42, Values: []string{"a", "b"}}
	var encoded [][]byte
	for _, name := range []string{"json", "go-json"} {
		t.Run(name, func(t *testing.T) {
			c, ok := ByName(name)
			require.True(t, ok)
			assert.Equal(t, name, c.Name())

			b, err := c.Marshal(want)
			require.NoError(t, err)
			encoded = append(encoded, b)

			got, err := Decode[record](c, b)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
	require.Len(t, encoded, 2)
	assert.JSONEq(t, string(encoded[0]), string(encoded[1]))
}

func TestByNameUnknown(t *testing.T) {
	_, ok := ByName("msgpack")
	assert.False(t, ok)
	assert.Equal(t, Default, OrDefault(nil))
	assert.Equal(t, JSON{}, OrDefault(JSON{}))
}

func TestDecodeError(t *testing.T) {
	_, err := Decode[record](nil, []byte("{"))
	assert.Error(t, err)
}
