package codec

import (
	"encoding/json"

	gojson "github.com/goccy/go-json"
)

// GoJSON uses github.com/goccy/go-json. It produces the same bytes as JSON
// and is the default.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error)      { return gojson.Marshal(v) }
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }
func (GoJSON) Name() string                       { return "go-json" }

// JSON uses encoding/json, for slices exchanged with tools that decode
// with the standard library.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Name() string                       { return "json" }
