package codec

import (
	"fmt"

	json "github.com/goccy/go-json"
)

/*
JSON stores attributes as JSON text. Values come back as the generic JSON
types (string, float64, bool, []any, map[string]any), which makes the table
readable from other languages at the cost of Go type fidelity.
*/
type JSON struct{}

func NewJSON() *JSON {
	return &JSON{}
}

func (codec *JSON) Encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)

	if err != nil {
		return nil, fmt.Errorf("json encode %T: %w", value, err)
	}

	return data, nil
}

func (codec *JSON) Decode(data []byte) (any, error) {
	var value any

	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	return value, nil
}
