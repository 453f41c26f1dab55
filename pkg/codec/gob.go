package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

/*
Gob encodes attributes with encoding/gob, which keeps concrete Go types across
a round trip. Basic types and their slices work out of the box; anything else
(maps, structs) must be registered with RegisterGob first, the same way
gob.Register is used for interface values.
*/
type Gob struct{}

func NewGob() *Gob {
	return &Gob{}
}

/*
RegisterGob makes the concrete types of values known to the gob codec.
*/
func RegisterGob(values ...any) {
	for _, value := range values {
		gob.Register(value)
	}
}

func (codec *Gob) Encode(value any) ([]byte, error) {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
		return nil, fmt.Errorf("gob encode %T: %w", value, err)
	}

	return buf.Bytes(), nil
}

func (codec *Gob) Decode(data []byte) (any, error) {
	var value any

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&value); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}

	return value, nil
}
