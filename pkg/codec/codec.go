package codec

import (
	"fmt"
	"sort"
)

/*
Codec turns attribute values into bytes for the attribute table and back.
Both directions must report failures instead of producing a nil value.
*/
type Codec interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

var registry = map[string]func() Codec{
	"gob":  func() Codec { return NewGob() },
	"json": func() Codec { return NewJSON() },
	"cbor": func() Codec { return NewCBOR() },
}

/*
ByName returns the codec configured under name (gob, json or cbor).
*/
func ByName(name string) (Codec, error) {
	factory, ok := registry[name]

	if !ok {
		return nil, fmt.Errorf("unknown attribute codec %q (want one of %v)", name, Names())
	}

	return factory(), nil
}

/*
Names lists the registered codec names.
*/
func Names() []string {
	names := make([]string, 0, len(registry))

	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}
