package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

/*
CBOR stores attributes as compact binary CBOR. Integers decode as int64 and
maps as map[string]any.
*/
type CBOR struct {
	decMode cbor.DecMode
}

func NewCBOR() *CBOR {
	decMode, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()

	if err != nil {
		panic(fmt.Sprintf("invalid cbor decode options: %v", err))
	}

	return &CBOR{decMode: decMode}
}

func (codec *CBOR) Encode(value any) ([]byte, error) {
	data, err := cbor.Marshal(value)

	if err != nil {
		return nil, fmt.Errorf("cbor encode %T: %w", value, err)
	}

	return data, nil
}

func (codec *CBOR) Decode(data []byte) (any, error) {
	var value any

	if err := codec.decMode.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("cbor decode: %w", err)
	}

	return value, nil
}
