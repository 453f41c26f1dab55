package codec

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unsupported struct {
	Ch chan int
}

func TestByName(t *testing.T) {
	for _, name := range []string{"gob", "json", "cbor"} {
		codec, err := ByName(name)
		require.NoError(t, err)
		assert.NotNil(t, codec)
	}

	_, err := ByName("xml")
	assert.Error(t, err)
	assert.Equal(t, []string{"cbor", "gob", "json"}, Names())
}

func TestGobRoundTrip(t *testing.T) {
	RegisterGob(map[string]string{})
	codec := NewGob()

	Convey("Given values of several concrete types", t, func() {
		values := []any{
			"attrValue",
			42,
			int64(-7),
			3.5,
			true,
			[]byte{0x01, 0x02},
			[]string{"a", "b"},
			map[string]string{"testKey": "testValue"},
		}

		Convey("They should decode to the same type and value", func() {
			for _, value := range values {
				data, err := codec.Encode(value)
				So(err, ShouldBeNil)

				decoded, err := codec.Decode(data)
				So(err, ShouldBeNil)
				So(decoded, ShouldResemble, value)
			}
		})
	})

	Convey("Given an unregistered type", t, func() {
		_, err := codec.Encode(unsupported{Ch: make(chan int)})

		Convey("Encoding should fail loudly", func() {
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given garbage bytes", t, func() {
		_, err := codec.Decode([]byte("not gob"))

		Convey("Decoding should fail loudly", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestJSONRoundTrip(t *testing.T) {
	codec := NewJSON()

	data, err := codec.Encode(map[string]any{"name": "v1", "count": 3})
	require.NoError(t, err)

	decoded, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "v1", "count": float64(3)}, decoded)

	_, err = codec.Encode(make(chan int))
	assert.Error(t, err)

	_, err = codec.Decode([]byte("{"))
	assert.Error(t, err)
}

func TestCBORRoundTrip(t *testing.T) {
	codec := NewCBOR()

	for _, tc := range []struct {
		in   any
		want any
	}{
		{"v1", "v1"},
		{42, int64(42)},
		{-42, int64(-42)},
		{map[string]any{"a": "b"}, map[string]any{"a": "b"}},
	} {
		data, err := codec.Encode(tc.in)
		require.NoError(t, err)

		decoded, err := codec.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, tc.want, decoded)
	}

	_, err := codec.Encode(make(chan int))
	assert.Error(t, err)

	_, err = codec.Decode([]byte{0xff, 0xff})
	assert.Error(t, err)
}
