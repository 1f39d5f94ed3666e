package vapid

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase64URLRoundtrip(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("hello"),
		[]byte("a"),
		[]byte("ab"),
		[]byte("abc"),
		{0xfb, 0xff, 0xfe}, // standard base64 would emit '+' and '/'
		{0x00, 0x01, 0x02, 0x03, 0xff},
		bytes.Repeat([]byte{0xff}, 65),
	}
	for _, in := range cases {
		enc := EncodeBase64URL(in)
		assert.NotContains(t, enc, "+")
		assert.NotContains(t, enc, "/")
		assert.NotContains(t, enc, "=")

		out, err := DecodeBase64URL(enc)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestDecodeBase64URLAcceptsPadding(t *testing.T) {
	// Chrome < 52 pads the values it hands out.
	out, err := DecodeBase64URL("AA==")
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, out)

	out, err = DecodeBase64URL("AA")
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, out)
}

func TestExtractPublicKeyCoordinates(t *testing.T) {
	xWant := bytes.Repeat([]byte{0xab}, 32)
	yWant := bytes.Repeat([]byte{0xcd}, 32)
	point := append([]byte{0x04}, append(xWant, yWant...)...)

	x, y, err := ExtractPublicKeyCoordinates(EncodeBase64URL(point))
	require.NoError(t, err)

	xGot, err := DecodeBase64URL(x)
	require.NoError(t, err)
	yGot, err := DecodeBase64URL(y)
	require.NoError(t, err)

	assert.Equal(t, xWant, xGot)
	assert.Equal(t, yWant, yGot)
}

func TestExtractPublicKeyCoordinatesMalformed(t *testing.T) {
	tests := map[string]string{
		"not base64":      "!!!!",
		"too short":       EncodeBase64URL(bytes.Repeat([]byte{0x04}, 64)),
		"compressed form": EncodeBase64URL(append([]byte{0x02}, bytes.Repeat([]byte{0}, 64)...)),
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ExtractPublicKeyCoordinates(in)
			assert.ErrorIs(t, err, ErrMalformedKey)
		})
	}
}
