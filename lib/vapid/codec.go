package vapid

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedKey indicates key material that does not decode to a valid
// uncompressed P-256 point.
var ErrMalformedKey = errors.New("vapid: malformed public key")

// EncodeBase64URL encodes to the base64url alphabet without padding, the
// encoding used for every JWT segment and key coordinate.
func EncodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64URL decodes base64url input with or without padding. Some
// browsers pad the values they hand out, so padding is stripped first.
func DecodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// ExtractPublicKeyCoordinates splits a base64url-encoded uncompressed
// P-256 point (0x04 marker + 32-byte X + 32-byte Y) into its coordinates,
// each re-encoded as base64url.
func ExtractPublicKeyCoordinates(publicKey string) (x, y string, err error) {
	raw, err := DecodeBase64URL(publicKey)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if len(raw) < 65 {
		return "", "", fmt.Errorf("%w: got %d bytes, want 65", ErrMalformedKey, len(raw))
	}
	if raw[0] != 0x04 {
		return "", "", fmt.Errorf("%w: not an uncompressed point (marker 0x%02x)", ErrMalformedKey, raw[0])
	}
	return EncodeBase64URL(raw[1:33]), EncodeBase64URL(raw[33:65]), nil
}
