package vapid

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// TokenTTL is how long a signed token stays valid. Push services cap
// acceptance at 24h; 12h leaves headroom for clock skew on either side.
const TokenTTL = 12 * time.Hour

var ErrSigning = errors.New("vapid: signing failed")

type jwtHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

type jwtClaims struct {
	Aud string `json:"aud"`
	Exp int64  `json:"exp"`
	Sub string `json:"sub"`
}

// Signer produces VAPID authentication tokens (RFC 8292) for a fixed
// application key pair. Construct once at startup and share; Sign is safe
// for concurrent use.
type Signer struct {
	key       *ecdsa.PrivateKey
	publicKey string
	subject   string
}

// NewSigner imports a P-256 key pair from its base64url form: publicKey is
// the 65-byte uncompressed point, privateKey the 32-byte scalar d. The
// public point must match the one derived from d; a mismatched pair would
// sign tokens that verify under the wrong key and get every delivery
// rejected with 401/403, so it is refused here.
func NewSigner(publicKey, privateKey, contact string) (*Signer, error) {
	x64, y64, err := ExtractPublicKeyCoordinates(publicKey)
	if err != nil {
		return nil, err
	}
	xb, err := DecodeBase64URL(x64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	yb, err := DecodeBase64URL(y64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	d, err := DecodeBase64URL(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if len(d) != 32 {
		return nil, fmt.Errorf("%w: private scalar is %d bytes, want 32", ErrMalformedKey, len(d))
	}

	curve := elliptic.P256()
	x := new(big.Int).SetBytes(xb)
	y := new(big.Int).SetBytes(yb)
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("%w: point not on P-256", ErrMalformedKey)
	}

	dx, dy := curve.ScalarBaseMult(d)
	if dx.Cmp(x) != 0 || dy.Cmp(y) != 0 {
		return nil, fmt.Errorf("%w: public key does not match private scalar", ErrMalformedKey)
	}

	key := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         new(big.Int).SetBytes(d),
	}
	return &Signer{key: key, publicKey: publicKey, subject: "mailto:" + contact}, nil
}

// PublicKey returns the base64url application public key, as sent in the
// Crypto-Key header alongside each delivery.
func (s *Signer) PublicKey() string {
	return s.publicKey
}

// Sign builds the compact ES256 JWT for one push-service origin. The
// audience must be scheme+host only; a full endpoint URL here violates the
// VAPID audience rule and push services will reject the token.
func (s *Signer) Sign(audience string) (string, error) {
	header, err := json.Marshal(jwtHeader{Alg: "ES256", Typ: "JWT"})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	claims, err := json.Marshal(jwtClaims{
		Aud: audience,
		Exp: time.Now().Add(TokenTTL).Unix(),
		Sub: s.subject,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}

	signingInput := EncodeBase64URL(header) + "." + EncodeBase64URL(claims)

	digest := sha256.Sum256([]byte(signingInput))
	r, sv, err := ecdsa.Sign(rand.Reader, s.key, digest[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}

	// JWS wants a raw r||s signature with each half left-padded to the
	// 32-byte curve size, not ASN.1.
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	sv.FillBytes(sig[32:])

	return signingInput + "." + EncodeBase64URL(sig), nil
}
