// Package auth issues and verifies Concord's bearer credentials.
//
// A session is a random 63-bit token stored in the access_tokens table. The
// credential handed to clients is that token wrapped in a signed JWT: the
// signature stops clients from guessing or tampering with token values, and
// nothing more. The envelope deliberately carries no expiry and no standard
// claims; whether the token row still exists in the store is the one and
// only source of validity, so revocation is a row delete.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrBadEnvelope reports a credential that failed structural decoding
	// or signature verification. Distinct from ErrInvalidToken so callers
	// can word tampering and revocation differently.
	ErrBadEnvelope = errors.New("malformed or badly signed token envelope")

	// ErrInvalidToken reports a well-formed, well-signed envelope whose
	// token no longer exists in the store: revoked or never issued.
	ErrInvalidToken = errors.New("access token revoked or never issued")
)

type envelope struct {
	Tkn int64 `json:"tkn"`
	jwt.RegisteredClaims
}

// sealToken wraps a raw access token in a signed envelope.
func sealToken(secret []byte, token int64) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, envelope{Tkn: token}).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token envelope: %w", err)
	}
	return signed, nil
}

// envelopeParser skips all claim validation: no expiry, no required claims.
// The signature is the envelope's entire job. Strict base64 decoding keeps
// the serialized form canonical, so any byte flip invalidates a credential.
var envelopeParser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	jwt.WithoutClaimsValidation(),
	jwt.WithStrictDecoding(),
)

// openEnvelope verifies the signature and returns the raw access token.
func openEnvelope(secret []byte, credential string) (int64, error) {
	var claims envelope
	parsed, err := envelopeParser.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrBadEnvelope
	}
	return claims.Tkn, nil
}
