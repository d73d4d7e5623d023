package auth

import (
	"errors"
	"testing"
)

func TestSealAndOpenEnvelope(t *testing.T) {
	secret := []byte("secret")
	sealed, err := sealToken(secret, 1234567890123456789)
	if err != nil {
		t.Fatalf("sealToken: %v", err)
	}
	token, err := openEnvelope(secret, sealed)
	if err != nil {
		t.Fatalf("openEnvelope: %v", err)
	}
	if token != 1234567890123456789 {
		t.Fatalf("token = %d, want 1234567890123456789", token)
	}
}

func TestOpenEnvelopeRejectsWrongSecret(t *testing.T) {
	sealed, err := sealToken([]byte("secret"), 42)
	if err != nil {
		t.Fatalf("sealToken: %v", err)
	}
	if _, err := openEnvelope([]byte("other"), sealed); !errors.Is(err, ErrBadEnvelope) {
		t.Fatalf("got %v, want ErrBadEnvelope", err)
	}
}

func TestOpenEnvelopeRejectsTampering(t *testing.T) {
	secret := []byte("secret")
	sealed, err := sealToken(secret, 42)
	if err != nil {
		t.Fatalf("sealToken: %v", err)
	}

	// Flip one byte at every offset; none may verify.
	for i := 0; i < len(sealed); i++ {
		corrupted := []byte(sealed)
		corrupted[i] ^= 0x01
		if string(corrupted) == sealed {
			continue
		}
		if _, err := openEnvelope(secret, string(corrupted)); !errors.Is(err, ErrBadEnvelope) {
			t.Fatalf("byte %d flipped: got %v, want ErrBadEnvelope", i, err)
		}
	}
}

func TestOpenEnvelopeRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "not-a-jwt", "a.b", "a.b.c.d"} {
		if _, err := openEnvelope([]byte("secret"), input); !errors.Is(err, ErrBadEnvelope) {
			t.Fatalf("openEnvelope(%q): got %v, want ErrBadEnvelope", input, err)
		}
	}
}

func TestOpenEnvelopeRejectsUnsignedAlgorithm(t *testing.T) {
	// alg "none" tokens must never pass, signature or not.
	unsigned := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJ0a24iOjQyfQ."
	if _, err := openEnvelope([]byte("secret"), unsigned); !errors.Is(err, ErrBadEnvelope) {
		t.Fatalf("got %v, want ErrBadEnvelope", err)
	}
}
