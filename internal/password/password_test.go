package password

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	svc := NewService([]byte("pepper"))
	phc, err := svc.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !svc.Verify("correct horse battery", phc) {
		t.Fatal("Verify rejected the right password")
	}
	if svc.Verify("wrong horse battery", phc) {
		t.Fatal("Verify accepted the wrong password")
	}
}

func TestVerifyRequiresSamePepper(t *testing.T) {
	phc, err := NewService([]byte("pepper-a")).Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if NewService([]byte("pepper-b")).Verify("correct horse battery", phc) {
		t.Fatal("Verify accepted a hash made under a different pepper")
	}
}

func TestHashesAreSalted(t *testing.T) {
	svc := NewService([]byte("pepper"))
	a, err := svc.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := svc.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestValidateBounds(t *testing.T) {
	svc := NewService([]byte("pepper"))
	if err := svc.Validate("short"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("short password: got %v, want ErrTooShort", err)
	}
	if err := svc.Validate(strings.Repeat("x", 65)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("long password: got %v, want ErrTooLong", err)
	}
	if err := svc.Validate("long enough"); err != nil {
		t.Fatalf("valid password: %v", err)
	}
}
