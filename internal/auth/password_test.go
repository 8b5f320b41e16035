package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashVerify(t *testing.T) {
	h, err := HashPassword("secret-123")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if !VerifyPassword(h, "secret-123") {
		t.Fatalf("expected verify to pass")
	}
	if VerifyPassword(h, "wrong") {
		t.Fatalf("expected verify to fail")
	}
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	b, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if !IsLegacyHash(string(b)) {
		t.Fatalf("expected bcrypt hash to be detected as legacy")
	}
	if !VerifyPassword(string(b), "admin123") {
		t.Fatalf("expected legacy verify to pass")
	}
	if VerifyPassword(string(b), "admin124") {
		t.Fatalf("expected legacy verify to fail")
	}
}

func TestVerifyGarbage(t *testing.T) {
	if VerifyPassword("not-a-hash", "x") {
		t.Fatalf("expected garbage hash to fail")
	}
}
