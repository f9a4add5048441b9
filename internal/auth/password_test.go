package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptRoundTrip(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Fatalf("hash is not self-describing: %s", hash)
	}
	ok, err := h.Verify("correct horse battery", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("correct horse battery!", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestBcryptSaltsDiffer(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	a, _ := h.Hash("same-password")
	b, _ := h.Hash("same-password")
	if a == b {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func testArgon2() Argon2idHasher {
	return Argon2idHasher{Params: Argon2idParams{MemoryKiB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}}
}

func TestArgon2idRoundTrip(t *testing.T) {
	h := testArgon2()
	hash, err := h.Hash("Secret123!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding: %s", hash)
	}
	if ok, err := h.Verify("Secret123!", hash); err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	if ok, err := h.Verify("Secret123?", hash); err != nil || ok {
		t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestArgon2idRejectsMalformed(t *testing.T) {
	h := testArgon2()
	cases := []string{
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=999999,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5",
	}
	for _, c := range cases {
		if ok, err := h.Verify("x", c); ok || err == nil {
			t.Fatalf("expected rejection for %q, got ok=%v err=%v", c, ok, err)
		}
	}
}

func TestMultiHasherVerifiesBothFormats(t *testing.T) {
	m, err := NewHasher("argon2id", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	m.Argon2id = testArgon2()
	m.Primary = m.Argon2id

	legacy, _ := BcryptHasher{Cost: bcrypt.MinCost}.Hash("old-password")
	if ok, err := m.Verify("old-password", legacy); err != nil || !ok {
		t.Fatalf("bcrypt hash not verified: ok=%v err=%v", ok, err)
	}
	fresh, err := m.Hash("new-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(fresh, "$argon2id$") {
		t.Fatalf("primary not used: %s", fresh)
	}
	if ok, err := m.Verify("new-password", fresh); err != nil || !ok {
		t.Fatalf("argon2id hash not verified: ok=%v err=%v", ok, err)
	}
	if _, err := m.Verify("x", "plaintext"); !errors.Is(err, errUnknownHash) {
		t.Fatalf("expected errUnknownHash, got %v", err)
	}
}

func TestNewHasherValidation(t *testing.T) {
	if _, err := NewHasher("md5", 0); err == nil {
		t.Fatal("expected unsupported algorithm error")
	}
	if _, err := NewHasher("bcrypt", 99); err == nil {
		t.Fatal("expected cost out of range error")
	}
	m, err := NewHasher("", 0)
	if err != nil {
		t.Fatalf("NewHasher default: %v", err)
	}
	if _, ok := m.Primary.(BcryptHasher); !ok {
		t.Fatalf("expected bcrypt primary, got %T", m.Primary)
	}
}

func TestHashRejectsEmpty(t *testing.T) {
	if _, err := (BcryptHasher{}).Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
	if _, err := testArgon2().Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}
