package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestArgon2id(t *testing.T) {
	params := Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1, KeyLen: 32}
	passphrase := "correct horse battery staple"
	salt := []byte("random salt")

	key, err := DeriveArgon2idKey(passphrase, salt, params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}

	if len(key) != 32 {
		t.Errorf("expected key length 32, got %d", len(key))
	}

	match, err := CompareArgon2idKey(passphrase, salt, params, key)
	if err != nil {
		t.Fatalf("CompareArgon2idKey failed: %v", err)
	}
	if !match {
		t.Error("expected CompareArgon2idKey to return true")
	}

	match, _ = CompareArgon2idKey("wrong passphrase", salt, params, key)
	if match {
		t.Error("expected CompareArgon2idKey to return false for wrong passphrase")
	}
}

func TestValidateArgon2idParams(t *testing.T) {
	if err := ValidateArgon2idParams(DefaultArgon2idParams()); err != nil {
		t.Fatalf("default params rejected: %v", err)
	}
	bad := []Argon2idParams{
		{Time: 0, MemoryKiB: 1024, Parallelism: 1, KeyLen: 32},
		{Time: 1, MemoryKiB: 0, Parallelism: 1, KeyLen: 32},
		{Time: 1, MemoryKiB: 4 * 1024 * 1024, Parallelism: 1, KeyLen: 32},
		{Time: 1, MemoryKiB: 1024, Parallelism: 0, KeyLen: 32},
		{Time: 1, MemoryKiB: 1024, Parallelism: 1, KeyLen: 16},
	}
	for i, p := range bad {
		if err := ValidateArgon2idParams(p); err == nil {
			t.Errorf("case %d: expected error for %+v", i, p)
		}
	}
}

func TestNormalizeSecret(t *testing.T) {
	composed := NormalizeSecret("caf\u00e9")
	decomposed := NormalizeSecret("cafe\u0301")
	if composed != decomposed {
		t.Errorf("NFKC forms differ: %q vs %q", composed, decomposed)
	}
	if got := NormalizeSecret("\uff21"); got != "A" { // fullwidth A
		t.Errorf("expected compatibility mapping to A, got %q", got)
	}
}

func TestWipeBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	WipeBytes(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Errorf("expected zeroed slice, got %v", b)
	}
}

func TestRandom(t *testing.T) {
	t.Run("RandomBytes", func(t *testing.T) {
		b1, err := RandomBytes(32)
		if err != nil {
			t.Fatalf("RandomBytes failed: %v", err)
		}
		b2, err := RandomBytes(32)
		if err != nil {
			t.Fatalf("RandomBytes failed: %v", err)
		}
		if len(b1) != 32 {
			t.Errorf("expected 32 bytes, got %d", len(b1))
		}
		if bytes.Equal(b1, b2) {
			t.Error("RandomBytes should produce different outputs")
		}
	})

	t.Run("RandomChars", func(t *testing.T) {
		s1, err := RandomChars(10)
		if err != nil {
			t.Fatalf("RandomChars failed: %v", err)
		}
		s2, err := RandomChars(10)
		if err != nil {
			t.Fatalf("RandomChars failed: %v", err)
		}
		if len(s1) != 10 {
			t.Errorf("expected length 10, got %d", len(s1))
		}
		if s1 == s2 {
			t.Error("RandomChars should produce different outputs")
		}
		for _, r := range s1 {
			if !strings.ContainsRune(string(allowedRandomChars), r) {
				t.Errorf("unexpected rune %q", r)
			}
		}
	})

	t.Run("RandomIntn", func(t *testing.T) {
		max := 100
		for i := 0; i < 100; i++ {
			n, err := RandomIntn(max)
			if err != nil {
				t.Fatalf("RandomIntn failed: %v", err)
			}
			if n < 0 || n >= max {
				t.Errorf("RandomIntn(%d) returned %d out of range", max, n)
			}
		}
	})
}

func TestGenerateSelfSignedCert(t *testing.T) {
	cert, err := GenerateSelfSignedCert()
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert failed: %v", err)
	}
	if cert.Leaf == nil {
		t.Fatal("expected parsed leaf")
	}
	if err := cert.Leaf.VerifyHostname("localhost"); err != nil {
		t.Errorf("expected certificate valid for localhost: %v", err)
	}
	if err := cert.Leaf.VerifyHostname("127.0.0.1"); err != nil {
		t.Errorf("expected certificate valid for 127.0.0.1: %v", err)
	}
	if !cert.Leaf.NotAfter.After(cert.Leaf.NotBefore) {
		t.Error("expected NotAfter after NotBefore")
	}
}
