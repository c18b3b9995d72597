package common

import (
	"encoding/hex"
	"testing"
)

func TestMakeRandHexString(t *testing.T) {
	s, err := MakeRandHexString(16)
	if err != nil {
		t.Fatalf("MakeRandHexString error: %v", err)
	}
	if len(s) != 32 {
		t.Fatalf("want 32 hex chars, got %d", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("not valid hex: %q", s)
	}

	s2, err := MakeRandHexString(16)
	if err != nil {
		t.Fatalf("MakeRandHexString error: %v", err)
	}
	if s == s2 {
		t.Fatalf("two draws must differ")
	}
}

func TestGenerateRandByteArray(t *testing.T) {
	b := GenerateRandByteArray(32)
	if len(b) != 32 {
		t.Fatalf("want 32 bytes, got %d", len(b))
	}
	if string(b) == string(GenerateRandByteArray(32)) {
		t.Fatalf("two draws must differ")
	}
}

func TestWipeByteArray(t *testing.T) {
	b := []byte("password")
	WipeByteArray(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not wiped", i)
		}
	}
	WipeByteArray(nil)
}
