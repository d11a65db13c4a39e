package crypto

import (
	"encoding/hex"
	"strings"
	"testing"
)

// fixedReader hands out a repeating byte pattern so key generation is
// deterministic in tests. The pattern byte must have its low bit clear or
// the masked exponent draw lands above the limit and retries forever.
type fixedReader struct {
	b byte
}

func (r *fixedReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
	}
	return len(p), nil
}

func TestGenerateLoginKeyFormat(t *testing.T) {
	key, err := generateLoginKey("a1b2c3d4", "account", "secret", &fixedReader{b: 0x42})
	if err != nil {
		t.Fatalf("generateLoginKey failed: %v", err)
	}

	parts := strings.Split(key, "-")
	if len(parts) != 2 {
		t.Fatalf("Expected '<public>-<cipher>' form, got %q", key)
	}
	if _, ok := parseHex(parts[0]); !ok {
		t.Errorf("Public half is not hex: %q", parts[0])
	}
	cipher, err := hex.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("Cipher half is not hex: %q", parts[1])
	}

	// Plaintext is 8 prefix bytes, a 4-byte length, the challenge
	// "account|a1b2c3d4|secret" (23 bytes), space padded to a multiple
	// of 8: 40 bytes total.
	if len(cipher) != 40 {
		t.Errorf("Expected 40 cipher bytes, got %d", len(cipher))
	}
}

func TestGenerateLoginKeyDeterministic(t *testing.T) {
	k1, err := generateLoginKey("seed", "user", "pass", &fixedReader{b: 6})
	if err != nil {
		t.Fatal(err)
	}
	k2, err := generateLoginKey("seed", "user", "pass", &fixedReader{b: 6})
	if err != nil {
		t.Fatal(err)
	}
	if k1 != k2 {
		t.Error("Expected identical keys from identical entropy")
	}

	k3, err := generateLoginKey("seed", "user", "pass", &fixedReader{b: 8})
	if err != nil {
		t.Fatal(err)
	}
	if k1 == k3 {
		t.Error("Expected different entropy to produce a different key")
	}
}

func TestEncryptBlockChaining(t *testing.T) {
	key := "000102030405060708090a0b0c0d0e0f"

	// Two identical plaintext blocks must not encrypt to identical
	// ciphertext blocks.
	plain := []byte("ABCDEFGHABCDEFGH")
	out, err := encrypt(key, plain)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if len(out) != len(plain)*2 {
		t.Errorf("Expected %d hex chars, got %d", len(plain)*2, len(out))
	}
	if out[:16] == out[16:] {
		t.Error("Expected chaining to differentiate identical blocks")
	}
}

func TestEncryptErrors(t *testing.T) {
	key := "000102030405060708090a0b0c0d0e0f"

	if _, err := encrypt(key, []byte("short")); err == nil {
		t.Error("Expected error for plaintext not a multiple of 8")
	}
	if _, err := encrypt("zz", []byte("12345678")); err == nil {
		t.Error("Expected error for a bad key")
	}
	if _, err := encrypt("0011", []byte("12345678")); err == nil {
		t.Error("Expected error for a short key")
	}
}

func parseHex(s string) ([]byte, bool) {
	// Odd-length hex from big.Int.Text is fine, pad before decoding.
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	return b, err == nil
}
