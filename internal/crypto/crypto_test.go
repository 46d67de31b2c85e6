package crypto

import (
	"errors"
	"strings"
	"testing"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New("test-secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_EmptySecret(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c := newTestCipher(t)
	cases := []string{
		"",
		"52998224725",
		"olá, convidado ❤",
		strings.Repeat("x", 2000),
		"value:with:colons",
	}
	for _, plain := range cases {
		sealed, err := c.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plain, err)
		}
		if got := strings.Count(sealed, ":"); got != 2 {
			t.Fatalf("serialized form has %d delimiters, want 2: %q", got, sealed)
		}
		back, err := c.Decrypt(sealed)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if back != plain {
			t.Fatalf("round trip mismatch: got %q want %q", back, plain)
		}
	}
}

func TestEncrypt_Nondeterministic(t *testing.T) {
	c := newTestCipher(t)
	a, err := c.Encrypt("same input")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := c.Encrypt("same input")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Fatal("two Encrypt calls produced identical ciphertext")
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	c := newTestCipher(t)
	sealed, err := c.Encrypt("sensitive")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	// Flip one hex nibble of the ciphertext segment.
	parts := strings.Split(sealed, ":")
	ct := []byte(parts[1])
	if ct[0] == '0' {
		ct[0] = '1'
	} else {
		ct[0] = '0'
	}
	tampered := parts[0] + ":" + string(ct) + ":" + parts[2]
	if _, err := c.Decrypt(tampered); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestDecrypt_Malformed(t *testing.T) {
	c := newTestCipher(t)
	for _, s := range []string{
		"onlyonepart",
		"two:parts",
		"a:b:c:d",
		"zz:zz:zz",                // invalid hex
		"abcd:deadbeef:00",        // short nonce and tag
	} {
		if _, err := c.Decrypt(s); !errors.Is(err, ErrMalformedCiphertext) {
			t.Fatalf("Decrypt(%q): expected ErrMalformedCiphertext, got %v", s, err)
		}
	}
}

func TestDecryptLoose_LegacyPlaintext(t *testing.T) {
	c := newTestCipher(t)
	got, err := c.DecryptLoose("52998224725")
	if err != nil {
		t.Fatalf("DecryptLoose: %v", err)
	}
	if got != "52998224725" {
		t.Fatalf("legacy plaintext changed: %q", got)
	}
}

func TestDecryptLoose_Encrypted(t *testing.T) {
	c := newTestCipher(t)
	sealed, err := c.Encrypt("secret token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := c.DecryptLoose(sealed)
	if err != nil {
		t.Fatalf("DecryptLoose: %v", err)
	}
	if got != "secret token" {
		t.Fatalf("DecryptLoose = %q", got)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	a := newTestCipher(t)
	b, err := New("another-secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sealed, err := a.Encrypt("cross-key")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := b.Decrypt(sealed); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}
