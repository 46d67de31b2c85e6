// Package crypto provides authenticated field-level encryption for sensitive
// values stored at rest (contributor tax ids, gateway credentials). It uses
// AES-256-GCM with a fresh random nonce per call and serializes the result
// as a colon-delimited hex string: nonce:ciphertext:tag.
//
// Legacy values written before encryption was introduced contain no
// delimiter; DecryptLoose tolerates them by returning the stored string
// unchanged. Decryption failures are always surfaced as typed errors,
// never as silently wrong plaintext.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Serialized-form errors. Callers reading possibly-legacy fields should
// check for these and fall back to treating the value as plaintext.
var (
	// ErrMalformedCiphertext indicates the serialized value does not have
	// the expected nonce:ciphertext:tag shape or contains invalid hex.
	ErrMalformedCiphertext = errors.New("crypto: malformed ciphertext")

	// ErrDecryptFailed indicates the authentication tag did not verify,
	// i.e. the value was tampered with or encrypted under another key.
	ErrDecryptFailed = errors.New("crypto: decryption failed")
)

// gcmTagSize is the length in bytes of the GCM authentication tag.
const gcmTagSize = 16

// Cipher encrypts and decrypts strings under a process-wide secret key.
// Construct it once at startup and inject it where needed; it is safe for
// concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New derives a 256-bit key from secret (SHA-256) and returns a ready
// Cipher. Any non-empty secret is accepted; key strength is the caller's
// responsibility (config enforces a real secret outside development).
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("crypto: empty secret")
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: init gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under the cipher key with a fresh random nonce
// and returns the serialized nonce:ciphertext:tag form. Two calls on the
// same plaintext never produce the same output.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	// Seal appends the tag; split it out so the stored form is explicit.
	ct, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(ct) + ":" + hex.EncodeToString(tag), nil
}

// Decrypt parses the serialized form and returns the plaintext. It returns
// ErrMalformedCiphertext when the value does not parse, and ErrDecryptFailed
// when the authentication tag does not verify.
func (c *Cipher) Decrypt(serialized string) (string, error) {
	parts := strings.Split(serialized, ":")
	if len(parts) != 3 {
		return "", ErrMalformedCiphertext
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", ErrMalformedCiphertext
	}
	ct, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil || len(tag) != gcmTagSize {
		return "", ErrMalformedCiphertext
	}
	plain, err := c.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}

// DecryptLoose decrypts stored, possibly-legacy values. Values without a
// delimiter predate encryption-at-rest and are returned unchanged; values
// that look encrypted but fail to decrypt surface the underlying error.
func (c *Cipher) DecryptLoose(stored string) (string, error) {
	if !strings.Contains(stored, ":") {
		return stored, nil
	}
	return c.Decrypt(stored)
}
