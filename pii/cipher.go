// Package pii provides authenticated symmetric encryption for sensitive
// fields persisted outside the credential path, such as collected IP
// addresses or context records.
//
// The blob layout is nonce || ciphertext || tag (AES-256-GCM), so decryption
// is self-contained given the same key. Decryption fails closed: a tampered
// or truncated blob yields [ErrDecryptionFailed], never partial plaintext.
package pii

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"
)

// ErrDecryptionFailed is returned for any undecryptable blob: wrong key,
// tampered ciphertext, or malformed input. The cause is deliberately not
// distinguished.
var ErrDecryptionFailed = errors.New("decryption failed")

// Cipher seals and opens PII blobs with a fixed 256-bit key. Immutable
// after construction and safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a 32-byte AES-256 key from the configured secret via
// SHA-256 and returns a ready Cipher. The secret must be non-empty.
func NewCipher(secret []byte) (*Cipher, error) {
	if len(secret) == 0 {
		return nil, errors.New("pii secret must not be empty")
	}

	key := sha256.Sum256(secret)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns the
// self-contained blob.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. Tag mismatches and malformed
// blobs both return [ErrDecryptionFailed].
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(blob) < nonceSize {
		return nil, ErrDecryptionFailed
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptStructured JSON-serializes value and seals the result. Used for
// structured PII such as collected context records.
func (c *Cipher) EncryptStructured(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return c.Encrypt(data)
}

// DecryptStructured opens a blob produced by EncryptStructured and
// deserializes it into out.
func (c *Cipher) DecryptStructured(blob []byte, out any) error {
	data, err := c.Decrypt(blob)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return ErrDecryptionFailed
	}
	return nil
}
