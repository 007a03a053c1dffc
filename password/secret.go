package password

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
)

// GenerateSecret returns byteLength cryptographically secure random bytes
// hex-encoded. Used for verification tokens, reset secrets, and anywhere an
// unguessable opaque string is needed.
func GenerateSecret(byteLength int) (string, error) {
	if byteLength < 1 || byteLength > 1024 {
		return "", errors.New("secret length must be between 1 and 1024 bytes")
	}

	buf := make([]byte, byteLength)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}
