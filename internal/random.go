// Package internal holds coordination helpers shared by the authcore root
// package. Nothing here is part of the public surface.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// Reset tokens are an opaque concatenation of a 16-byte record ID and a
// 32-byte secret. The ID locates the stored row; only the secret's SHA-256
// hash is persisted, so a leaked table does not yield usable tokens.
const (
	resetIDSize       = 16
	resetSecretSize   = 32
	resetTokenRawSize = resetIDSize + resetSecretSize
)

type ResetID [resetIDSize]byte

func NewResetID() (ResetID, error) {
	var id ResetID
	_, err := rand.Read(id[:])
	return id, err
}

func (r ResetID) String() string {
	return base64.RawURLEncoding.EncodeToString(r[:])
}

func ParseResetID(resetID string) (ResetID, error) {
	var id ResetID

	raw, err := base64.RawURLEncoding.DecodeString(resetID)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid reset id size")
	}

	copy(id[:], raw)
	return id, nil
}

func NewResetSecret() ([resetSecretSize]byte, error) {
	var secret [resetSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashResetSecret(secret [resetSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

func EncodeResetToken(resetID string, secret [resetSecretSize]byte) (string, error) {
	id, err := ParseResetID(resetID)
	if err != nil {
		return "", err
	}

	var raw [resetTokenRawSize]byte
	copy(raw[:len(id)], id[:])
	copy(raw[len(id):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeResetToken(tok string) (string, [resetSecretSize]byte, error) {
	var secret [resetSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != resetTokenRawSize {
		return "", secret, errors.New("invalid reset token size")
	}

	var id ResetID
	copy(id[:], raw[:len(id)])
	copy(secret[:], raw[len(id):])

	return id.String(), secret, nil
}
