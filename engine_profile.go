package authcore

import (
	"context"
	"errors"

	"github.com/halcyon-sec/authcore/pii"
)

// UpdateProfile encrypts the structured PII value and stores it on the
// user's record. Repositories only ever see the opaque blob.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, profile any) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return storeErr("find user", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	blob, err := e.cipher.EncryptStructured(profile)
	if err != nil {
		return storeErr("encrypt profile", err)
	}
	if err := e.users.UpdateProfile(ctx, userID, blob, e.now()); err != nil {
		return storeErr("update profile", err)
	}

	return nil
}

// Profile decrypts the user's stored PII into out. A missing profile
// decodes as no-op; a blob that fails authentication fails
// [ErrDecryptionFailed] and is audited, since it indicates tampering or a
// key rotation gone wrong.
func (e *Engine) Profile(ctx context.Context, userID string, out any) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return storeErr("find user", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if len(user.Profile) == 0 {
		return nil
	}

	if err := e.cipher.DecryptStructured(user.Profile, out); err != nil {
		if errors.Is(err, pii.ErrDecryptionFailed) {
			e.emitAudit(ctx, auditEventProfileDecryptionFailure, SeverityHigh, false, userID, "", ErrDecryptionFailed, nil)
			return ErrDecryptionFailed
		}
		return storeErr("decrypt profile", err)
	}

	return nil
}
