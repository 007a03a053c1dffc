package authcore

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/halcyon-sec/authcore/internal"
	"github.com/halcyon-sec/authcore/session"
)

// RequestPasswordReset issues a single-use recovery token for the account.
// The raw token is returned exactly once for the caller to deliver
// out-of-band; only the secret's hash is persisted. Issuing a new token
// supersedes any earlier unconsumed one, so at most the latest token can
// reset the password. The call is shaped
// identically whether or not the email exists: an unknown address yields a
// decoy token after a padding delay, so neither the response nor its
// timing reveals account existence.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", newValidationError("email", "required")
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		return "", storeErr("find user", err)
	}

	if user == nil {
		if err := e.sleepEnumerationDelay(ctx); err != nil {
			return "", err
		}
		decoy, err := newResetToken()
		if err != nil {
			return "", storeErr("generate reset token", err)
		}
		e.metricInc(MetricPasswordResetRequest)
		e.emitAudit(ctx, auditEventPasswordResetRequest, SeverityInfo, true, "", "", nil, func() map[string]string {
			return map[string]string{
				"identifier":       email,
				"enumeration_safe": "true",
			}
		})
		return decoy.raw, nil
	}

	tok, err := newResetToken()
	if err != nil {
		return "", storeErr("generate reset token", err)
	}

	now := e.now()
	// Only the newest token is live; older unconsumed ones stop working now.
	if _, err := e.resets.InvalidateActiveForUser(ctx, user.ID, now); err != nil {
		return "", storeErr("supersede reset tokens", err)
	}
	rec := &ResetTokenRecord{
		ID:         tok.id,
		UserID:     user.ID,
		SecretHash: tok.secretHash,
		CreatedAt:  now,
		ExpiresAt:  now.Add(e.config.Reset.TokenTTL),
	}
	if err := e.resets.Insert(ctx, rec); err != nil {
		return "", storeErr("persist reset token", err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, SeverityInfo, true, user.ID, "", nil, nil)

	return tok.raw, nil
}

// ConfirmPasswordReset consumes a recovery token and sets a new password.
// The token is single-use: the consuming update is conditional, so two
// concurrent confirmations cannot both succeed. Success cascades the same
// full revocation as a password change.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	if err := e.validatePassword(newPassword); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, SeverityInfo, false, "", "", err, nil)
		return err
	}

	resetID, secret, err := internal.DecodeResetToken(rawToken)
	if err != nil {
		return e.failResetConfirm(ctx, "", ErrResetInvalid, "malformed_token")
	}

	rec, err := e.resets.FindByID(ctx, resetID)
	if err != nil {
		return storeErr("find reset token", err)
	}
	if rec == nil {
		return e.failResetConfirm(ctx, "", ErrResetInvalid, "unknown_token")
	}

	presented := internal.HashResetSecret(secret)
	if subtle.ConstantTimeCompare(presented[:], rec.SecretHash[:]) != 1 {
		return e.failResetConfirm(ctx, rec.UserID, ErrResetInvalid, "secret_mismatch")
	}

	if !e.now().Before(rec.ExpiresAt) {
		return e.failResetConfirm(ctx, rec.UserID, ErrResetInvalid, "expired")
	}

	if !rec.SupersededAt.IsZero() {
		return e.failResetConfirm(ctx, rec.UserID, ErrResetInvalid, "superseded")
	}

	if !rec.UsedAt.IsZero() {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetReplay, SeverityHigh, false, rec.UserID, "", ErrResetInvalid, nil)
		return ErrResetInvalid
	}

	consumed, err := e.resets.MarkUsed(ctx, rec.ID, e.now())
	if err != nil {
		return storeErr("consume reset token", err)
	}
	if !consumed {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetReplay, SeverityHigh, false, rec.UserID, "", ErrResetInvalid, nil)
		return ErrResetInvalid
	}

	hash, err := e.passwords.Hash(newPassword)
	if err != nil {
		return storeErr("hash password", err)
	}
	if err := e.users.UpdatePassword(ctx, rec.UserID, hash, e.now()); err != nil {
		return storeErr("update password", err)
	}

	if err := e.revokeEverything(ctx, rec.UserID, session.ReasonPasswordChange); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, SeverityInfo, true, rec.UserID, "", nil, nil)

	return nil
}

func (e *Engine) failResetConfirm(ctx context.Context, userID string, err error, reason string) error {
	e.metricInc(MetricPasswordResetConfirmFailure)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, SeverityWarning, false, userID, "", err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return err
}

func (e *Engine) sleepEnumerationDelay(ctx context.Context) error {
	delay := e.config.Reset.EnumerationDelay
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type resetToken struct {
	id         string
	raw        string
	secretHash [32]byte
}

func newResetToken() (*resetToken, error) {
	id, err := internal.NewResetID()
	if err != nil {
		return nil, err
	}
	secret, err := internal.NewResetSecret()
	if err != nil {
		return nil, err
	}
	raw, err := internal.EncodeResetToken(id.String(), secret)
	if err != nil {
		return nil, err
	}
	return &resetToken{
		id:         id.String(),
		raw:        raw,
		secretHash: internal.HashResetSecret(secret),
	}, nil
}
