package authcore

import (
	"context"

	"github.com/halcyon-sec/authcore/session"
)

// ChangePassword rotates a user's password. Confirmation mismatch and
// policy violations fail before any store access; a wrong current password
// fails [ErrInvalidCredentials]. Success revokes every refresh grant and
// ends every session for the user, forcing re-authentication everywhere.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next, confirm string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	if next != confirm {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, SeverityInfo, false, userID, "", ErrPasswordMismatch, nil)
		return ErrPasswordMismatch
	}
	if err := e.validatePassword(next); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, SeverityInfo, false, userID, "", err, nil)
		return err
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return storeErr("find user", err)
	}
	if user == nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, SeverityWarning, false, userID, "", ErrUserNotFound, nil)
		return ErrUserNotFound
	}

	ok, err := e.passwords.Verify(current, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidCurrent)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, SeverityWarning, false, userID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "invalid_current",
			}
		})
		return ErrInvalidCredentials
	}

	// History is limited to the current hash; a real N-password history
	// table is out of scope here.
	reused, err := e.passwords.Verify(next, user.PasswordHash)
	if err == nil && reused {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, SeverityInfo, false, userID, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	hash, err := e.passwords.Hash(next)
	if err != nil {
		return storeErr("hash password", err)
	}
	if err := e.users.UpdatePassword(ctx, userID, hash, e.now()); err != nil {
		return storeErr("update password", err)
	}

	if err := e.revokeEverything(ctx, userID, session.ReasonPasswordChange); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, SeverityInfo, true, userID, "", nil, nil)

	return nil
}

// revokeEverything is the shared cascade: all refresh grants revoked, all
// sessions ended.
func (e *Engine) revokeEverything(ctx context.Context, userID, reason string) error {
	if _, err := e.refresh.RevokeAllForUser(ctx, userID, e.now()); err != nil {
		return storeErr("revoke refresh tokens", err)
	}
	if _, err := e.sessions.EndAllForUser(ctx, userID, reason); err != nil {
		return storeErr("end sessions", err)
	}
	return nil
}
