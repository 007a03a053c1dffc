package authcore

import (
	"context"
	"strings"
	"time"

	"github.com/halcyon-sec/authcore/token"
)

// Login authenticates an email/password pair and opens a session. The
// brute-force guard is consulted before any credential work; while a
// lockout is active every attempt fails [ErrTooManyAttempts] regardless of
// credential correctness. Unknown users and wrong passwords both fail
// [ErrInvalidCredentials] after equivalent hashing work, so neither the
// error nor its latency reveals whether the account exists.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email = strings.ToLower(strings.TrimSpace(email))

	decision, err := e.guard.CheckAttempt(ctx, email)
	if err != nil {
		return nil, storeErr("guard check", err)
	}
	if !decision.Allowed {
		e.metricInc(MetricLoginLockout)
		e.emitAudit(ctx, auditEventLoginLockout, SeverityWarning, false, "", "", ErrTooManyAttempts, func() map[string]string {
			return map[string]string{
				"identifier":   email,
				"locked_until": decision.LockedUntil.UTC().Format(time.RFC3339),
			}
		})
		return nil, ErrTooManyAttempts
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, storeErr("find user", err)
	}
	if user == nil {
		// Burn the same argon2 work a real verification would.
		_, _ = e.passwords.Verify(plaintext, e.decoyHash)
		return nil, e.failLogin(ctx, email, "", "user_not_found")
	}

	ok, err := e.passwords.Verify(plaintext, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.failLogin(ctx, email, user.ID, "wrong_password")
	}

	if user.Status == StatusDisabled || user.Status == StatusDeleted {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, SeverityWarning, false, user.ID, "", ErrAccountDisabled, func() map[string]string {
			return map[string]string{
				"status": user.Status.String(),
			}
		})
		return nil, ErrAccountDisabled
	}

	if err := e.guard.RecordSuccess(ctx, email); err != nil {
		return nil, storeErr("guard clear", err)
	}

	if rehash, _ := e.passwords.NeedsRehash(user.PasswordHash); rehash {
		e.rehashOnLogin(ctx, user, plaintext)
	}

	access, refresh, err := e.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	sess, evicted, err := e.sessions.Create(ctx, user.ID, token.Hash(access), deviceFromContext(ctx))
	if err != nil {
		return nil, storeErr("create session", err)
	}
	e.metricInc(MetricSessionCreated)

	evictedIDs := make([]string, 0, len(evicted))
	for _, ev := range evicted {
		evictedIDs = append(evictedIDs, ev.ID)
		e.metricInc(MetricSessionEvicted)
		e.emitAudit(ctx, auditEventSessionEvicted, SeverityInfo, true, user.ID, ev.ID, nil, func() map[string]string {
			return map[string]string{
				"replaced_by": sess.ID,
			}
		})
	}

	now := e.now()
	if err := e.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, storeErr("update last login", err)
	}
	user.LastLoginAt = now

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, SeverityInfo, true, user.ID, sess.ID, nil, nil)

	return &LoginResult{
		User:              user.Projection(),
		AccessToken:       access,
		RefreshToken:      refresh,
		SessionID:         sess.ID,
		EvictedSessionIDs: evictedIDs,
	}, nil
}

// failLogin records the failure with the guard and returns the uniform
// credential error. A failure that trips the lockout threshold is audited
// at higher severity.
func (e *Engine) failLogin(ctx context.Context, email, userID, reason string) error {
	locked, err := e.guard.RecordFailure(ctx, email)
	if err != nil {
		return storeErr("guard record", err)
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, SeverityInfo, false, userID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"identifier": email,
			"reason":     reason,
		}
	})
	if locked {
		e.metricInc(MetricLoginLockout)
		e.emitAudit(ctx, auditEventLoginLockout, SeverityHigh, false, userID, "", ErrTooManyAttempts, func() map[string]string {
			return map[string]string{
				"identifier": email,
			}
		})
	}

	return ErrInvalidCredentials
}

// rehashOnLogin upgrades a hash stored under older argon2 parameters. Best
// effort: a failure here must not fail the login.
func (e *Engine) rehashOnLogin(ctx context.Context, user *User, plaintext string) {
	hash, err := e.passwords.Hash(plaintext)
	if err != nil {
		return
	}
	if err := e.users.UpdatePassword(ctx, user.ID, hash, e.now()); err != nil {
		return
	}
	user.PasswordHash = hash
}
