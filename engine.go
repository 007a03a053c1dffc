package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/halcyon-sec/authcore/guard"
	"github.com/halcyon-sec/authcore/password"
	"github.com/halcyon-sec/authcore/pii"
	"github.com/halcyon-sec/authcore/session"
	"github.com/halcyon-sec/authcore/token"
)

// Engine composes the credential, token, session, guard, and encryption
// components into the authentication operations. Construct one through
// [Builder]; the Engine is immutable and safe for concurrent use after
// Build returns.
type Engine struct {
	config    Config
	clock     func() time.Time
	users     UserRepository
	refresh   RefreshTokenRepository
	resets    ResetTokenRepository
	sessions  *session.Store
	guard     *guard.Guard
	passwords *password.Hasher
	tokens    *token.Manager
	cipher    *pii.Cipher
	decoyHash string
	audit     *auditDispatcher
	metrics   *Metrics
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events shed under dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the internal counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

func (e *Engine) ready() bool {
	return e != nil && e.users != nil && e.refresh != nil && e.resets != nil &&
		e.sessions != nil && e.guard != nil && e.passwords != nil &&
		e.tokens != nil && e.cipher != nil
}

// storeErr wraps an internal store failure. The detail rides along for
// server-side logging but callers only ever match ErrBackendUnavailable.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, op, err)
}

func deviceFromContext(ctx context.Context) session.DeviceInfo {
	return session.DeviceInfo{
		IP:         clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		DeviceType: deviceTypeFromContext(ctx),
	}
}

// issueTokens signs an access/refresh pair and persists the refresh grant's
// hash. Used by Register and Login.
func (e *Engine) issueTokens(ctx context.Context, user *User) (access, refresh string, err error) {
	access, err = e.tokens.IssueAccess(user.ID, user.Email, string(user.Role))
	if err != nil {
		return "", "", storeErr("sign access token", err)
	}

	refresh, err = e.tokens.IssueRefresh(user.ID)
	if err != nil {
		return "", "", storeErr("sign refresh token", err)
	}

	claims, err := e.tokens.ParseRefresh(refresh)
	if err != nil {
		return "", "", storeErr("parse issued refresh token", err)
	}

	now := e.now()
	rec := &RefreshTokenRecord{
		ID:        claims.ID,
		UserID:    user.ID,
		TokenHash: token.Hash(refresh),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		IssuedAt:  now,
		ExpiresAt: now.Add(e.config.Token.RefreshTTL),
	}
	if err := e.refresh.Insert(ctx, rec); err != nil {
		return "", "", storeErr("persist refresh token", err)
	}

	return access, refresh, nil
}
