package authcore

import (
	"context"
	"errors"
	"strconv"

	"github.com/halcyon-sec/authcore/session"
	"github.com/halcyon-sec/authcore/token"
)

// Validate verifies an access token and refreshes its session's activity
// timestamp. Signature, expiry, and malformed-token failures all collapse
// to [ErrTokenInvalid]. A token that verifies but whose session has been
// ended fails [ErrSessionNotFound] — an ended session is no longer
// touchable, whatever tokens still exist for it.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := e.now()

	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		e.emitAudit(ctx, auditEventValidateFailure, SeverityInfo, false, "", "", ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	hash := token.Hash(accessToken)
	if err := e.sessions.Touch(ctx, hash); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.metricInc(MetricValidateFailure)
			e.emitAudit(ctx, auditEventValidateFailure, SeverityInfo, false, claims.Subject, "", ErrSessionNotFound, nil)
			return nil, ErrSessionNotFound
		}
		return nil, storeErr("touch session", err)
	}

	e.metricInc(MetricValidateSuccess)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, e.now().Sub(start))
	}

	return &AuthResult{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   Role(claims.Role),
	}, nil
}

// SweepIdleSessions ends every session idle past the configured timeout.
// The caller owns the schedule; this is a single batch pass returning the
// number of sessions swept.
func (e *Engine) SweepIdleSessions(ctx context.Context) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}

	swept, err := e.sessions.SweepIdle(ctx, e.config.Session.IdleTimeout)
	if err != nil {
		return swept, storeErr("sweep sessions", err)
	}
	if swept > 0 {
		for i := 0; i < swept; i++ {
			e.metricInc(MetricSessionSwept)
		}
		e.emitAudit(ctx, auditEventSessionSwept, SeverityInfo, true, "", "", nil, func() map[string]string {
			return map[string]string{
				"count": strconv.Itoa(swept),
			}
		})
	}

	return swept, nil
}

// ActiveSessions lists the user's active sessions.
func (e *Engine) ActiveSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	sessions, err := e.sessions.ActiveSessions(ctx, userID)
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	return sessions, nil
}

// RecordSuspiciousActivity counts an anomalous event against the
// identifier, independent of the login failure counter. It reports whether
// the escalation threshold was crossed, in which case a high-severity
// event is emitted for external monitoring.
func (e *Engine) RecordSuspiciousActivity(ctx context.Context, identifier, description string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}

	escalate, err := e.guard.RecordSuspicious(ctx, identifier)
	if err != nil {
		return false, storeErr("record suspicious activity", err)
	}

	e.metricInc(MetricSuspiciousRecorded)
	e.emitAudit(ctx, auditEventSuspiciousActivity, SeverityWarning, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"identifier":  identifier,
			"description": description,
		}
	})
	if escalate {
		e.metricInc(MetricSuspiciousEscalation)
		e.emitAudit(ctx, auditEventSuspiciousEscalation, SeverityHigh, true, "", "", nil, func() map[string]string {
			return map[string]string{
				"identifier":  identifier,
				"description": description,
			}
		})
	}

	return escalate, nil
}
