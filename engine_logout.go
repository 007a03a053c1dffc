package authcore

import (
	"context"

	"github.com/halcyon-sec/authcore/session"
	"github.com/halcyon-sec/authcore/token"
)

// Logout ends the session bound to the access token. It is best-effort: an
// invalid token or an already-ended session still reports success, since a
// failed logout is a UX problem, not a safety problem. Only backend
// unavailability is surfaced.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutSession, SeverityInfo, true, "", "", nil, func() map[string]string {
			return map[string]string{
				"note": "token_already_invalid",
			}
		})
		return nil
	}

	if err := e.sessions.End(ctx, token.Hash(accessToken), session.ReasonLogout); err != nil {
		return storeErr("end session", err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, SeverityInfo, true, claims.Subject, "", nil, nil)

	return nil
}

// LogoutAll ends every session and revokes every refresh grant for the
// user.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	if err := e.revokeEverything(ctx, userID, session.ReasonLogout); err != nil {
		return err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, SeverityInfo, true, userID, "", nil, nil)

	return nil
}
