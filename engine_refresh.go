package authcore

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/halcyon-sec/authcore/token"
)

// Refresh exchanges a valid refresh token for a new access token. The
// refresh grant itself is left untouched; use [Engine.RotateRefresh] when
// the caller wants the grant replaced as well. Sessions are not consulted —
// a refresh token outlives any single access token's session binding.
func (e *Engine) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	user, _, err := e.verifyRefresh(ctx, rawRefresh)
	if err != nil {
		return nil, err
	}

	access, err := e.tokens.IssueAccess(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, storeErr("sign access token", err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, SeverityInfo, true, user.ID, "", nil, nil)

	return &TokenPair{AccessToken: access}, nil
}

// RotateRefresh exchanges a valid refresh token for a new access/refresh
// pair, revoking the presented grant. The revoked row records which grant
// replaced it.
func (e *Engine) RotateRefresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	user, rec, err := e.verifyRefresh(ctx, rawRefresh)
	if err != nil {
		return nil, err
	}

	access, refresh, err := e.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	claims, err := e.tokens.ParseRefresh(refresh)
	if err != nil {
		return nil, storeErr("parse issued refresh token", err)
	}
	if err := e.refresh.Revoke(ctx, rec.ID, e.now(), claims.ID); err != nil {
		return nil, storeErr("revoke refresh token", err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, SeverityInfo, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{
			"rotated": "true",
		}
	})

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// verifyRefresh resolves a raw refresh token to its stored grant. The
// signature identifies the claimed user; the presented value is then
// compared against that user's stored hashes, since hashes cannot be
// indexed by plaintext. Presenting a revoked grant is treated as reuse and
// revokes every outstanding grant for the user.
func (e *Engine) verifyRefresh(ctx context.Context, rawRefresh string) (*User, *RefreshTokenRecord, error) {
	claims, err := e.tokens.ParseRefresh(rawRefresh)
	if err != nil {
		mapped := ErrRefreshInvalid
		if errors.Is(err, token.ErrRefreshExpired) {
			mapped = ErrRefreshExpired
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, SeverityWarning, false, "", "", mapped, nil)
		return nil, nil, mapped
	}

	rows, err := e.refresh.FindByUser(ctx, claims.Subject)
	if err != nil {
		return nil, nil, storeErr("load refresh tokens", err)
	}

	presented := token.Hash(rawRefresh)
	var match *RefreshTokenRecord
	for _, row := range rows {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(row.TokenHash)) == 1 {
			match = row
			break
		}
	}

	if match == nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, SeverityWarning, false, claims.Subject, "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": "no_matching_grant",
			}
		})
		return nil, nil, ErrRefreshInvalid
	}

	if match.Revoked() {
		// A signed token matching a revoked row means the raw value is
		// circulating after revocation. Revoke everything for the user.
		if _, revokeErr := e.refresh.RevokeAllForUser(ctx, claims.Subject, e.now()); revokeErr != nil {
			return nil, nil, storeErr("revoke refresh tokens", revokeErr)
		}
		e.metricInc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, SeverityHigh, false, claims.Subject, "", ErrRefreshRevoked, func() map[string]string {
			return map[string]string{
				"grant_id": match.ID,
			}
		})
		return nil, nil, ErrRefreshRevoked
	}

	if !e.now().Before(match.ExpiresAt) {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, SeverityWarning, false, claims.Subject, "", ErrRefreshExpired, nil)
		return nil, nil, ErrRefreshExpired
	}

	user, err := e.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, nil, storeErr("find user", err)
	}
	if user == nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, SeverityWarning, false, claims.Subject, "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": "user_missing",
			}
		})
		return nil, nil, ErrRefreshInvalid
	}
	if user.Status == StatusDisabled || user.Status == StatusDeleted {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, SeverityWarning, false, user.ID, "", ErrAccountDisabled, nil)
		return nil, nil, ErrAccountDisabled
	}

	return user, match, nil
}
