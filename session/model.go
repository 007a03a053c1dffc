package session

import (
	"context"
	"time"
)

// End reasons recorded on terminated sessions.
const (
	ReasonLogout         = "logout"
	ReasonEvicted        = "evicted"
	ReasonIdleTimeout    = "idle_timeout"
	ReasonPasswordChange = "password_change"
)

// DeviceInfo is the device metadata captured at login.
type DeviceInfo struct {
	IP         string
	UserAgent  string
	DeviceType string
}

// Session is one authenticated device context. TokenHash is the SHA-256 of
// the associated access token; the raw token is never stored.
type Session struct {
	ID           string
	UserID       string
	TokenHash    string
	IP           string
	UserAgent    string
	DeviceType   string
	CreatedAt    time.Time
	LastActivity time.Time
	Active       bool
	EndedAt      time.Time
	EndReason    string
}

// Repository is the persistent-store contract for sessions. Implementations
// are supplied by the adopting application; every method carries the
// caller's context so store round-trips stay cancellable.
type Repository interface {
	Insert(ctx context.Context, sess *Session) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	FindActiveByUser(ctx context.Context, userID string) ([]*Session, error)
	UpdateActivity(ctx context.Context, tokenHash string, at time.Time) error
	End(ctx context.Context, sessionID string, at time.Time, reason string) error
	EndAllForUser(ctx context.Context, userID string, at time.Time, reason string) (int, error)
	// EndIdleBefore marks every active session with LastActivity older than
	// cutoff as ended and returns the affected sessions so the activity
	// index can be reconciled.
	EndIdleBefore(ctx context.Context, cutoff time.Time, reason string) ([]*Session, error)
}
