package authcore

import (
	"context"
	"time"
)

// Role is the coarse authorization level stamped into access tokens. The
// engine validates membership but attaches no semantics; route-level
// enforcement belongs to the adopting application.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleAuthor Role = "author"
	RoleUser   Role = "user"
)

// DefaultRole is assigned when registration does not name a role.
const DefaultRole = RoleUser

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleAuthor, RoleUser:
		return true
	}
	return false
}

// UserStatus is the account lifecycle state.
type UserStatus uint8

const (
	// StatusPendingVerification is the state assigned at registration.
	StatusPendingVerification UserStatus = iota
	StatusActive
	StatusDisabled
	StatusDeleted
)

func (s UserStatus) String() string {
	switch s {
	case StatusPendingVerification:
		return "pending_verification"
	case StatusActive:
		return "active"
	case StatusDisabled:
		return "disabled"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// User is the identity record as persisted. Accounts are deactivated, never
// deleted, by this package. Profile is the PII blob encrypted by the engine;
// repositories treat it as opaque bytes.
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Role              Role
	Status            UserStatus
	Profile           []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PasswordChangedAt time.Time
	LastLoginAt       time.Time
}

// UserProjection is the caller-facing view of a user. It deliberately has no
// password hash field so a hash can never leak through a result struct.
type UserProjection struct {
	ID          string
	Email       string
	Role        Role
	Status      UserStatus
	CreatedAt   time.Time
	LastLoginAt time.Time
}

// Projection returns the safe view of the user.
func (u *User) Projection() UserProjection {
	return UserProjection{
		ID:          u.ID,
		Email:       u.Email,
		Role:        u.Role,
		Status:      u.Status,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// RefreshTokenRecord is one issued refresh grant. TokenHash is the hex
// SHA-256 of the raw token; the raw value is returned to the caller exactly
// once and never persisted. Rows are revoked, not deleted.
type RefreshTokenRecord struct {
	ID         string
	UserID     string
	TokenHash  string
	IP         string
	UserAgent  string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	RevokedAt  time.Time
	ReplacedBy string
}

// Revoked reports whether the grant has been revoked.
func (r *RefreshTokenRecord) Revoked() bool {
	return !r.RevokedAt.IsZero()
}

// ResetTokenRecord is a single-use password recovery grant. Only the
// SHA-256 of the token's secret half is stored. A non-zero SupersededAt
// means a newer token was issued for the same user and this one no longer
// resets anything.
type ResetTokenRecord struct {
	ID           string
	UserID       string
	SecretHash   [32]byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
	UsedAt       time.Time
	SupersededAt time.Time
}

// UserRepository is the persistence contract for users. Implementations are
// supplied by the adopting application.
//
// FindByEmail and FindByID return (nil, nil) when no row matches; an error
// return is reserved for store failures. Create must fail when the email is
// already present — the returned error is mapped to [ErrUserExists] when it
// wraps it, and treated as a store failure otherwise.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string, at time.Time) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	UpdateProfile(ctx context.Context, userID string, profile []byte, at time.Time) error
}

// RefreshTokenRepository is the persistence contract for refresh grants.
// Expiry filtering is the engine's job because revocation must take
// precedence in error reporting.
type RefreshTokenRepository interface {
	Insert(ctx context.Context, rec *RefreshTokenRecord) error
	// FindByUser returns every row for the user, revoked rows included,
	// so reuse of a revoked token is distinguishable from an unknown one.
	FindByUser(ctx context.Context, userID string) ([]*RefreshTokenRecord, error)
	Revoke(ctx context.Context, id string, at time.Time, replacedBy string) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int, error)
}

// ResetTokenRepository is the persistence contract for password reset
// grants. MarkUsed must be conditional: it reports false without error when
// the row was already consumed, which is how single use survives two
// concurrent confirmations. InvalidateActiveForUser stamps SupersededAt on
// every unconsumed, unsuperseded row of the user and reports how many rows
// it touched; a fresh request calls it first so only the newest token stays
// live.
type ResetTokenRepository interface {
	Insert(ctx context.Context, rec *ResetTokenRecord) error
	FindByID(ctx context.Context, id string) (*ResetTokenRecord, error)
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
	InvalidateActiveForUser(ctx context.Context, userID string, at time.Time) (int, error)
}

// SecurityEventRepository appends audit events to durable storage. Wire one
// through [Builder.WithSecurityEventRepository] to persist the audit trail;
// rows are append-only and never read back by this package.
type SecurityEventRepository interface {
	Record(ctx context.Context, event AuditEvent) error
}

// LoginResult is returned by Login and Register.
type LoginResult struct {
	User         UserProjection
	AccessToken  string
	RefreshToken string
	SessionID    string
	// EvictedSessionIDs lists sessions ended to keep the user inside the
	// concurrency limit.
	EvictedSessionIDs []string
}

// TokenPair is returned by the refresh operations. RefreshToken is empty
// unless full rotation was requested.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is the verdict of [Engine.Validate], carried to handlers by
// the middleware package.
type AuthResult struct {
	UserID    string
	Email     string
	Role      Role
	SessionID string
}
