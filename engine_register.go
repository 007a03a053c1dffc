package authcore

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/halcyon-sec/authcore/password"
)

// RegisterInput is the typed registration request. Construct it directly;
// Register validates every field before touching the store.
type RegisterInput struct {
	Email    string
	Password string
	// Role defaults to [DefaultRole] when empty.
	Role Role
	// Profile is optional structured PII. It is serialized and encrypted
	// before it reaches the user repository.
	Profile any
}

// Register creates an account in pending-verification state and signs it
// in. Malformed input fails with a [ValidationError] before any store
// access; a taken email fails with [ErrUserExists].
func (e *Engine) Register(ctx context.Context, input RegisterInput) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateEmail(email); err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, SeverityInfo, false, "", "", err, func() map[string]string {
			return map[string]string{
				"reason": "malformed_email",
			}
		})
		return nil, err
	}

	if err := e.validatePassword(input.Password); err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, SeverityInfo, false, "", "", err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "weak_password",
			}
		})
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = DefaultRole
	}
	if !role.Valid() {
		err := newValidationError("role", "unknown role")
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, SeverityInfo, false, "", "", err, nil)
		return nil, err
	}

	hash, err := e.passwords.Hash(input.Password)
	if err != nil {
		return nil, storeErr("hash password", err)
	}

	var profile []byte
	if input.Profile != nil {
		profile, err = e.cipher.EncryptStructured(input.Profile)
		if err != nil {
			return nil, storeErr("encrypt profile", err)
		}
	}

	userID, err := password.GenerateSecret(16)
	if err != nil {
		return nil, storeErr("generate user id", err)
	}

	now := e.now()
	user := &User{
		ID:                userID,
		Email:             email,
		PasswordHash:      hash,
		Role:              role,
		Status:            StatusPendingVerification,
		Profile:           profile,
		CreatedAt:         now,
		UpdatedAt:         now,
		PasswordChangedAt: now,
	}

	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, SeverityWarning, false, "", "", ErrUserExists, func() map[string]string {
				return map[string]string{
					"identifier": email,
				}
			})
			return nil, ErrUserExists
		}
		return nil, storeErr("create user", err)
	}

	access, refresh, err := e.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, SeverityInfo, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{
			"role": string(role),
		}
	})

	return &LoginResult{
		User:         user.Projection(),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func validateEmail(email string) error {
	if email == "" {
		return newValidationError("email", "required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return newValidationError("email", "malformed address")
	}
	return nil
}

// validatePassword applies the strength policy plus the configured minimum
// length when it exceeds the built-in floor.
func (e *Engine) validatePassword(plaintext string) error {
	report := password.ValidateStrength(plaintext)
	issues := append([]string(nil), report.Issues...)
	if e.config.Password.MinLength > password.MinLength &&
		utf8.RuneCountInString(plaintext) < e.config.Password.MinLength {
		issues = append(issues, password.IssueTooShort)
	}
	if len(issues) > 0 {
		return newValidationError("password", dedupe(issues)...)
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
