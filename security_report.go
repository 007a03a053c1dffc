package authcore

import "time"

// SecurityReport summarizes the engine's effective security posture for
// startup logging and operational review. It never includes key material.
type SecurityReport struct {
	SigningAlgorithm   string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	Argon2             PasswordConfigReport
	PasswordMinLength  int
	SessionLimit       int
	SessionIdleTimeout time.Duration
	LockoutThreshold   int
	LockoutWindow      time.Duration
	LockoutDuration    time.Duration
	ResetTokenTTL      time.Duration
	PIIEncryptionSet   bool
	AuditEnabled       bool
	MetricsEnabled     bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	minLength := e.config.Password.MinLength
	if minLength < 8 {
		minLength = 8
	}

	return SecurityReport{
		SigningAlgorithm: e.config.Token.SigningMethod,
		AccessTTL:        e.config.Token.AccessTTL,
		RefreshTTL:       e.config.Token.RefreshTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		PasswordMinLength:  minLength,
		SessionLimit:       e.config.Session.MaxSessionsPerUser,
		SessionIdleTimeout: e.config.Session.IdleTimeout,
		LockoutThreshold:   e.config.Guard.MaxAttempts,
		LockoutWindow:      e.config.Guard.Window,
		LockoutDuration:    e.config.Guard.LockoutDuration,
		ResetTokenTTL:      e.config.Reset.TokenTTL,
		PIIEncryptionSet:   len(e.config.PII.Secret) > 0,
		AuditEnabled:       e.config.Audit.Enabled,
		MetricsEnabled:     e.config.Metrics.Enabled,
	}
}
