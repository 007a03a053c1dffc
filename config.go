package authcore

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/halcyon-sec/authcore/token"
)

// Config is the full engine configuration. Zero values fall back to the
// defaults from DefaultConfig; Validate rejects combinations that would
// weaken the security posture rather than silently correcting them.
type Config struct {
	Token    TokenConfig
	Password PasswordConfig
	Session  SessionConfig
	Guard    GuardConfig
	Reset    ResetConfig
	PII      PIIConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// TokenConfig carries signing material and token lifetimes.
type TokenConfig struct {
	// SigningMethod is "hs256" or "ed25519".
	SigningMethod string
	// SigningSecret is the HMAC secret for hs256.
	SigningSecret []byte
	// PrivateKey and PublicKey carry the ed25519 key pair (PEM or raw).
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

// PasswordConfig tunes the argon2id work factor and the strength policy.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MinLength raises the strength policy's minimum above the built-in
	// floor of 8. Values below 8 are ignored.
	MinLength int
}

// SessionConfig tunes session tracking.
type SessionConfig struct {
	RedisPrefix        string
	MaxSessionsPerUser int
	IdleTimeout        time.Duration
}

// GuardConfig tunes the brute-force guard.
type GuardConfig struct {
	MaxAttempts        int
	Window             time.Duration
	LockoutDuration    time.Duration
	SuspicionThreshold int
	SuspicionWindow    time.Duration
}

// ResetConfig tunes password recovery.
type ResetConfig struct {
	TokenTTL time.Duration
	// EnumerationDelay pads the unknown-identifier path so request timing
	// does not reveal account existence.
	EnumerationDelay time.Duration
}

// PIIConfig carries the at-rest encryption secret for profile data.
type PIIConfig struct {
	Secret []byte
}

// AuditConfig tunes the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events under backpressure instead of blocking the
	// calling operation. Dropped events are counted.
	DropIfFull bool
}

// MetricsConfig tunes the internal counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration: 15-minute access
// tokens, 30-day refresh tokens, 5 concurrent sessions, 5 attempts per
// 15-minute window with a 30-minute lockout, 1-hour reset tokens.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: string(token.MethodHS256),
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
		},
		Session: SessionConfig{
			RedisPrefix:        "asx",
			MaxSessionsPerUser: 5,
			IdleTimeout:        30 * time.Minute,
		},
		Guard: GuardConfig{
			MaxAttempts:        5,
			Window:             15 * time.Minute,
			LockoutDuration:    30 * time.Minute,
			SuspicionThreshold: 20,
			SuspicionWindow:    24 * time.Hour,
		},
		Reset: ResetConfig{
			TokenTTL:         time.Hour,
			EnumerationDelay: 50 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// ConfigFromEnv loads the environment-supplied options on top of the
// defaults. Unset variables keep their default; malformed values are an
// error rather than a silent fallback.
//
// Recognized variables: AUTHCORE_SIGNING_SECRET, AUTHCORE_PII_SECRET,
// AUTHCORE_PASSWORD_MIN_LENGTH, AUTHCORE_LOCKOUT_THRESHOLD,
// AUTHCORE_LOCKOUT_WINDOW, AUTHCORE_LOCKOUT_DURATION,
// AUTHCORE_SESSION_LIMIT, AUTHCORE_IDLE_TIMEOUT, AUTHCORE_ACCESS_TTL,
// AUTHCORE_REFRESH_TTL. Durations use Go syntax ("15m", "720h").
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("AUTHCORE_SIGNING_SECRET"); v != "" {
		cfg.Token.SigningSecret = []byte(v)
	}
	if v := os.Getenv("AUTHCORE_PII_SECRET"); v != "" {
		cfg.PII.Secret = []byte(v)
	}

	if err := envInt("AUTHCORE_PASSWORD_MIN_LENGTH", &cfg.Password.MinLength); err != nil {
		return Config{}, err
	}
	if err := envInt("AUTHCORE_LOCKOUT_THRESHOLD", &cfg.Guard.MaxAttempts); err != nil {
		return Config{}, err
	}
	if err := envInt("AUTHCORE_SESSION_LIMIT", &cfg.Session.MaxSessionsPerUser); err != nil {
		return Config{}, err
	}

	if err := envDuration("AUTHCORE_LOCKOUT_WINDOW", &cfg.Guard.Window); err != nil {
		return Config{}, err
	}
	if err := envDuration("AUTHCORE_LOCKOUT_DURATION", &cfg.Guard.LockoutDuration); err != nil {
		return Config{}, err
	}
	if err := envDuration("AUTHCORE_IDLE_TIMEOUT", &cfg.Session.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := envDuration("AUTHCORE_ACCESS_TTL", &cfg.Token.AccessTTL); err != nil {
		return Config{}, err
	}
	if err := envDuration("AUTHCORE_REFRESH_TTL", &cfg.Token.RefreshTTL); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return errors.New(name + ": not an integer")
	}
	*dst = n
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return errors.New(name + ": not a duration")
	}
	*dst = d
	return nil
}

// Validate checks the configuration for unusable combinations.
func (c *Config) Validate() error {
	switch token.SigningMethod(c.Token.SigningMethod) {
	case token.MethodHS256:
		if len(c.Token.SigningSecret) < 32 {
			return errors.New("hs256 requires a signing secret of at least 32 bytes")
		}
	case token.MethodEd25519:
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires a private key")
		}
	default:
		return errors.New("unknown signing method: " + c.Token.SigningMethod)
	}

	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if c.Session.MaxSessionsPerUser <= 0 {
		return errors.New("session limit must be positive")
	}
	if c.Session.IdleTimeout <= 0 {
		return errors.New("session idle timeout must be positive")
	}
	if c.Guard.MaxAttempts <= 0 || c.Guard.Window <= 0 || c.Guard.LockoutDuration <= 0 {
		return errors.New("guard thresholds must be positive")
	}
	if c.Reset.TokenTTL <= 0 {
		return errors.New("reset token TTL must be positive")
	}
	if len(c.PII.Secret) == 0 {
		return errors.New("PII encryption secret required")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.SigningSecret = cloneBytes(cfg.Token.SigningSecret)
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.PII.Secret = cloneBytes(cfg.PII.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
