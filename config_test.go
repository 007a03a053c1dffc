package authcore

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SigningSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.PII.Secret = []byte("unit-test-pii-secret")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults with secrets are valid",
			mutate: func(*Config) {},
		},
		{
			name: "hs256 short secret",
			mutate: func(c *Config) {
				c.Token.SigningSecret = []byte("too-short")
			},
			wantErr: "signing secret",
		},
		{
			name: "ed25519 missing private key",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "ed25519"
			},
			wantErr: "private key",
		},
		{
			name: "unknown signing method",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "rs256"
			},
			wantErr: "unknown signing method",
		},
		{
			name: "refresh TTL not above access TTL",
			mutate: func(c *Config) {
				c.Token.RefreshTTL = c.Token.AccessTTL
			},
			wantErr: "refresh TTL",
		},
		{
			name: "zero session limit",
			mutate: func(c *Config) {
				c.Session.MaxSessionsPerUser = 0
			},
			wantErr: "session limit",
		},
		{
			name: "zero idle timeout",
			mutate: func(c *Config) {
				c.Session.IdleTimeout = 0
			},
			wantErr: "idle timeout",
		},
		{
			name: "zero guard attempts",
			mutate: func(c *Config) {
				c.Guard.MaxAttempts = 0
			},
			wantErr: "guard thresholds",
		},
		{
			name: "zero reset TTL",
			mutate: func(c *Config) {
				c.Reset.TokenTTL = 0
			},
			wantErr: "reset token TTL",
		},
		{
			name: "missing PII secret",
			mutate: func(c *Config) {
				c.PII.Secret = nil
			},
			wantErr: "PII encryption secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("AUTHCORE_SIGNING_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTHCORE_PII_SECRET", "env-pii-secret")
	t.Setenv("AUTHCORE_PASSWORD_MIN_LENGTH", "12")
	t.Setenv("AUTHCORE_LOCKOUT_THRESHOLD", "3")
	t.Setenv("AUTHCORE_LOCKOUT_WINDOW", "5m")
	t.Setenv("AUTHCORE_LOCKOUT_DURATION", "1h")
	t.Setenv("AUTHCORE_SESSION_LIMIT", "2")
	t.Setenv("AUTHCORE_IDLE_TIMEOUT", "45m")
	t.Setenv("AUTHCORE_ACCESS_TTL", "10m")
	t.Setenv("AUTHCORE_REFRESH_TTL", "720h")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}

	if string(cfg.Token.SigningSecret) != "0123456789abcdef0123456789abcdef" {
		t.Fatal("signing secret not picked up")
	}
	if string(cfg.PII.Secret) != "env-pii-secret" {
		t.Fatal("PII secret not picked up")
	}
	if cfg.Password.MinLength != 12 {
		t.Fatalf("MinLength = %d", cfg.Password.MinLength)
	}
	if cfg.Guard.MaxAttempts != 3 || cfg.Guard.Window != 5*time.Minute || cfg.Guard.LockoutDuration != time.Hour {
		t.Fatalf("guard config = %+v", cfg.Guard)
	}
	if cfg.Session.MaxSessionsPerUser != 2 || cfg.Session.IdleTimeout != 45*time.Minute {
		t.Fatalf("session config = %+v", cfg.Session)
	}
	if cfg.Token.AccessTTL != 10*time.Minute || cfg.Token.RefreshTTL != 720*time.Hour {
		t.Fatalf("token TTLs = %v / %v", cfg.Token.AccessTTL, cfg.Token.RefreshTTL)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("env config should validate: %v", err)
	}
}

func TestConfigFromEnvUnsetKeepsDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	want := DefaultConfig()
	if cfg.Token.AccessTTL != want.Token.AccessTTL || cfg.Guard.MaxAttempts != want.Guard.MaxAttempts {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestConfigFromEnvMalformed(t *testing.T) {
	t.Setenv("AUTHCORE_LOCKOUT_THRESHOLD", "many")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected error for malformed integer")
	}
}

func TestConfigFromEnvMalformedDuration(t *testing.T) {
	t.Setenv("AUTHCORE_IDLE_TIMEOUT", "soon")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestCloneConfigIsolatesSecrets(t *testing.T) {
	cfg := validConfig()
	cloned := cloneConfig(cfg)

	cfg.Token.SigningSecret[0] = 'X'
	if cloned.Token.SigningSecret[0] == 'X' {
		t.Fatal("clone shares signing secret backing array")
	}
}

func TestSecurityReportReflectsConfig(t *testing.T) {
	f := newTestEngine(t, testConfig())

	report := f.engine.SecurityReport()
	if report.SigningAlgorithm != "hs256" {
		t.Fatalf("SigningAlgorithm = %q", report.SigningAlgorithm)
	}
	if report.AccessTTL != 15*time.Minute {
		t.Fatalf("AccessTTL = %v", report.AccessTTL)
	}
	if report.SessionLimit != 5 {
		t.Fatalf("SessionLimit = %d", report.SessionLimit)
	}
	if !report.PIIEncryptionSet {
		t.Fatal("expected PIIEncryptionSet")
	}
	if !report.AuditEnabled || !report.MetricsEnabled {
		t.Fatal("expected audit and metrics enabled")
	}
}

func TestConfigFromEnvUnsetKeepsZeroSecrets(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if len(cfg.Token.SigningSecret) != 0 || len(cfg.PII.Secret) != 0 {
		t.Fatal("secrets must stay unset without env vars")
	}
}
