package authcore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/halcyon-sec/authcore/guard"
	"github.com/halcyon-sec/authcore/password"
	"github.com/halcyon-sec/authcore/pii"
	"github.com/halcyon-sec/authcore/session"
	"github.com/halcyon-sec/authcore/token"
)

// Builder assembles an Engine. Repositories and the Redis client are
// injected; everything else is derived from Config. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	clock  func() time.Time

	users     UserRepository
	refresh   RefreshTokenRepository
	resets    ResetTokenRepository
	events    SecurityEventRepository
	sessions  session.Repository
	auditSink AuditSink

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithClock overrides the time source for every component, tokens and
// session timestamps included. Tests use this; production leaves it unset.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithUserRepository(repo UserRepository) *Builder {
	b.users = repo
	return b
}

func (b *Builder) WithRefreshTokenRepository(repo RefreshTokenRepository) *Builder {
	b.refresh = repo
	return b
}

func (b *Builder) WithResetTokenRepository(repo ResetTokenRepository) *Builder {
	b.resets = repo
	return b
}

// WithSecurityEventRepository persists audit events alongside any sink set
// with WithAuditSink.
func (b *Builder) WithSecurityEventRepository(repo SecurityEventRepository) *Builder {
	b.events = repo
	return b
}

func (b *Builder) WithSessionRepository(repo session.Repository) *Builder {
	b.sessions = repo
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the components, and starts the
// audit dispatcher. The returned Engine must be Closed when done.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user repository required")
	}
	if b.refresh == nil {
		return nil, errors.New("refresh token repository required")
	}
	if b.resets == nil {
		return nil, errors.New("reset token repository required")
	}
	if b.sessions == nil {
		return nil, errors.New("session repository required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	signingKey := cfg.Token.PrivateKey
	if token.SigningMethod(cfg.Token.SigningMethod) == token.MethodHS256 {
		signingKey = cfg.Token.SigningSecret
	}
	tokens, err := token.NewManager(token.Config{
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    signingKey,
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}

	cipher, err := pii.NewCipher(cfg.PII.Secret)
	if err != nil {
		return nil, err
	}

	bfGuard := guard.New(b.redis, guard.Config{
		MaxAttempts:        cfg.Guard.MaxAttempts,
		Window:             cfg.Guard.Window,
		LockoutDuration:    cfg.Guard.LockoutDuration,
		SuspicionThreshold: cfg.Guard.SuspicionThreshold,
		SuspicionWindow:    cfg.Guard.SuspicionWindow,
		Now:                clock,
	})

	sessions := session.NewStore(b.redis, b.sessions, session.Config{
		RedisPrefix:        cfg.Session.RedisPrefix,
		MaxSessionsPerUser: cfg.Session.MaxSessionsPerUser,
		Now:                clock,
	})

	// Precompute a hash so the unknown-user login path performs the same
	// argon2 work as a real verification.
	decoyPassword, err := password.GenerateSecret(18)
	if err != nil {
		return nil, err
	}
	decoyHash, err := hasher.Hash(decoyPassword)
	if err != nil {
		return nil, err
	}

	sink := b.auditSink
	if b.events != nil {
		repoSink := NewRepositorySink(b.events)
		if sink != nil {
			sink = NewMultiSink(sink, repoSink)
		} else {
			sink = repoSink
		}
	}

	engine := &Engine{
		config:    cfg,
		clock:     clock,
		users:     b.users,
		refresh:   b.refresh,
		resets:    b.resets,
		sessions:  sessions,
		guard:     bfGuard,
		passwords: hasher,
		tokens:    tokens,
		cipher:    cipher,
		decoyHash: decoyHash,
		audit:     newAuditDispatcher(cfg.Audit, sink),
		metrics:   NewMetrics(cfg.Metrics),
	}

	b.built = true

	return engine, nil
}
