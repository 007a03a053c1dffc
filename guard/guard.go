package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBackendUnavailable indicates the Redis backend is unreachable. Callers
// treat it as an infrastructure fault, never as a verdict on the attempt.
var ErrBackendUnavailable = errors.New("guard backend unavailable")

const (
	attemptKeyPrefix  = "bfa:"
	lockoutKeyPrefix  = "bfl:"
	suspectKeyPrefix  = "bfs:"
	defaultWindow     = 15 * time.Minute
	defaultLockout    = 30 * time.Minute
	defaultThreshold  = 5
	defaultSuspicion  = 20
	defaultSuspWindow = 24 * time.Hour
)

// Config tunes the guard. Zero values fall back to the defaults documented
// on each field.
type Config struct {
	// MaxAttempts is the failure threshold per window. Default 5.
	MaxAttempts int
	// Window is the sliding attempt window, measured from the last
	// recorded failure. Default 15 minutes.
	Window time.Duration
	// LockoutDuration is how long an identifier stays locked once the
	// threshold is reached. Default 30 minutes.
	LockoutDuration time.Duration
	// SuspicionThreshold is the independent suspicious-activity event count
	// that triggers escalation. Default 20.
	SuspicionThreshold int
	// SuspicionWindow bounds the suspicious-activity counter. Default 24h.
	SuspicionWindow time.Duration

	// Now overrides the clock used to compute LockedUntil; nil means
	// time.Now.
	Now func() time.Time
}

// Decision is the verdict of [Guard.CheckAttempt].
type Decision struct {
	Allowed           bool
	RemainingAttempts int
	// LockedUntil is the zero time unless a lockout is active.
	LockedUntil time.Time
}

// Guard tracks login failures per identifier (email or IP) in Redis.
type Guard struct {
	redis  redis.UniversalClient
	config Config
}

// New returns a Guard backed by the given Redis client. The client is an
// injected dependency; the guard owns no connection lifecycle.
func New(redisClient redis.UniversalClient, cfg Config) *Guard {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = defaultLockout
	}
	if cfg.SuspicionThreshold <= 0 {
		cfg.SuspicionThreshold = defaultSuspicion
	}
	if cfg.SuspicionWindow <= 0 {
		cfg.SuspicionWindow = defaultSuspWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Guard{redis: redisClient, config: cfg}
}

// CheckAttempt reports whether a login attempt for the identifier may
// proceed. An active lockout yields Allowed=false with LockedUntil set;
// otherwise the remaining attempt budget is returned. The counter itself is
// not touched — only RecordFailure mutates it.
func (g *Guard) CheckAttempt(ctx context.Context, identifier string) (Decision, error) {
	ttl, err := g.redis.PTTL(ctx, lockoutKeyPrefix+identifier).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if ttl > 0 {
		return Decision{
			Allowed:     false,
			LockedUntil: g.config.Now().Add(ttl),
		}, nil
	}

	count, err := g.attemptCount(ctx, identifier)
	if err != nil {
		return Decision{}, err
	}

	remaining := g.config.MaxAttempts - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:           count < g.config.MaxAttempts,
		RemainingAttempts: remaining,
	}, nil
}

// RecordFailure atomically increments the failure counter and refreshes the
// window TTL, so the window slides from the most recent attempt. When the
// increment reaches the threshold the identifier is locked out and the
// counter is cleared; it reports whether that lockout was triggered.
func (g *Guard) RecordFailure(ctx context.Context, identifier string) (bool, error) {
	key := attemptKeyPrefix + identifier

	count, err := g.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := g.redis.Expire(ctx, key, g.config.Window).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if count < int64(g.config.MaxAttempts) {
		return false, nil
	}

	_, err = g.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, lockoutKeyPrefix+identifier, "1", g.config.LockoutDuration)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return true, nil
}

// RecordSuccess clears the failure counter entirely.
func (g *Guard) RecordSuccess(ctx context.Context, identifier string) error {
	if err := g.redis.Del(ctx, attemptKeyPrefix+identifier, lockoutKeyPrefix+identifier).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// RecordSuspicious increments the suspicious-activity counter for the
// identifier and reports whether the escalation threshold has been crossed.
// The counter is independent of the login-attempt counter.
func (g *Guard) RecordSuspicious(ctx context.Context, identifier string) (bool, error) {
	key := suspectKeyPrefix + identifier

	count, err := g.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// Fixed-window semantics: TTL set only on the first event in the window.
	if count == 1 {
		if err := g.redis.Expire(ctx, key, g.config.SuspicionWindow).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	return count >= int64(g.config.SuspicionThreshold), nil
}

// AttemptCount returns the current failure count for an identifier. Missing
// keys return zero and do not reveal account existence.
func (g *Guard) AttemptCount(ctx context.Context, identifier string) (int, error) {
	return g.attemptCount(ctx, identifier)
}

func (g *Guard) attemptCount(ctx context.Context, identifier string) (int, error) {
	count, err := g.redis.Get(ctx, attemptKeyPrefix+identifier).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}
