package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no session matches the given token hash.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable indicates the activity index backend is unreachable.
var ErrRedisUnavailable = errors.New("redis unavailable")

// evictInsertScript adds the new session to the user's activity index and,
// when the cap would be exceeded, pops the lowest-scored (least recently
// active) members. Running it as one script makes evict-then-insert atomic
// with respect to concurrent logins for the same user.
const evictInsertScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local sid = ARGV[2]
local score = tonumber(ARGV[3])

redis.call("ZADD", key, score, sid)

local evicted = {}
local count = redis.call("ZCARD", key)
if count > limit then
  local popped = redis.call("ZPOPMIN", key, count - limit)
  for i = 1, #popped, 2 do
    evicted[#evicted + 1] = popped[i]
  end
end

return evicted
`

var evictInsertLua = redis.NewScript(evictInsertScript)

// Config tunes the session store.
type Config struct {
	// RedisPrefix namespaces the per-user activity index keys.
	RedisPrefix string
	// MaxSessionsPerUser is the active-session cap N. Default 5.
	MaxSessionsPerUser int
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Store coordinates the relational session repository and the Redis
// activity index.
type Store struct {
	redis  redis.UniversalClient
	repo   Repository
	prefix string
	limit  int
	now    func() time.Time
}

// NewStore creates a session Store over the given Redis client and
// repository.
func NewStore(redisClient redis.UniversalClient, repo Repository, cfg Config) *Store {
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "asx"
	}
	if cfg.MaxSessionsPerUser <= 0 {
		cfg.MaxSessionsPerUser = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Store{
		redis:  redisClient,
		repo:   repo,
		prefix: cfg.RedisPrefix,
		limit:  cfg.MaxSessionsPerUser,
		now:    cfg.Now,
	}
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":" + userID
}

// Create records a new session for the user. When the user is at the
// concurrency limit, the least-recently-active session is marked ended
// before the new one is inserted. The evicted sessions are returned so the
// caller can audit them.
func (s *Store) Create(ctx context.Context, userID, tokenHash string, device DeviceInfo) (*Session, []*Session, error) {
	now := s.now()
	sess := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		TokenHash:    tokenHash,
		IP:           device.IP,
		UserAgent:    device.UserAgent,
		DeviceType:   device.DeviceType,
		CreatedAt:    now,
		LastActivity: now,
		Active:       true,
	}

	raw, err := evictInsertLua.Run(ctx, s.redis,
		[]string{s.userKey(userID)},
		s.limit, sess.ID, now.UnixMilli(),
	).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	evictedIDs := scriptMembers(raw)

	var evicted []*Session
	for _, id := range evictedIDs {
		ended, endErr := s.endByID(ctx, userID, id, ReasonEvicted)
		if endErr != nil {
			return nil, nil, endErr
		}
		if ended != nil {
			evicted = append(evicted, ended)
		}
	}

	if err := s.repo.Insert(ctx, sess); err != nil {
		// Roll the index entry back so the cap stays accurate.
		_ = s.redis.ZRem(ctx, s.userKey(userID), sess.ID).Err()
		return nil, nil, err
	}

	return sess, evicted, nil
}

// Touch refreshes the session's last-activity timestamp. It is idempotent;
// an unknown or already-ended token hash returns [ErrNotFound] without side
// effects.
func (s *Store) Touch(ctx context.Context, tokenHash string) error {
	sess, err := s.repo.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return err
	}
	if sess == nil || !sess.Active {
		return ErrNotFound
	}

	now := s.now()
	if err := s.repo.UpdateActivity(ctx, tokenHash, now); err != nil {
		return err
	}

	// XX: only rescore sessions still present in the index. A concurrently
	// evicted session must not be resurrected here.
	if err := s.redis.ZAddXX(ctx, s.userKey(sess.UserID), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: sess.ID,
	}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// End terminates the session matching the token hash. Ending a session that
// no longer exists is not an error.
func (s *Store) End(ctx context.Context, tokenHash, reason string) error {
	sess, err := s.repo.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return err
	}
	if sess == nil || !sess.Active {
		return nil
	}

	if err := s.repo.End(ctx, sess.ID, s.now(), reason); err != nil {
		return err
	}
	if err := s.redis.ZRem(ctx, s.userKey(sess.UserID), sess.ID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// EndAllForUser terminates every active session for the user and clears the
// activity index. Returns the number of sessions ended.
func (s *Store) EndAllForUser(ctx context.Context, userID, reason string) (int, error) {
	count, err := s.repo.EndAllForUser(ctx, userID, s.now(), reason)
	if err != nil {
		return 0, err
	}
	if err := s.redis.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return count, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

// SweepIdle ends every active session whose last activity is older than the
// idle timeout. The caller owns the schedule; this is a single batch pass.
// Returns the number of sessions swept.
func (s *Store) SweepIdle(ctx context.Context, idleTimeout time.Duration) (int, error) {
	cutoff := s.now().Add(-idleTimeout)

	swept, err := s.repo.EndIdleBefore(ctx, cutoff, ReasonIdleTimeout)
	if err != nil {
		return 0, err
	}
	if len(swept) == 0 {
		return 0, nil
	}

	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, sess := range swept {
			pipe.ZRem(ctx, s.userKey(sess.UserID), sess.ID)
		}
		return nil
	})
	if err != nil {
		return len(swept), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return len(swept), nil
}

// ActiveCount returns the number of active sessions for the user according
// to the activity index.
func (s *Store) ActiveCount(ctx context.Context, userID string) (int, error) {
	count, err := s.redis.ZCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// ActiveSessions lists the user's active sessions from the repository.
func (s *Store) ActiveSessions(ctx context.Context, userID string) ([]*Session, error) {
	return s.repo.FindActiveByUser(ctx, userID)
}

func (s *Store) endByID(ctx context.Context, userID, sessionID, reason string) (*Session, error) {
	sessions, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if sess.ID == sessionID {
			if err := s.repo.End(ctx, sessionID, s.now(), reason); err != nil {
				return nil, err
			}
			sess.Active = false
			sess.EndReason = reason
			return sess, nil
		}
	}
	return nil, nil
}

func scriptMembers(raw interface{}) []string {
	values, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	members := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			members = append(members, s)
		}
	}
	return members
}
