package authcore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/halcyon-sec/authcore/session"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// ---- in-memory repositories ----

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*User{}}
}

func (m *memUsers) Create(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == user.Email {
			return fmt.Errorf("%w: %s", ErrUserExists, user.Email)
		}
	}
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, passwordHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return fmt.Errorf("no such user: %s", userID)
	}
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = at
	u.UpdatedAt = at
	return nil
}

func (m *memUsers) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return fmt.Errorf("no such user: %s", userID)
	}
	u.LastLoginAt = at
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, userID string, profile []byte, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return fmt.Errorf("no such user: %s", userID)
	}
	u.Profile = profile
	u.UpdatedAt = at
	return nil
}

func (m *memUsers) setStatus(userID string, status UserStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[userID]; ok {
		u.Status = status
	}
}

type memRefresh struct {
	mu   sync.Mutex
	rows []*RefreshTokenRecord
}

func newMemRefresh() *memRefresh {
	return &memRefresh{}
}

func (m *memRefresh) Insert(_ context.Context, rec *RefreshTokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memRefresh) FindByUser(_ context.Context, userID string) ([]*RefreshTokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*RefreshTokenRecord
	for _, row := range m.rows {
		if row.UserID == userID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRefresh) Revoke(_ context.Context, id string, at time.Time, replacedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id && row.RevokedAt.IsZero() {
			row.RevokedAt = at
			row.ReplacedBy = replacedBy
		}
	}
	return nil
}

func (m *memRefresh) RevokeAllForUser(_ context.Context, userID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, row := range m.rows {
		if row.UserID == userID && row.RevokedAt.IsZero() {
			row.RevokedAt = at
			count++
		}
	}
	return count, nil
}

func (m *memRefresh) activeCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, row := range m.rows {
		if row.UserID == userID && row.RevokedAt.IsZero() {
			count++
		}
	}
	return count
}

type memResets struct {
	mu   sync.Mutex
	byID map[string]*ResetTokenRecord
}

func newMemResets() *memResets {
	return &memResets{byID: map[string]*ResetTokenRecord{}}
}

func (m *memResets) Insert(_ context.Context, rec *ResetTokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.byID[rec.ID] = &cp
	return nil
}

func (m *memResets) FindByID(_ context.Context, id string) (*ResetTokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.byID[id]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (m *memResets) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok || !rec.UsedAt.IsZero() {
		return false, nil
	}
	rec.UsedAt = at
	return true, nil
}

func (m *memResets) InvalidateActiveForUser(_ context.Context, userID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for _, rec := range m.byID {
		if rec.UserID == userID && rec.UsedAt.IsZero() && rec.SupersededAt.IsZero() {
			rec.SupersededAt = at
			n++
		}
	}
	return n, nil
}

func (m *memResets) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memSessions struct {
	mu   sync.Mutex
	rows []*session.Session
}

func newMemSessions() *memSessions {
	return &memSessions{}
}

func (m *memSessions) Insert(_ context.Context, sess *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sess
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memSessions) FindByTokenHash(_ context.Context, tokenHash string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].TokenHash == tokenHash {
			cp := *m.rows[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memSessions) FindActiveByUser(_ context.Context, userID string) ([]*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*session.Session
	for _, row := range m.rows {
		if row.UserID == userID && row.Active {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSessions) UpdateActivity(_ context.Context, tokenHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.TokenHash == tokenHash && row.Active {
			row.LastActivity = at
		}
	}
	return nil
}

func (m *memSessions) End(_ context.Context, sessionID string, at time.Time, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == sessionID && row.Active {
			row.Active = false
			row.EndedAt = at
			row.EndReason = reason
		}
	}
	return nil
}

func (m *memSessions) EndAllForUser(_ context.Context, userID string, at time.Time, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, row := range m.rows {
		if row.UserID == userID && row.Active {
			row.Active = false
			row.EndedAt = at
			row.EndReason = reason
			count++
		}
	}
	return count, nil
}

func (m *memSessions) EndIdleBefore(_ context.Context, cutoff time.Time, reason string) ([]*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*session.Session
	for _, row := range m.rows {
		if row.Active && row.LastActivity.Before(cutoff) {
			row.Active = false
			row.EndedAt = cutoff
			row.EndReason = reason
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSessions) byID(sessionID string) *session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == sessionID {
			cp := *row
			return &cp
		}
	}
	return nil
}

type memEvents struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (m *memEvents) Record(_ context.Context, event AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memEvents) byType(eventType string) []AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditEvent
	for _, ev := range m.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// ---- harness ----

type testFixture struct {
	engine   *Engine
	mr       *miniredis.Miniredis
	clock    *testClock
	users    *memUsers
	refresh  *memRefresh
	resets   *memResets
	sessions *memSessions
	events   *memEvents
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SigningSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.PII.Secret = []byte("unit-test-pii-secret")
	// Floor argon2 params so the suite stays fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Reset.EnumerationDelay = time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) *testFixture {
	t.Helper()

	mr, rdb := newTestRedis(t)
	clock := newTestClock()
	f := &testFixture{
		mr:       mr,
		clock:    clock,
		users:    newMemUsers(),
		refresh:  newMemRefresh(),
		resets:   newMemResets(),
		sessions: newMemSessions(),
		events:   &memEvents{},
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClock(clock.Now).
		WithUserRepository(f.users).
		WithRefreshTokenRepository(f.refresh).
		WithResetTokenRepository(f.resets).
		WithSessionRepository(f.sessions).
		WithSecurityEventRepository(f.events).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	f.engine = engine
	return f
}

const testPassword = "Str0ng!Passw0rd"

func (f *testFixture) register(t *testing.T, email string) *LoginResult {
	t.Helper()
	res, err := f.engine.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return res
}

func (f *testFixture) login(t *testing.T, email string) *LoginResult {
	t.Helper()
	res, err := f.engine.Login(context.Background(), email, testPassword)
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	return res
}

// drainAudit waits for the async dispatcher to deliver pending events.
func (f *testFixture) drainAudit(t *testing.T, eventType string, want int) []AuditEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got := f.events.byType(eventType)
		if len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	got := f.events.byType(eventType)
	t.Fatalf("expected %d %q audit events, got %d", want, eventType, len(got))
	return got
}
