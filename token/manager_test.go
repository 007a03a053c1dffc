package token

import (
	"errors"
	"testing"
	"time"
)

func testManager(t *testing.T, now *time.Time) *Manager {
	t.Helper()

	cfg := Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    30 * 24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "authcore-test",
	}
	if now != nil {
		cfg.Now = func() time.Time { return *now }
	}

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return m
}

func TestIssueAndParseAccess(t *testing.T) {
	m := testManager(t, nil)

	raw, err := m.IssueAccess("user-1", "a@b.example", "editor")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}

	claims, err := m.ParseAccess(raw)
	if err != nil {
		t.Fatalf("ParseAccess error: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "a@b.example" || claims.Role != "editor" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestAccessExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := testManager(t, &now)

	raw, err := m.IssueAccess("user-1", "a@b.example", "user")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}

	// T - epsilon: still valid.
	now = now.Add(15*time.Minute - time.Second)
	if _, err := m.ParseAccess(raw); err != nil {
		t.Fatalf("expected token valid just before expiry, got %v", err)
	}

	// T + epsilon: uniform failure.
	now = now.Add(2 * time.Second)
	if _, err := m.ParseAccess(raw); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid after expiry, got %v", err)
	}
}

func TestParseAccessFailsUniformly(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := testManager(t, &now)

	expired, err := m.IssueAccess("user-1", "", "user")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}
	now = now.Add(16 * time.Minute)

	other := testManager(t, &now)
	forged, err := other.IssueAccess("user-1", "", "user")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}
	tampered := forged[:len(forged)-2] + "xx"

	for name, tok := range map[string]string{
		"expired":   expired,
		"tampered":  tampered,
		"garbage":   "not.a.jwt",
		"empty":     "",
		"refreshed": mustIssueRefresh(t, m, "user-1"),
	} {
		if _, err := m.ParseAccess(tok); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}

func mustIssueRefresh(t *testing.T, m *Manager, userID string) string {
	t.Helper()
	raw, err := m.IssueRefresh(userID)
	if err != nil {
		t.Fatalf("IssueRefresh error: %v", err)
	}
	return raw
}

func TestParseRefreshDistinguishesExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := testManager(t, &now)

	raw := mustIssueRefresh(t, m, "user-1")

	claims, err := m.ParseRefresh(raw)
	if err != nil {
		t.Fatalf("ParseRefresh error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}

	now = now.Add(31 * 24 * time.Hour)
	if _, err := m.ParseRefresh(raw); !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("expected ErrRefreshExpired, got %v", err)
	}

	if _, err := m.ParseRefresh("junk"); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}

	access, err := m.IssueAccess("user-1", "", "user")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}
	if _, err := m.ParseRefresh(access); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected access token rejected as refresh, got %v", err)
	}
}

func TestRefreshTokensAreUnique(t *testing.T) {
	m := testManager(t, nil)

	first := mustIssueRefresh(t, m, "user-1")
	second := mustIssueRefresh(t, m, "user-1")
	if first == second {
		t.Fatal("expected distinct refresh tokens for the same user")
	}
	if Hash(first) == Hash(second) {
		t.Fatal("expected distinct hashes")
	}
}

func TestNewManagerValidation(t *testing.T) {
	base := Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("secret"),
	}

	noTTL := base
	noTTL.AccessTTL = 0
	if _, err := NewManager(noTTL); err == nil {
		t.Fatal("expected zero access TTL to be rejected")
	}

	noKey := base
	noKey.PrivateKey = nil
	if _, err := NewManager(noKey); err == nil {
		t.Fatal("expected missing secret to be rejected")
	}

	badMethod := base
	badMethod.SigningMethod = "rs256"
	if _, err := NewManager(badMethod); err == nil {
		t.Fatal("expected unsupported method to be rejected")
	}

	badEd := base
	badEd.SigningMethod = MethodEd25519
	badEd.PrivateKey = []byte("short")
	if _, err := NewManager(badEd); err == nil {
		t.Fatal("expected malformed ed25519 key to be rejected")
	}
}

func TestHashIsStable(t *testing.T) {
	if Hash("abc") != Hash("abc") {
		t.Fatal("expected deterministic hash")
	}
	if Hash("abc") == Hash("abd") {
		t.Fatal("expected distinct inputs to hash differently")
	}
	if len(Hash("abc")) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(Hash("abc")))
	}
}
