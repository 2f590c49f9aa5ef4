package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestManager() *TokenManager {
	return NewTokenManager("test-secret", time.Hour, 30*24*time.Hour, []string{
		"valid-a@example.com",
		"valid-b@example.com",
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	token, err := m.CreateAccessToken("valid-a@example.com", "Valid A")
	if err != nil {
		t.Fatalf("CreateAccessToken failed: %v", err)
	}

	email, err := m.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken failed: %v", err)
	}
	if email != "valid-a@example.com" {
		t.Errorf("Expected email valid-a@example.com, got %s", email)
	}
}

func TestRefreshTokenRejectedAsAccess(t *testing.T) {
	m := newTestManager()

	token, err := m.CreateRefreshToken("valid-a@example.com")
	if err != nil {
		t.Fatalf("CreateRefreshToken failed: %v", err)
	}

	if _, err := m.VerifyAccessToken(token); !errors.Is(err, ErrWrongType) {
		t.Errorf("Expected ErrWrongType, got %v", err)
	}
	if _, err := m.VerifyRefreshToken(token); err != nil {
		t.Errorf("Refresh token should verify as refresh: %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	m := NewTokenManager("test-secret", -time.Minute, time.Hour, nil)

	token, err := m.CreateAccessToken("valid-a@example.com", "")
	if err != nil {
		t.Fatalf("CreateAccessToken failed: %v", err)
	}

	if _, err := m.VerifyAccessToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestGarbageToken(t *testing.T) {
	m := newTestManager()

	if _, err := m.VerifyAccessToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestWrongSecret(t *testing.T) {
	m := newTestManager()
	other := NewTokenManager("other-secret", time.Hour, time.Hour, nil)

	token, err := other.CreateAccessToken("valid-a@example.com", "")
	if err != nil {
		t.Fatalf("CreateAccessToken failed: %v", err)
	}

	if _, err := m.VerifyAccessToken(token); err == nil {
		t.Error("Expected verification to fail for a foreign signature")
	}
}

func TestAllowlist(t *testing.T) {
	m := newTestManager()

	if !m.IsAllowed("valid-a@example.com") {
		t.Error("valid-a@example.com should be allowed")
	}
	if m.IsAllowed("intruder@example.com") {
		t.Error("intruder@example.com should not be allowed")
	}

	empty := NewTokenManager("s", time.Hour, time.Hour, nil)
	if empty.IsAllowed("valid-a@example.com") {
		t.Error("Empty allow-list should deny everyone")
	}
}
