// Package auth issues and validates the JWT tokens used for both the HTTP
// API and the WebSocket handshake, and enforces the email allow-list.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Verification errors.
var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: token expired")
	ErrWrongType    = errors.New("auth: wrong token type")
	ErrMissingEmail = errors.New("auth: token missing subject")
)

// Claims are the JWT claims carried by voicelink tokens. The subject is the
// authenticated user's email address.
type Claims struct {
	Name      string `json:"name,omitempty"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Verifier maps a bearer token to an authenticated principal. The WebSocket
// handshake depends only on this interface.
type Verifier interface {
	// VerifyAccessToken validates token and returns the principal's email.
	VerifyAccessToken(token string) (string, error)
	// IsAllowed reports whether the principal may use the service.
	IsAllowed(email string) bool
}

// TokenManager mints and verifies HS256-signed JWTs.
type TokenManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	allowlist     map[string]struct{}
}

var _ Verifier = (*TokenManager)(nil)

// NewTokenManager creates a TokenManager with the given signing secret,
// token lifetimes and allow-listed emails.
func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration, allowlist []string) *TokenManager {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, email := range allowlist {
		allowed[email] = struct{}{}
	}
	return &TokenManager{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		allowlist:     allowed,
	}
}

// CreateAccessToken mints a short-lived access token for email.
func (m *TokenManager) CreateAccessToken(email, name string) (string, error) {
	return m.sign(email, name, tokenTypeAccess, m.accessExpiry)
}

// CreateRefreshToken mints a long-lived refresh token for email.
func (m *TokenManager) CreateRefreshToken(email string) (string, error) {
	return m.sign(email, "", tokenTypeRefresh, m.refreshExpiry)
}

func (m *TokenManager) sign(email, name, tokenType string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name:      name,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken validates an access token and returns the subject email.
func (m *TokenManager) VerifyAccessToken(token string) (string, error) {
	return m.verify(token, tokenTypeAccess)
}

// VerifyRefreshToken validates a refresh token and returns the subject email.
func (m *TokenManager) VerifyRefreshToken(token string) (string, error) {
	return m.verify(token, tokenTypeRefresh)
}

func (m *TokenManager) verify(tokenString, wantType string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return "", ErrWrongType
	}
	if claims.Subject == "" {
		return "", ErrMissingEmail
	}
	return claims.Subject, nil
}

// IsAllowed reports whether email is on the allow-list. An empty allow-list
// denies everyone; the service is invite-only.
func (m *TokenManager) IsAllowed(email string) bool {
	_, ok := m.allowlist[email]
	return ok
}
