package api

import "time"

// TokenRequest asks for a token pair for an allow-listed email.
type TokenRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// TokenResponse carries a freshly issued token pair.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// MeResponse describes the principal behind an access token.
type MeResponse struct {
	Email   string `json:"email"`
	Allowed bool   `json:"allowed"`
}

// ErrorResponse is the JSON error envelope for HTTP endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse reports service status.
type HealthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Sessions int    `json:"sessions"`
}
