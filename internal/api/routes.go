// Package api wires the HTTP surface: health, metrics, token issuance, and
// the WebSocket session endpoint.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dreysen/voicelink/internal/auth"
	"github.com/dreysen/voicelink/internal/websocket"
)

// Token issuance is rate limited per client IP so the unauthenticated auth
// endpoints cannot be hammered.
const (
	authRatePerMinute = 10
	authRateBurst     = 10
)

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	tokens *auth.TokenManager,
	accessExpiry time.Duration,
	registry *prometheus.Registry,
	logger *zap.Logger,
) {
	e.Use(middleware.Secure())

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:   "ok",
			Service:  "voicelink",
			Sessions: len(hub.ActiveSessions()),
		})
	})

	if registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	v1 := e.Group("/api/v1")
	authLimiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(float64(authRatePerMinute) / 60.0),
			Burst: authRateBurst,
		}),
	})
	authGroup := v1.Group("/auth", authLimiter)
	authGroup.POST("/token", func(c echo.Context) error {
		return issueToken(c, tokens, accessExpiry, logger)
	})
	authGroup.POST("/refresh", func(c echo.Context) error {
		return refreshToken(c, tokens, accessExpiry, logger)
	})
	authGroup.GET("/me", func(c echo.Context) error {
		return currentUser(c, tokens, logger)
	})

	// WebSocket endpoint; authentication happens in-band as the first
	// message of the connection.
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}

// issueToken hands out a token pair for an allow-listed email. There is no
// password step; the allow-list is the access control.
func issueToken(c echo.Context, tokens *auth.TokenManager, accessExpiry time.Duration, logger *zap.Logger) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Email is required",
		})
	}
	if !tokens.IsAllowed(email) {
		logger.Warn("Token request for disallowed email", zap.String("email", email))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "not_allowed",
			Message: "Email is not authorized",
		})
	}

	accessToken, err := tokens.CreateAccessToken(email, req.Name)
	if err != nil {
		logger.Error("Failed to create access token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate access token",
		})
	}
	refreshToken, err := tokens.CreateRefreshToken(email)
	if err != nil {
		logger.Error("Failed to create refresh token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate refresh token",
		})
	}

	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(accessExpiry),
	})
}

// currentUser resolves the principal behind a Bearer access token.
func currentUser(c echo.Context, tokens *auth.TokenManager, logger *zap.Logger) error {
	header := c.Request().Header.Get("Authorization")
	token := ""
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		token = strings.TrimSpace(header[len(bearerPrefix):])
	}
	if token == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "Bearer access token is required",
		})
	}

	email, err := tokens.VerifyAccessToken(token)
	if err != nil {
		logger.Warn("Access token rejected", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired access token",
		})
	}

	return c.JSON(http.StatusOK, MeResponse{
		Email:   email,
		Allowed: tokens.IsAllowed(email),
	})
}

const bearerPrefix = "Bearer "

// refreshToken exchanges a valid refresh token for a new access token.
func refreshToken(c echo.Context, tokens *auth.TokenManager, accessExpiry time.Duration, logger *zap.Logger) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Refresh token is required",
		})
	}

	email, err := tokens.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		logger.Warn("Refresh token rejected", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired refresh token",
		})
	}
	if !tokens.IsAllowed(email) {
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "not_allowed",
			Message: "Email is no longer authorized",
		})
	}

	accessToken, err := tokens.CreateAccessToken(email, "")
	if err != nil {
		logger.Error("Failed to create access token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate access token",
		})
	}

	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken: accessToken,
		ExpiresAt:   time.Now().Add(accessExpiry),
	})
}
