package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/soundsphere/trackstore/common/clients"
	"github.com/soundsphere/trackstore/common/logger"
)

// UserIDHeader carries the caller identity when no bearer token is sent
const UserIDHeader = "X-User-ID"

// AuthConfig configures ExtractIdentity
type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens; empty disables token checks
	JWTSecret string
	// Required rejects anonymous requests with 401
	Required bool
}

// ExtractIdentity resolves the caller and stores it in the request context.
//
// A bearer token, when present, must verify; its subject is the identity.
// Otherwise the X-User-ID header is trusted as-is.
//
// Usage:
//
//	e.Use(middleware.ExtractIdentity(middleware.AuthConfig{JWTSecret: secret}))
//
// Accessing in services:
//
//	userID, ok := clients.GetUserID(ctx)
func ExtractIdentity(cfg AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			userID, err := identify(req, cfg.JWTSecret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error":   "unauthorized",
					"message": err.Error(),
				})
			}

			if userID == "" && cfg.Required {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error":   "unauthorized",
					"message": "authentication required",
				})
			}

			if userID != "" {
				c.SetRequest(req.WithContext(clients.WithUserID(req.Context(), userID)))
			}

			return next(c)
		}
	}
}

func identify(req *http.Request, secret string) (string, error) {
	authz := req.Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(authz, "Bearer "); ok && secret != "" {
		return parseSubject(strings.TrimSpace(token), secret)
	}
	return strings.TrimSpace(req.Header.Get(UserIDHeader)), nil
}

func parseSubject(raw, secret string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// TraceContext copies the Echo request id into the request context
// so service logs carry trace_id. Must run after middleware.RequestID.
func TraceContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			if id == "" {
				id = c.Request().Header.Get(echo.HeaderXRequestID)
			}
			if id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(logger.ContextWithTraceID(req.Context(), id)))
			}
			return next(c)
		}
	}
}
