package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/soundsphere/trackstore/common/clients"
	"github.com/soundsphere/trackstore/common/ratelimit"
)

// InternalServiceHeader carries the shared secret of trusted callers
const InternalServiceHeader = "X-Internal-Service"

// isInternalRequest checks if the request is from an internal service.
// An empty secret disables the bypass entirely.
func isInternalRequest(c echo.Context, secret string) bool {
	if secret == "" {
		return false
	}

	internalHeader := c.Request().Header.Get(InternalServiceHeader)
	if internalHeader == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(internalHeader), []byte(secret)) == 1
}

// GlobalRateLimitMiddleware checks the service-wide acquisition limit.
// Skips rate limiting for internal service-to-service calls.
func GlobalRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, limit int64, internalSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isInternalRequest(c, internalSecret) {
				return next(c)
			}

			result, err := rateLimiter.CheckGlobalLimit(c.Request().Context(), limit)
			if err != nil {
				// On error, allow request (fail open for availability)
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "global_rate_limit_exceeded",
					"message": "Service is experiencing high load. Please try again later.",
					"details": map[string]interface{}{
						"limit":               result.Limit,
						"window":              "60 seconds",
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}

// UserRateLimitMiddleware checks per-caller limits.
// Requires the caller identity in the request context; anonymous calls pass.
func UserRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, limit int64, internalSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isInternalRequest(c, internalSecret) {
				return next(c)
			}

			userID, ok := clients.GetUserID(c.Request().Context())
			if !ok {
				return next(c)
			}

			result, err := rateLimiter.CheckUserLimit(c.Request().Context(), userID, limit, ratelimit.DefaultWindowSeconds)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "user_rate_limit_exceeded",
					"message": "You have exceeded your request quota. Please wait before trying again.",
					"details": map[string]interface{}{
						"user_id":             userID,
						"limit":               result.Limit,
						"window":              "60 seconds",
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}

// InternalOnly rejects requests that do not carry the internal service secret
func InternalOnly(internalSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !isInternalRequest(c, internalSecret) {
				return c.JSON(http.StatusForbidden, map[string]interface{}{
					"error":   "forbidden",
					"message": "internal endpoint",
				})
			}
			return next(c)
		}
	}
}
