package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/ratelimit"
)

// KeyFunc derives the rate limit key of a request. An empty key skips the check.
type KeyFunc func(c echo.Context) string

// ParamKey keys requests on a path parameter
func ParamKey(name string) KeyFunc {
	return func(c echo.Context) string {
		return c.Param(name)
	}
}

// RateLimit rejects requests over the limiter's policy with 429.
// A nil limiter disables the check. Limiter errors fail open.
func RateLimit(limiter ratelimit.Limiter, scope string, key KeyFunc, log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil {
			return next
		}

		return func(c echo.Context) error {
			k := key(c)
			if k == "" {
				return next(c)
			}

			result, err := limiter.Allow(c.Request().Context(), k)
			if err != nil {
				// On error, allow request (fail open for availability)
				log.Warn("rate limit check failed, allowing request", "scope", scope, "key", k, "error", err)
				return next(c)
			}

			if !result.Allowed {
				retryAfter := int64(math.Ceil(result.RetryAfter.Seconds()))
				c.Response().Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "rate_limit_exceeded",
					"message": "Too many requests for this app. Please wait before trying again.",
					"details": map[string]interface{}{
						"scope":               scope,
						"limit":               result.Limit,
						"retry_after_seconds": retryAfter,
					},
				})
			}

			return next(c)
		}
	}
}
