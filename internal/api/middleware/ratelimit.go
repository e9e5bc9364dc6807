package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clientcheck/trust-system/internal/api/metrics"
	"github.com/clientcheck/trust-system/internal/core/domain"
	"github.com/clientcheck/trust-system/internal/core/ports"
)

// RateLimit guards a route with the given action type. The actor comes from
// the auth claims, so Auth must run first. Admission consumes quota: a 429
// response has already counted against the window.
func RateLimit(limiter ports.RateLimiter, action domain.ActionType) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := domain.Actor{}
			actor.UserID, _ = c.Get("user_id").(int64)
			if actor.UserID == 0 {
				actor.ExternalID, _ = c.Get("external_id").(int64)
			}

			check, err := limiter.Check(c.Request().Context(), ports.RateLimitRequest{
				Actor:      actor,
				ActionType: action,
			})
			if err != nil {
				if errors.Is(err, domain.ErrStoreUnavailable) && check != nil {
					// Fail mode already decided the verdict.
					metrics.RateLimitDecisionsTotal.WithLabelValues(string(action), "error").Inc()
					if check.Allowed {
						return next(c)
					}
					return echo.NewHTTPError(http.StatusServiceUnavailable, "temporarily unavailable")
				}
				return err
			}

			if !check.Allowed {
				metrics.RateLimitDecisionsTotal.WithLabelValues(string(action), "denied").Inc()
				retryAfter := int(time.Until(check.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":    "rate limit exceeded",
					"reset_at": check.ResetAt.UTC().Format(time.RFC3339),
				})
			}

			metrics.RateLimitDecisionsTotal.WithLabelValues(string(action), "allowed").Inc()
			return next(c)
		}
	}
}
