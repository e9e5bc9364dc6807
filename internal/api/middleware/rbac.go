package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

// RBAC restricts a route to the given roles. The role claim is set by the
// Auth middleware; a missing or unknown role is rejected. Denials surface as
// domain.ErrUnauthorized so the central error handler renders them with the
// same generic envelope as every other authorization failure.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if _, ok := allowed[role]; !ok {
				return domain.ErrUnauthorized
			}
			return next(c)
		}
	}
}
