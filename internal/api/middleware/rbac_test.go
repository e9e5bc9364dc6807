package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

func invokeRBAC(t *testing.T, role string, allowed ...string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if role != "" {
		c.Set("role", role)
	}

	handler := RBAC(allowed...)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return handler(c)
}

func TestRBAC_AllowedRole(t *testing.T) {
	if err := invokeRBAC(t, "admin", "admin", "manager"); err != nil {
		t.Errorf("allowed role rejected: %v", err)
	}
}

func TestRBAC_DeniedRole(t *testing.T) {
	err := invokeRBAC(t, "user", "admin", "manager")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRBAC_MissingRole(t *testing.T) {
	err := invokeRBAC(t, "", "admin")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
