package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequireRole_Allowed(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, []string{"physician"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := RequireRole("physician", "nurse")
	h := mw(handler)
	err := h(c)

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, []string{"patient"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := RequireRole("physician", "nurse")
	h := mw(handler)
	err := h(c)

	if err == nil {
		t.Error("expected error for unauthorized role")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, []string{"admin"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := RequireRole("physician")
	h := mw(handler)
	err := h(c)

	if err != nil {
		t.Error("admin should bypass role checks")
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		uid := UserIDFromContext(c.Request().Context())
		roles := RolesFromContext(c.Request().Context())
		if uid != "dev-user" {
			t.Errorf("expected dev-user, got %s", uid)
		}
		if len(roles) != 1 || roles[0] != "admin" {
			t.Errorf("expected [admin] roles, got %v", roles)
		}
		return c.String(http.StatusOK, "ok")
	}

	mw := DevAuthMiddleware(JWTConfig{})
	h := mw(handler)
	err := h(c)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestUserIDFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserIDKey, "user-123")
	uid := UserIDFromContext(ctx)
	if uid != "user-123" {
		t.Errorf("expected user-123, got %s", uid)
	}

	empty := UserIDFromContext(context.Background())
	if empty != "" {
		t.Errorf("expected empty string, got %s", empty)
	}
}

func TestPatientScope(t *testing.T) {
	tests := []struct {
		name       string
		roles      []string
		patientID  int64
		restricted bool
		target     int64
		allowed    bool
	}{
		{"physician reads anyone", []string{RolePhysician}, 0, false, 9, true},
		{"nurse reads anyone", []string{RoleNurse}, 0, false, 9, true},
		{"admin reads anyone", []string{RoleAdmin}, 0, false, 9, true},
		{"patient reads self", []string{RolePatient}, 9, true, 9, true},
		{"patient denied other", []string{RolePatient}, 9, true, 10, false},
		{"patient without binding", []string{RolePatient}, 0, true, 9, false},
		{"no roles", nil, 0, true, 9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithIdentity(context.Background(), "u", tt.roles, tt.patientID)
			_, restricted := PatientScope(ctx)
			if restricted != tt.restricted {
				t.Errorf("expected restricted=%v, got %v", tt.restricted, restricted)
			}
			if got := CanAccessPatient(ctx, tt.target); got != tt.allowed {
				t.Errorf("expected allowed=%v, got %v", tt.allowed, got)
			}
		})
	}
}

func TestHasRole(t *testing.T) {
	ctx := WithIdentity(context.Background(), "u", []string{RoleNurse}, 0)
	if !HasRole(ctx, StaffRoles...) {
		t.Error("nurse is staff")
	}
	if HasRole(ctx, RoleAdmin) {
		t.Error("nurse is not admin")
	}
	if HasRole(context.Background(), RolePatient) {
		t.Error("anonymous context holds no roles")
	}
}
