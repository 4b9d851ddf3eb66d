package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(c.Request().Context(), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HasRole reports whether the caller holds one of roles. Admins hold every
// role.
func HasRole(ctx context.Context, roles ...string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == RoleAdmin {
			return true
		}
		for _, required := range roles {
			if has == required {
				return true
			}
		}
	}
	return false
}

// PatientScope returns the only patient the caller may see. restricted is
// false for staff callers.
func PatientScope(ctx context.Context) (patientID int64, restricted bool) {
	if HasRole(ctx, StaffRoles...) {
		return 0, false
	}
	id, _ := PatientIDFromContext(ctx)
	return id, true
}

// CanAccessPatient reports whether the caller may read or write patientID.
func CanAccessPatient(ctx context.Context, patientID int64) bool {
	scope, restricted := PatientScope(ctx)
	return !restricted || (scope > 0 && scope == patientID)
}
