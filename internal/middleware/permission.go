package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PermissionChecker answers whether a role holds a permission string.
type PermissionChecker interface {
	Allows(role, permission string) bool
}

// RequirePermission admits callers whose role grants perm, directly, via
// the resource wildcard, or via the global wildcard.
func RequirePermission(table PermissionChecker, perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok || id.Role == "" {
				return message(c, http.StatusUnauthorized, "Unauthorized")
			}
			if !table.Allows(id.Role, perm) {
				return message(c, http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}
