package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole admits callers whose role is exactly one of roles.  Matching
// is case-sensitive against the role stored on the user row.  It must run
// after RequireAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return message(c, http.StatusUnauthorized, "Unauthorized")
			}
			if !allowed[id.Role] {
				return message(c, http.StatusForbidden, "Access denied")
			}
			return next(c)
		}
	}
}
