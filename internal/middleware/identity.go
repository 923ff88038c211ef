package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ngo-data-hub/internal/model"
)

// identityKey is the echo context key holding the authenticated caller.
const identityKey = "identity"

// WithIdentity attaches id to the request.
func WithIdentity(c echo.Context, id model.Identity) { c.Set(identityKey, id) }

// IdentityFrom returns the caller set by RequireAuth.  ok is false on
// routes that are not behind RequireAuth.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok && id.ID != 0
}

// userID returns the caller id for log lines, or "guest".
func userID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return id.Email
	}
	return "guest"
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"message": msg})
}
