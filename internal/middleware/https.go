package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireHTTPS rejects plain-HTTP requests when enabled.  A TLS listener
// or an X-Forwarded-Proto of https from the fronting proxy both count.
func RequireHTTPS(enabled bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !enabled {
			return next
		}
		return func(c echo.Context) error {
			if c.IsTLS() || c.Request().Header.Get(echo.HeaderXForwardedProto) == "https" {
				return next(c)
			}
			return message(c, http.StatusForbidden, "HTTPS is required")
		}
	}
}
