package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ngo-data-hub/internal/model"
	"github.com/iliyamo/ngo-data-hub/internal/service"
)

// Cookie names shared with the auth handlers.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// Authenticator verifies an access token against the session store.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (model.Identity, error)
}

// RequireAuth admits a request only when the access token cookie verifies
// and the session it names is still live.  The identity is attached to the
// context for RequireRole, RequirePermission and handlers.
func RequireAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ck, err := c.Cookie(AccessCookie)
			if err != nil || ck.Value == "" {
				return message(c, http.StatusUnauthorized, "Authentication required")
			}

			id, err := auth.Authenticate(c.Request().Context(), ck.Value)
			switch {
			case err == nil:
			case errors.Is(err, service.ErrTokenInvalid):
				return message(c, http.StatusUnauthorized, "Access token expired")
			case errors.Is(err, service.ErrSessionExpired):
				return message(c, http.StatusUnauthorized, "Session expired or revoked")
			default:
				log.Error().Err(err).Str("path", c.Path()).Msg("session liveness check failed")
				return message(c, http.StatusInternalServerError, "Internal server error")
			}

			WithIdentity(c, id)
			return next(c)
		}
	}
}

// OptionalAuth attaches the identity when the access cookie verifies and
// its session is live.  Any other request continues anonymously.
func OptionalAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ck, err := c.Cookie(AccessCookie)
			if err != nil || ck.Value == "" {
				return next(c)
			}
			id, err := auth.Authenticate(c.Request().Context(), ck.Value)
			switch {
			case err == nil:
				WithIdentity(c, id)
			case errors.Is(err, service.ErrTokenInvalid), errors.Is(err, service.ErrSessionExpired):
			default:
				log.Warn().Err(err).Str("path", c.Path()).Msg("optional session check failed")
			}
			return next(c)
		}
	}
}
