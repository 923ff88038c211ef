package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ngo-data-hub/internal/middleware"
	"github.com/iliyamo/ngo-data-hub/internal/service"
)

// Authenticator is the part of service.AuthService the auth endpoints use.
type Authenticator interface {
	Login(ctx context.Context, email, password string, client service.ClientInfo) (service.LoginResult, error)
	Refresh(ctx context.Context, raw string) (service.RefreshResult, error)
	Logout(ctx context.Context, sessionID string) error
	LockDuration() time.Duration
}

// AuthHandler serves login, refresh, logout, the current identity and the
// CSRF token endpoint.  Tokens travel only in HttpOnly cookies.
type AuthHandler struct {
	Auth       Authenticator
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewAuthHandler(auth Authenticator, secure bool, accessTTL, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{Auth: auth, Secure: secure, AccessTTL: accessTTL, RefreshTTL: refreshTTL}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func msg(c echo.Context, status int, m string) error {
	return c.JSON(status, echo.Map{"message": m})
}

func internalError(c echo.Context, err error, what string) error {
	log.Error().Err(err).Str("path", c.Path()).Msg(what)
	return msg(c, http.StatusInternalServerError, "Internal server error")
}

func (h *AuthHandler) setCookie(c echo.Context, name, value string, exp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(time.Until(exp).Seconds()),
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clientInfo captures the caller's address and user agent for audit.  The
// first X-Forwarded-For hop wins when the app sits behind a proxy.
func clientInfo(c echo.Context) service.ClientInfo {
	r := c.Request()
	ip := c.RealIP()
	if xff := r.Header.Get(echo.HeaderXForwardedFor); xff != "" {
		ip = strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	device := r.UserAgent()
	if device == "" {
		device = "Unknown"
	}
	return service.ClientInfo{IP: ip, Device: device}
}

// Login: verify credentials, open a session, set both cookies.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return msg(c, http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return msg(c, http.StatusBadRequest, "Email and password are required")
	}

	res, err := h.Auth.Login(c.Request().Context(), req.Email, req.Password, clientInfo(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLockoutTriggered):
			minutes := int(h.Auth.LockDuration().Round(time.Minute) / time.Minute)
			return msg(c, http.StatusUnauthorized, fmt.Sprintf("Too many failed attempts. Account locked for %d minutes.", minutes))
		case errors.Is(err, service.ErrAccountLocked):
			return msg(c, http.StatusForbidden, "Account locked. Try again later.")
		case errors.Is(err, service.ErrAccountUnavailable):
			return msg(c, http.StatusForbidden, "Account pending admin approval or invalid credentials")
		case errors.Is(err, service.ErrInvalidCredentials):
			return msg(c, http.StatusUnauthorized, "Invalid credentials")
		default:
			return internalError(c, err, "login failed")
		}
	}

	h.setCookie(c, middleware.AccessCookie, res.Access.Token, res.Access.Exp)
	h.setCookie(c, middleware.RefreshCookie, res.Refresh.Token, res.Refresh.Exp)
	return c.JSON(http.StatusOK, echo.Map{
		"user":    res.User.Profile(),
		"message": "Login successful",
	})
}

// Refresh: exchange the refresh cookie for a new access cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var raw string
	if ck, err := c.Cookie(middleware.RefreshCookie); err == nil {
		raw = ck.Value
	}

	res, err := h.Auth.Refresh(c.Request().Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshMissing):
			return msg(c, http.StatusUnauthorized, "Refresh token missing")
		case errors.Is(err, service.ErrTokenInvalid):
			return msg(c, http.StatusForbidden, "Invalid refresh token")
		case errors.Is(err, service.ErrSessionExpired):
			return msg(c, http.StatusForbidden, "Session expired")
		default:
			return internalError(c, err, "refresh failed")
		}
	}

	h.setCookie(c, middleware.AccessCookie, res.Access.Token, res.Access.Exp)
	if res.Refresh != nil {
		h.setCookie(c, middleware.RefreshCookie, res.Refresh.Token, res.Refresh.Exp)
	}
	return msg(c, http.StatusOK, "Access token refreshed")
}

// Logout deletes the caller's session and clears both cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	if id, ok := middleware.IdentityFrom(c); ok {
		if err := h.Auth.Logout(c.Request().Context(), id.SessionID); err != nil {
			return internalError(c, err, "logout failed")
		}
	}
	h.clearCookie(c, middleware.AccessCookie)
	h.clearCookie(c, middleware.RefreshCookie)
	return msg(c, http.StatusOK, "Logged out successfully")
}

// Me returns the authenticated identity.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return msg(c, http.StatusUnauthorized, "Unauthorized")
	}
	return c.JSON(http.StatusOK, echo.Map{"user": echo.Map{
		"id":    id.ID,
		"email": id.Email,
		"role":  strings.ToLower(id.Role),
	}})
}

// CSRFToken hands the SPA the token issued by the CSRF guard.
func (h *AuthHandler) CSRFToken(c echo.Context) error {
	tok, _ := c.Get(middleware.CSRFContextKey).(string)
	return c.JSON(http.StatusOK, echo.Map{"csrfToken": tok})
}
