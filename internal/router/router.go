// Package router wires middleware and routes onto an echo instance.
package router

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/ngo-data-hub/internal/config"
	"github.com/iliyamo/ngo-data-hub/internal/handler"
	"github.com/iliyamo/ngo-data-hub/internal/middleware"
	"github.com/iliyamo/ngo-data-hub/internal/model"
	"github.com/iliyamo/ngo-data-hub/internal/repository"
)

// AuthService is what both the auth handlers and RequireAuth need.
type AuthService interface {
	handler.Authenticator
	middleware.Authenticator
}

// Deps are the collaborators the routes are built from.
type Deps struct {
	Cfg         config.Config
	Auth        AuthService
	Users       handler.UserStore
	Records     handler.RecordStore
	Permissions middleware.PermissionChecker
	Cache       *middleware.ResponseCache // nil disables caching
	DB          handler.Pinger
	Logger      zerolog.Logger
}

// New builds the HTTP server.  Global middleware runs in this order:
// recover, request id, request log, security headers, CORS, HTTPS
// enforcement, cross-origin rejection, CSRF token check.  Per-route
// chains then run RequireAuth before any role or permission check.
// Logout only needs OptionalAuth so a repeated or stale logout still
// clears the cookies.
func New(d Deps) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	prod := d.Cfg.IsProduction()
	hsts := 0
	if prod {
		hsts = 31536000
	}

	crossOrigin, err := middleware.CrossOrigin(d.Cfg.CORSOrigin)
	if err != nil {
		return nil, err
	}

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:      "0",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         hsts,
		ReferrerPolicy:     "no-referrer",
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{d.Cfg.CORSOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAccept, "X-CSRF-Token"},
		AllowCredentials: true,
	}))
	e.Use(middleware.RequireHTTPS(prod))
	e.Use(crossOrigin)
	e.Use(middleware.CSRFGuard(prod, middleware.DefaultCSRFExemptions))

	e.GET("/healthz", handler.Health(d.DB))

	api := e.Group("/api/v1")
	requireAuth := middleware.RequireAuth(d.Auth)
	perm := func(p string) echo.MiddlewareFunc { return middleware.RequirePermission(d.Permissions, p) }

	a := handler.NewAuthHandler(d.Auth, prod, d.Cfg.AccessTTL(), d.Cfg.RefreshTTL())
	api.GET("/csrf-token", a.CSRFToken)
	auth := api.Group("/auth")
	auth.POST("/login", a.Login)
	auth.POST("/refresh-token", a.Refresh)
	auth.POST("/logout", a.Logout, middleware.OptionalAuth(d.Auth))
	auth.GET("/me", a.Me, requireAuth)

	u := handler.NewUsersHandler(d.Users, d.Cfg.BcryptCost)
	users := api.Group("/users")
	users.POST("", u.Create)
	users.GET("", u.List, requireAuth, perm("users.read"))
	users.GET("/:id", u.Get, requireAuth, perm("users.read"))
	users.PATCH("/:id/approve", u.Approve, requireAuth, middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin))

	for _, table := range repository.RecordTables() {
		h := handler.NewRecordsHandler(d.Records, table)
		g := api.Group("/" + table)
		g.GET("", h.List, requireAuth, perm(table+".read"), d.Cache.Read(table))
		g.GET("/:id", h.Get, requireAuth, perm(table+".read"), d.Cache.Read(table))
		g.POST("", h.Create, requireAuth, perm(table+".create"), d.Cache.Invalidate(table))
		g.PUT("/:id", h.Update, requireAuth, perm(table+".update"), d.Cache.Invalidate(table))
		g.DELETE("/:id", h.Delete, requireAuth, perm(table+".delete"), d.Cache.Invalidate(table))
	}

	return e, nil
}
