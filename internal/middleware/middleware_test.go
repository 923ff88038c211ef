package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ngo-data-hub/internal/config"
	"github.com/iliyamo/ngo-data-hub/internal/model"
	"github.com/iliyamo/ngo-data-hub/internal/permission"
	"github.com/iliyamo/ngo-data-hub/internal/service"
)

type stubAuth struct {
	id  model.Identity
	err error
}

func (s stubAuth) Authenticate(_ context.Context, raw string) (model.Identity, error) {
	if s.err != nil {
		return model.Identity{}, s.err
	}
	return s.id, nil
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bodyMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["message"]
}

func withAccess(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "tok"})
	return req
}

func TestRequireAuth(t *testing.T) {
	staff := model.Identity{ID: 7, Email: "s@x.org", Role: "Staff", SessionID: "sid"}
	cases := []struct {
		name   string
		auth   stubAuth
		cookie bool
		status int
		msg    string
	}{
		{"no cookie", stubAuth{id: staff}, false, http.StatusUnauthorized, "Authentication required"},
		{"bad token", stubAuth{err: service.ErrTokenInvalid}, true, http.StatusUnauthorized, "Access token expired"},
		{"revoked", stubAuth{err: service.ErrSessionExpired}, true, http.StatusUnauthorized, "Session expired or revoked"},
		{"store down", stubAuth{err: errors.New("connection refused")}, true, http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/p", ok, RequireAuth(tc.auth))
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tc.cookie {
				withAccess(req)
			}
			rec := do(e, req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.msg, bodyMessage(t, rec))
		})
	}

	t.Run("attaches identity", func(t *testing.T) {
		e := echo.New()
		var got model.Identity
		e.GET("/p", func(c echo.Context) error {
			got, _ = IdentityFrom(c)
			return c.NoContent(http.StatusNoContent)
		}, RequireAuth(stubAuth{id: staff}))
		rec := do(e, withAccess(httptest.NewRequest(http.MethodGet, "/p", nil)))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, staff, got)
	})
}

func TestOptionalAuth(t *testing.T) {
	staff := model.Identity{ID: 7, Email: "s@x.org", Role: "Staff", SessionID: "sid"}
	cases := []struct {
		name   string
		auth   stubAuth
		cookie bool
		want   bool
	}{
		{"no cookie", stubAuth{id: staff}, false, false},
		{"bad token", stubAuth{err: service.ErrTokenInvalid}, true, false},
		{"revoked", stubAuth{err: service.ErrSessionExpired}, true, false},
		{"store down", stubAuth{err: errors.New("connection refused")}, true, false},
		{"live session", stubAuth{id: staff}, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			var attached bool
			e.POST("/p", func(c echo.Context) error {
				_, attached = IdentityFrom(c)
				return c.NoContent(http.StatusNoContent)
			}, OptionalAuth(tc.auth))
			req := httptest.NewRequest(http.MethodPost, "/p", nil)
			if tc.cookie {
				withAccess(req)
			}
			rec := do(e, req)
			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, tc.want, attached)
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.PATCH("/approve", ok, RequireRole("Admin", "SuperAdmin"))
	e.PATCH("/approve-as", ok, RequireAuth(stubAuth{id: model.Identity{ID: 1, Role: "admin"}}), RequireRole("Admin", "SuperAdmin"))
	e.PATCH("/approve-ok", ok, RequireAuth(stubAuth{id: model.Identity{ID: 1, Role: "SuperAdmin"}}), RequireRole("Admin", "SuperAdmin"))

	rec := do(e, httptest.NewRequest(http.MethodPatch, "/approve", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", bodyMessage(t, rec))

	// exact match: "admin" is not "Admin"
	rec = do(e, withAccess(httptest.NewRequest(http.MethodPatch, "/approve-as", nil)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied", bodyMessage(t, rec))

	rec = do(e, withAccess(httptest.NewRequest(http.MethodPatch, "/approve-ok", nil)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	table, err := permission.Default()
	require.NoError(t, err)

	route := func(e *echo.Echo, path, role, perm string) {
		e.GET(path, ok, RequireAuth(stubAuth{id: model.Identity{ID: 1, Role: role}}), RequirePermission(table, perm))
	}
	e := echo.New()
	route(e, "/staff-read", "Staff", "students.read")
	route(e, "/staff-delete", "Staff", "students.delete")
	route(e, "/admin-delete", "Admin", "students.delete")
	route(e, "/super", "SuperAdmin", "anything.at_all")
	route(e, "/unknown", "Janitor", "students.read")
	e.GET("/anon", ok, RequirePermission(table, "students.read"))

	for path, want := range map[string]int{
		"/staff-read":   http.StatusOK,
		"/staff-delete": http.StatusForbidden,
		"/admin-delete": http.StatusOK,
		"/super":        http.StatusOK,
		"/unknown":      http.StatusForbidden,
		"/anon":         http.StatusUnauthorized,
	} {
		rec := do(e, withAccess(httptest.NewRequest(http.MethodGet, path, nil)))
		assert.Equal(t, want, rec.Code, path)
	}

	rec := do(e, withAccess(httptest.NewRequest(http.MethodGet, "/staff-delete", nil)))
	assert.Equal(t, "Insufficient permissions", bodyMessage(t, rec))
}

func csrfServer() *echo.Echo {
	e := echo.New()
	e.Use(CSRFGuard(false, DefaultCSRFExemptions))
	e.GET("/api/v1/csrf-token", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"csrfToken": c.Get(CSRFContextKey)})
	})
	e.POST("/api/v1/auth/login", ok)
	e.POST("/api/v1/auth/logout", ok)
	e.PUT("/api/v1/volunteers/:id", ok)
	e.DELETE("/api/v1/volunteers/:id", ok)
	return e
}

func TestCSRFGuard(t *testing.T) {
	e := csrfServer()

	rec := do(e, httptest.NewRequest(http.MethodGet, "/api/v1/csrf-token", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	token := body["csrfToken"]
	require.NotEmpty(t, token)

	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "_csrf" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	t.Run("missing token", func(t *testing.T) {
		rec := do(e, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("mismatched token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.AddCookie(cookie)
		req.Header.Set("X-CSRF-Token", "not-the-token")
		assert.Equal(t, http.StatusForbidden, do(e, req).Code)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.AddCookie(cookie)
		req.Header.Set("X-CSRF-Token", token)
		assert.Equal(t, http.StatusOK, do(e, req).Code)
	})

	t.Run("exemptions match method and pattern", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(e, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)).Code)
		assert.Equal(t, http.StatusOK, do(e, httptest.NewRequest(http.MethodPut, "/api/v1/volunteers/42", nil)).Code)
		assert.Equal(t, http.StatusForbidden, do(e, httptest.NewRequest(http.MethodDelete, "/api/v1/volunteers/42", nil)).Code)
	})
}

func TestCrossOrigin(t *testing.T) {
	mw, err := CrossOrigin("https://localhost:3000")
	require.NoError(t, err)
	e := echo.New()
	e.Use(mw)
	e.POST("/x", ok)

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, do(e, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Origin", "https://localhost:3000")
	assert.Equal(t, http.StatusOK, do(e, req).Code)

	// non-browser clients send neither header
	assert.Equal(t, http.StatusOK, do(e, httptest.NewRequest(http.MethodPost, "/x", nil)).Code)

	_, err = CrossOrigin("not a url")
	assert.Error(t, err)
}

func TestRequireHTTPS(t *testing.T) {
	e := echo.New()
	e.Use(RequireHTTPS(true))
	e.GET("/x", ok)

	rec := do(e, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "HTTPS is required", bodyMessage(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(echo.HeaderXForwardedProto, "https")
	assert.Equal(t, http.StatusOK, do(e, req).Code)

	dev := echo.New()
	dev.Use(RequireHTTPS(false))
	dev.GET("/x", ok)
	assert.Equal(t, http.StatusOK, do(dev, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}

func TestResponseCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rc := NewResponseCache(config.CacheConfig{
		Enabled: true,
		Methods: map[string]bool{http.MethodGet: true},
		TTL:     time.Minute,
		Prefix:  "test",
	}, rdb)
	require.NotNil(t, rc)

	calls := 0
	e := echo.New()
	e.GET("/students", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, []string{"ada"})
	}, rc.Read("students"))
	e.POST("/students", func(c echo.Context) error {
		return c.JSON(http.StatusCreated, echo.Map{"id": 1})
	}, rc.Invalidate("students"))
	e.POST("/fail", func(c echo.Context) error {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "no"})
	}, rc.Invalidate("students"))

	first := do(e, httptest.NewRequest(http.MethodGet, "/students", nil))
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := do(e, httptest.NewRequest(http.MethodGet, "/students", nil))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, first.Header().Get(echo.HeaderContentType), second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	do(e, httptest.NewRequest(http.MethodPost, "/fail", nil))
	assert.Equal(t, "HIT", do(e, httptest.NewRequest(http.MethodGet, "/students", nil)).Header().Get("X-Cache"))

	do(e, httptest.NewRequest(http.MethodPost, "/students", strings.NewReader("{}")))
	assert.Empty(t, mr.Keys())
	assert.Equal(t, "MISS", do(e, httptest.NewRequest(http.MethodGet, "/students", nil)).Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestResponseCache_replaysOnlyRepresentationHeaders(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	rc := NewResponseCache(config.CacheConfig{
		Enabled: true,
		Methods: map[string]bool{http.MethodGet: true},
		TTL:     time.Minute,
		Prefix:  "test",
	}, rdb)

	n := 0
	e := echo.New()
	e.GET("/students", func(c echo.Context) error {
		n++
		c.SetCookie(&http.Cookie{Name: "_csrf", Value: fmt.Sprintf("token-%d", n)})
		c.Response().Header().Set(echo.HeaderXRequestID, fmt.Sprintf("req-%d", n))
		return c.JSON(http.StatusOK, []string{"ada"})
	}, rc.Read("students"))

	first := do(e, httptest.NewRequest(http.MethodGet, "/students", nil))
	require.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := do(e, httptest.NewRequest(http.MethodGet, "/students", nil))
	require.Equal(t, "HIT", second.Header().Get("X-Cache"))

	assert.Empty(t, second.Header().Values("Set-Cookie"))
	assert.Empty(t, second.Header().Values(echo.HeaderXRequestID))
	assert.Equal(t, first.Header().Get(echo.HeaderContentType), second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, n)
}

func TestResponseCache_disabled(t *testing.T) {
	assert.Nil(t, NewResponseCache(config.CacheConfig{Enabled: false}, nil))

	var rc *ResponseCache
	e := echo.New()
	e.GET("/x", ok, rc.Read("students"), rc.Invalidate("students"))
	rec := do(e, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}
