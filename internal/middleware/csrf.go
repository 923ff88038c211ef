package middleware

import (
	"net/http"

	"filippo.io/csrf"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// CSRFContextKey is where the echo context holds the current CSRF token.
const CSRFContextKey = "csrf"

// CSRFExemption names one route that skips token validation.  Pattern is
// the echo route pattern, not the request path, so /volunteers/:id covers
// every id and nothing else.
type CSRFExemption struct {
	Method  string
	Pattern string
}

// DefaultCSRFExemptions are the routes reachable before a token can be
// fetched (login, refresh) and the multipart upload routes.
var DefaultCSRFExemptions = []CSRFExemption{
	{http.MethodPost, "/api/v1/auth/login"},
	{http.MethodPost, "/api/v1/auth/refresh-token"},
	{http.MethodPost, "/api/v1/volunteers"},
	{http.MethodPut, "/api/v1/volunteers/:id"},
	{http.MethodPost, "/api/v1/board_members"},
	{http.MethodPut, "/api/v1/board_members/:id"},
}

// CSRFGuard returns a double-submit token check.  The token lives in an
// HttpOnly cookie and must be echoed in the X-CSRF-Token header on every
// state-changing request.  Safe methods pass and get a token issued.
func CSRFGuard(secure bool, exempt []CSRFExemption) echo.MiddlewareFunc {
	skip := make(map[CSRFExemption]bool, len(exempt))
	for _, e := range exempt {
		skip[e] = true
	}
	return echomw.CSRFWithConfig(echomw.CSRFConfig{
		Skipper: func(c echo.Context) bool {
			return skip[CSRFExemption{c.Request().Method, c.Path()}]
		},
		TokenLookup:    "header:X-CSRF-Token",
		ContextKey:     CSRFContextKey,
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   secure,
		CookieSameSite: http.SameSiteLaxMode,
		ErrorHandler: func(err error, c echo.Context) error {
			return message(c, http.StatusForbidden, "Invalid CSRF token")
		},
	})
}

// CrossOrigin rejects state-changing requests that the browser marks as
// cross-site, unless they come from one of the trusted origins.
func CrossOrigin(trusted ...string) (echo.MiddlewareFunc, error) {
	p := csrf.New()
	for _, o := range trusted {
		if o == "" {
			continue
		}
		if err := p.AddTrustedOrigin(o); err != nil {
			return nil, err
		}
	}
	return echo.WrapMiddleware(p.Handler), nil
}
