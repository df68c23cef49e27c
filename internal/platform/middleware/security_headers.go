package middleware

import (
	"github.com/labstack/echo/v4"
)

// apiHeaders are set on every sandbox response. Payloads carry patient data,
// so nothing may be cached or framed.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders writes apiHeaders, and marks responses to token-bearing
// requests as varying by Authorization since lists are filtered per caller.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range apiHeaders {
				h.Set(kv[0], kv[1])
			}
			if c.Request().Header.Get(echo.HeaderAuthorization) != "" {
				h.Add(echo.HeaderVary, echo.HeaderAuthorization)
			}
			return next(c)
		}
	}
}
