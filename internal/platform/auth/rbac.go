package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const msgForbidden = "You do not have permission to perform this action."

// RequireRole lets the request through when the caller has one of roles.
// Admins always pass.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			has := RoleFromContext(c.Request().Context())
			if has == "admin" {
				return next(c)
			}
			for _, r := range roles {
				if has == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, msgForbidden)
		}
	}
}
