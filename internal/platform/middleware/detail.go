package middleware

import (
	"github.com/labstack/echo/v4"
)

// ServerErrorMessage is the detail of every 500 the sandbox sends.
const ServerErrorMessage = "A server error occurred."

// Detail writes a {"detail": msg} body, the shape the hospital API uses for
// errors that are not tied to a field.
func Detail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"detail": msg})
}

// ErrorHandler renders echo errors as Detail bodies so every failure the
// sandbox produces has the same shape as the real API.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, msg := 500, ServerErrorMessage
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if c.Request().Method == "HEAD" {
		_ = c.NoContent(status)
		return
	}
	_ = Detail(c, status, msg)
}
