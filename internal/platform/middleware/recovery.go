package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery converts a panicking sandbox route into the same DRF 500 the real
// API sends, so the console classifies it as a server error. The log line
// carries the route pattern and the signed-in username next to the stack.
//
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if perr, ok := r.(error); ok && errors.Is(perr, http.ErrAbortHandler) {
					panic(r)
				}

				ev := logger.Error()
				if perr, ok := r.(error); ok {
					ev = ev.Err(perr)
				} else {
					ev = ev.Interface("panic", r)
				}
				rid, _ := c.Get("request_id").(string)
				user, _ := c.Get("username").(string)
				ev.Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Str("username", user).
					Bool("committed", c.Response().Committed).
					Bytes("stack", debug.Stack()).
					Msg("sandbox handler panicked")

				err = echo.NewHTTPError(http.StatusInternalServerError, ServerErrorMessage)
			}()
			return next(c)
		}
	}
}
