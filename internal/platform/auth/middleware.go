package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
	ClaimsKey   contextKey = "claims"
)

const (
	msgNoCredentials = "Authentication credentials were not provided."
	msgInvalidToken  = "Invalid token."
)

// TokenMiddleware authenticates "Authorization: Token <jwt>" headers.
// "Bearer" is accepted as well. Revoked tokens are rejected with 401.
func TokenMiddleware(issuer *TokenIssuer, revoked *TokenRevocationStore, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, msgNoCredentials)
			}
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !(strings.EqualFold(scheme, "token") || strings.EqualFold(scheme, "bearer")) {
				return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidToken)
			}

			claims, err := issuer.Parse(strings.TrimSpace(token))
			if err != nil || (revoked != nil && revoked.IsRevoked(claims.ID)) {
				return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidToken)
			}

			c.Set("username", claims.Username)
			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID())
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(UserIDKey).(int64)
	return id
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

// ClaimsFromContext returns the verified token claims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(ClaimsKey).(*Claims)
	return c
}
