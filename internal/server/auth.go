package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mrnjifanda/jifijs-sub000/internal/audit"
)

// Identity headers set by the upstream authentication layer.
const (
	UserIDHeader    = "X-User-ID"
	SessionIDHeader = "X-Session-ID"
)

// IdentityMiddleware surfaces the upstream-authenticated principal and
// session into the request context so captured audit entries can reference
// them. Authentication itself happens upstream; absent headers simply leave
// the entry anonymous.
func IdentityMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if user := c.Request().Header.Get(UserIDHeader); user != "" {
				audit.SetUser(c, user)
			}
			if session := c.Request().Header.Get(SessionIDHeader); session != "" {
				audit.SetSession(c, session)
			}
			return next(c)
		}
	}
}

// AuthMiddleware validates the master key on guarded routes.
func AuthMiddleware(masterKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if masterKey == "" {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return authError(c, "missing authorization header")
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				return authError(c, "invalid authorization header format, expected 'Bearer <token>'")
			}

			if strings.TrimPrefix(authHeader, prefix) != masterKey {
				return authError(c, "invalid master key")
			}

			return next(c)
		}
	}
}

func authError(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "authentication_error",
			"message": message,
		},
	})
}
