package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatwatch/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxUsername = "username"
)

// JWTAuth validates a Bearer access token and stores the user id (uint64),
// role and username in the request context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			uid, _ := claims.UserID()
			c.Set(CtxUserID, uid)
			c.Set(CtxRole, claims.Role)
			c.Set(CtxUsername, claims.Username)
			return next(c)
		}
	}
}

// UserID returns the authenticated user id, or 0.
func UserID(c echo.Context) uint64 {
	id, _ := c.Get(CtxUserID).(uint64)
	return id
}

// Role returns the authenticated role, or "".
func Role(c echo.Context) string {
	r, _ := c.Get(CtxRole).(string)
	return r
}
