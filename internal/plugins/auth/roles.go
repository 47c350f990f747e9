package auth

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/mackenziemax/userhub/internal/apperror"
	"github.com/mackenziemax/userhub/internal/plugins/users"
)

// Authorize reports whether user holds one of the required roles. An empty
// requirement allows any authenticated user; a nil user is always denied.
func Authorize(user *users.User, required []users.Role) bool {
	if user == nil {
		return false
	}
	if len(required) == 0 {
		return true
	}
	return user.HasRole(required...)
}

// RequireRoles returns middleware that allows the request only when the
// user attached by RequireAuth holds one of roles. It must be mounted after
// RequireAuth.
func RequireRoles(roles ...users.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := GetUser(c)
			if !Authorize(user, roles) {
				attrs := []any{slog.String("path", c.Path())}
				if user != nil {
					attrs = append(attrs, slog.Int64("user_id", user.ID), slog.String("role", user.Role.String()))
				}
				slog.Warn("access denied by role check", attrs...)
				return apperror.NewForbidden("you do not have permission to access this resource")
			}
			return next(c)
		}
	}
}
