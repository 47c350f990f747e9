package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mackenziemax/userhub/internal/middleware"
)

// RegisterRoutes sets up the /auth endpoints. Credential endpoints are
// public and rate-limited per IP: 10 attempts per minute for login and
// reset, 5 for register and forget. /auth/me requires a bearer token.
func RegisterRoutes(e *echo.Echo, h *Handler, g *Guard, limiter *middleware.RateLimiter) {
	a := e.Group("/auth")

	a.POST("/login", h.Login, limiter.Limit("login", 10, time.Minute))
	a.POST("/register", h.Register, limiter.Limit("register", 5, time.Minute))
	a.POST("/forget", h.Forget, limiter.Limit("forget", 5, time.Minute))
	a.POST("/reset", h.Reset, limiter.Limit("reset", 10, time.Minute))

	a.POST("/me", h.Me, RequireAuth(g))
}
