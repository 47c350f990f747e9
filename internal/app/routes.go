package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mackenziemax/userhub/internal/middleware"
	"github.com/mackenziemax/userhub/internal/password"
	"github.com/mackenziemax/userhub/internal/plugins/auth"
	"github.com/mackenziemax/userhub/internal/plugins/mail"
	"github.com/mackenziemax/userhub/internal/plugins/users"
	"github.com/mackenziemax/userhub/internal/token"
)

// healthTimeout bounds each dependency check in /healthz.
const healthTimeout = 2 * time.Second

// RegisterRoutes builds every plugin and mounts its routes. This is the
// single place where the dependency graph is assembled:
//
//	users.Service  <- users.Repository (MariaDB), password.Hasher
//	auth.Service   <- users.Service, password.Hasher, token.Codec, mail.Queue
//	auth.Guard     <- auth.Service, users.Service
func (a *App) RegisterRoutes() error {
	e := a.Echo

	e.GET("/healthz", a.healthz)

	// --- Shared infrastructure ---
	hasher := password.NewHasher(a.Config.Auth.HashConcurrency)
	codec, err := token.NewCodec([]byte(a.Config.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating token codec: %w", err)
	}

	queue := mail.NewQueue(a.Redis, a.Config.Mail.QueueKey)
	var transport mail.Transport = mail.LogTransport{}
	if a.Config.Mail.Enabled() {
		transport = mail.NewSMTPTransport(a.Config.Mail)
	} else {
		slog.Warn("SMTP_HOST not set; outgoing mail will only be logged")
	}
	a.MailWorker = mail.NewWorker(queue, transport)

	limiter := middleware.NewRateLimiter(a.Redis)

	// --- users plugin ---
	userService := users.NewService(users.NewRepository(a.DB), hasher)
	userHandler := users.NewHandler(userService)

	// --- auth plugin ---
	authService := auth.NewService(userService, hasher, codec, queue, auth.Config{
		AccessTokenTTL: a.Config.Auth.AccessTokenTTL,
		ResetTokenTTL:  a.Config.Auth.ResetTokenTTL,
		BaseURL:        a.Config.BaseURL,
	})
	guard := auth.NewGuard(authService, userService)
	auth.RegisterRoutes(e, auth.NewHandler(authService), guard, limiter)

	users.RegisterRoutes(e, userHandler, auth.RequireAuth(guard), auth.RequireRoles)

	return nil
}

// healthz reports whether MariaDB and Redis answer. Used by container
// health checks; returns 503 when either dependency is down.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	checks := map[string]string{"database": "ok", "redis": "ok"}
	status := http.StatusOK

	if err := a.DB.PingContext(ctx); err != nil {
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
		slog.Warn("health check: database unavailable", slog.Any("error", err))
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = "unavailable"
		status = http.StatusServiceUnavailable
		slog.Warn("health check: redis unavailable", slog.Any("error", err))
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	return c.JSON(status, map[string]any{"status": overall, "checks": checks})
}
