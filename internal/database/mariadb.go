// Package database provides connection setup for MariaDB and Redis plus
// schema migrations. Both connections are created once at startup and
// shared across the application via dependency injection.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// MariaDB driver -- imported for side effect of registering the driver.
	_ "github.com/go-sql-driver/mysql"

	"github.com/mackenziemax/userhub/internal/config"
)

// NewMariaDB opens the MariaDB pool that backs the users table and pings it
// until it answers.
func NewMariaDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}

	// Configure connection pool settings to prevent connection exhaustion
	// and stale connections under load.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := waitForPing(ctx, "mariadb", db.PingContext); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Ping retry settings. MariaDB and Redis may still be starting when the
// app container launches; retrying avoids crash-loop restarts.
const (
	pingAttempts   = 10
	pingTimeout    = 5 * time.Second
	maxPingBackoff = 30 * time.Second
)

// waitForPing calls ping with exponential backoff until it succeeds, the
// attempts run out or ctx is cancelled.
func waitForPing(ctx context.Context, name string, ping func(context.Context) error) error {
	backoff := time.Second
	var pingErr error

	for attempt := 1; attempt <= pingAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		pingErr = ping(attemptCtx)
		cancel()

		if pingErr == nil {
			return nil
		}
		if attempt == pingAttempts {
			break
		}

		slog.Warn(name+" not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", pingAttempts),
			slog.Duration("backoff", backoff),
			slog.Any("error", pingErr),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", name, ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxPingBackoff)
	}

	return fmt.Errorf("pinging %s after %d attempts: %w", name, pingAttempts, pingErr)
}
