package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mackenziemax/userhub/internal/config"
)

// NewRedis creates the Redis client used for the mail queue and the auth
// rate limiter. It parses the URL and pings until Redis answers.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := waitForPing(ctx, "redis", ping); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
