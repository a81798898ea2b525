package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/YelzhanWeb/kitchen-sync/internal/config"
)

// NewClient connects and pings Redis. It returns nil when the server cannot
// be reached so callers run without the shared cache.
func NewClient(ctx context.Context, cfg config.RedisConfig) *goredis.Client {
	if !cfg.Enabled {
		return nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
