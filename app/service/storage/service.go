package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"weatherbot/app/config"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
)

// New picks redis when an address is configured and the JSON lines file
// otherwise.
func New(di *do.Injector) (Store, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if cfg.Storage.Redis.Addr == "" {
		store, err := NewFileStore(cfg.Storage.Path, cfg.Storage.TokenTTL)
		if err != nil {
			return nil, err
		}

		slog.Info("Using file storage", "path", cfg.Storage.Path)
		return store, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(do.MustInvoke[context.Context](di), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("Using redis storage", "addr", cfg.Storage.Redis.Addr)

	return NewRedisStore(client, cfg.Storage.TokenTTL), nil
}
