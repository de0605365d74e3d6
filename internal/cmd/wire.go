package cmd

import (
	"context"
	"fmt"

	"github.com/yusheng929/steam-plugin/internal/config"
	"github.com/yusheng929/steam-plugin/internal/steamapi"
	"github.com/yusheng929/steam-plugin/internal/storage"
	"go.uber.org/zap"
)

// openStore connects the shared store named by cfg. The returned func
// releases it.
func openStore(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (storage.Store, func(), error) {
	if cfg.UseMemoryStore() {
		log.Warn("Using in-process store, usage and blocklist are not shared between processes")
		return storage.NewMemoryStore(), func() {}, nil
	}

	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, nil, err
	}

	client, err := storage.Connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	log.Info("Connected to redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return storage.NewRedisStore(client), func() {
		if err := client.Close(); err != nil {
			log.Warn("Failed to close redis client", zap.Error(err))
		}
	}, nil
}

// newClient builds the key-rotating client on top of the configured store.
func newClient(ctx context.Context, cfg *config.Config, log *zap.Logger) (*steamapi.Client, func(), error) {
	opts, err := cfg.Steam.SteamOptions()
	if err != nil {
		return nil, nil, err
	}

	store, release, err := openStore(ctx, cfg.Redis, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	client, err := steamapi.New(opts, store, log)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to create steam client: %w", err)
	}

	log.Info("Steam client ready",
		zap.Int("keys", len(opts.Keys)),
		zap.Int("max_retry", client.MaxRetry()),
		zap.String("policy", string(opts.Policy)),
		zap.String("base", opts.ProviderBase()))

	return client, func() {
		client.Close()
		release()
	}, nil
}
