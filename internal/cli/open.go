package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pictocore/internal/blob"
	"pictocore/internal/config"
	"pictocore/internal/core"
)

// ConfigOpener returns an Opener wired from cfg: the configured record store
// and blob backend, a zap logger at cfg.LogLevel and the seed file, if any.
func ConfigOpener(cfg *config.Config) Opener {
	return func(ctx context.Context) (*core.Service, func() error, error) {
		logger, err := NewLogger(cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
		store, err := core.OpenPersistentStore(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		blobs, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("open blob store: %w", err)
		}
		opts := []core.Option{
			core.WithLogger(core.NewZapLogger(logger)),
			core.WithBlobStore(blobs),
			core.WithDefaultLocale(cfg.DefaultLocale),
		}
		if cfg.SeedFile != "" {
			data, err := core.LoadSeedFile(cfg.SeedFile)
			if err != nil {
				_ = store.Close()
				return nil, nil, err
			}
			opts = append(opts, core.WithSeed(data.Func()))
		}
		svc := core.NewService(store, opts...)
		release := func() error {
			// Sync fails on non-syncable stderr on some platforms.
			_ = logger.Sync()
			return svc.Close()
		}
		return svc, release, nil
	}
}

// NewLogger builds a production zap logger at level.
func NewLogger(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
