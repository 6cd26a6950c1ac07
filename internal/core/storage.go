package core

import (
	"context"
	"fmt"

	"pictocore/internal/config"
	"pictocore/internal/infra/persistence/memory"
	"pictocore/internal/infra/persistence/postgres"
	"pictocore/internal/infra/persistence/sqlite"
	"pictocore/pkg/domain"
)

// OpenPersistentStore selects a backend from cfg. Every backend serves reads
// from the in-memory engine; sqlite and postgres write each commit through.
func OpenPersistentStore(ctx context.Context, cfg *config.Config, opts ...memory.Option) (domain.PersistentStore, error) {
	if cfg == nil {
		cfg = &config.Config{StorageDriver: config.StorageMemory}
	}
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return memory.NewStore(opts...), nil
	case config.StorageSQLite, "":
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.StorageDriver)
	}
}
