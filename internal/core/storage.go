package core

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"eavcore/internal/infra/persistence/memory"
	"eavcore/internal/infra/persistence/postgres"
	"eavcore/internal/infra/persistence/sqlite"
	"eavcore/pkg/domain"
)

// StorageDriver identifies a value store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StoreConfig selects and configures a value store.
type StoreConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenValueStore opens the configured store. An empty driver selects memory.
func OpenValueStore(ctx context.Context, cfg StoreConfig) (domain.ValueStore, error) {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(string(cfg.Driver))))
	if driver == "" {
		driver = StorageMemory
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		s, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoragePostgres:
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Newf("unknown storage driver %q", cfg.Driver)
	}
}
