package core

import (
	"context"
	"fmt"
	"os"

	"diagramcore/internal/config"
	"diagramcore/internal/infra/persistence/memory"
	"diagramcore/internal/infra/persistence/postgres"
	"diagramcore/internal/infra/persistence/sqlite"
	"diagramcore/internal/persistence"
)

// OpenDocumentStore selects a persistence backend using environment
// variables. Defaults to sqlite when unset.
//
//	DIAGRAMCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	DIAGRAMCORE_SQLITE_PATH: path to sqlite file (default ./diagramcore.db)
//	DIAGRAMCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenDocumentStore(ctx context.Context) (persistence.DocumentStore, error) {
	cfg := config.Persistence{
		Driver:      os.Getenv("DIAGRAMCORE_STORAGE_DRIVER"),
		SQLitePath:  os.Getenv("DIAGRAMCORE_SQLITE_PATH"),
		PostgresDSN: os.Getenv("DIAGRAMCORE_POSTGRES_DSN"),
	}
	if cfg.Driver == "" {
		cfg.Driver = string(persistence.DriverSQLite)
	}
	return OpenDocumentStoreFromConfig(ctx, cfg)
}

// OpenDocumentStoreFromConfig opens the persistence backend described by cfg.
func OpenDocumentStoreFromConfig(ctx context.Context, cfg config.Persistence) (persistence.DocumentStore, error) {
	switch persistence.Driver(cfg.Driver) {
	case persistence.DriverMemory:
		return memory.NewStore(), nil
	case persistence.DriverSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case persistence.DriverPostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
