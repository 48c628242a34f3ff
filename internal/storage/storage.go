// Package storage opens the configured database backend.
package storage

import (
	"context"
	"fmt"

	"github.com/justestif/go-spotify-history/internal/config"
	"github.com/justestif/go-spotify-history/internal/db"
	"github.com/justestif/go-spotify-history/internal/db/postgres"
	"github.com/justestif/go-spotify-history/internal/db/sqlite"
)

// Open connects to the backend named by cfg.Driver and returns its repositories.
// The schema is not created; call Store.Migrate for that.
func Open(ctx context.Context, cfg config.Database) (*db.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		conn, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return conn.Store(), nil
	case config.DriverSQLite:
		conn, err := sqlite.New(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite %s: %w", cfg.Path, err)
		}
		return conn.Store(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// OpenAndMigrate opens the backend and ensures its schema exists.
func OpenAndMigrate(ctx context.Context, cfg config.Database) (*db.Store, error) {
	store, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return store, nil
}
