package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-history/internal/config"
	"github.com/justestif/go-spotify-history/internal/db"
)

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := OpenAndMigrate(ctx, config.Database{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "history.db"),
	})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.History.Latest(ctx)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Database{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}
