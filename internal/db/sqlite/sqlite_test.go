package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-history/internal/db/dbtest"
	"github.com/justestif/go-spotify-history/internal/db/sqlite"
)

func TestRepositories(t *testing.T) {
	dbtest.Run(t, dbtest.NewSQLite(t))
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Migrate(ctx))
	require.NoError(t, conn.Migrate(ctx))
}

func TestListColumnsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	conn, err := sqlite.New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, conn.Migrate(ctx))
	track := dbtest.SampleTrack("t1", 1000)
	require.NoError(t, conn.Tracks().Upsert(ctx, track))
	conn.Close()

	conn, err = sqlite.New(ctx, path)
	require.NoError(t, err)
	defer conn.Close()

	got, err := conn.Tracks().Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"artistA", "artistB"}, got.ArtistIDs)
	assert.Equal(t, []string{"indie", "rock"}, got.Genres)
}
