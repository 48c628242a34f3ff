package history

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-history/internal/db"
	"github.com/justestif/go-spotify-history/internal/db/dbtest"
)

const duration = 200000

func setup(t *testing.T) (*Log, *db.Store) {
	t.Helper()
	store := dbtest.NewSQLite(t)
	ctx := context.Background()
	require.NoError(t, store.Tracks.Upsert(ctx, dbtest.SampleTrack("T", duration)))
	require.NoError(t, store.Tracks.Upsert(ctx, dbtest.SampleTrack("U", duration)))
	return New(store.History, zerolog.Nop()), store
}

func obs(track string, ts int64) Observation {
	return Observation{TrackID: track, Timestamp: ts, DurationMs: duration}
}

func TestRecordIfNew_SamePlaythrough(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	res, err := l.RecordIfNew(ctx, obs("T", 1000))
	require.NoError(t, err)
	assert.True(t, res.Recorded)

	res, err = l.RecordIfNew(ctx, obs("T", 2000))
	require.NoError(t, err)
	assert.False(t, res.Recorded)
	assert.Equal(t, int64(1000), res.Event.PlayedAt)

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordIfNew_AfterPlaythrough(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	_, err := l.RecordIfNew(ctx, obs("T", 1000))
	require.NoError(t, err)

	res, err := l.RecordIfNew(ctx, obs("T", 1000+duration+1))
	require.NoError(t, err)
	assert.True(t, res.Recorded)

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecordIfNew_Boundary(t *testing.T) {
	tests := []struct {
		name     string
		delta    int64
		recorded bool
	}{
		{"same timestamp", 0, false},
		{"one ms short of duration", duration - 1, false},
		{"exactly duration", duration, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := setup(t)
			ctx := context.Background()

			_, err := l.RecordIfNew(ctx, obs("T", 5000))
			require.NoError(t, err)

			res, err := l.RecordIfNew(ctx, obs("T", 5000+tt.delta))
			require.NoError(t, err)
			assert.Equal(t, tt.recorded, res.Recorded)
		})
	}
}

func TestRecordIfNew_IdempotentWithinPlaythrough(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	recorded := 0
	for ts := int64(1000); ts < 1000+duration; ts += 60000 {
		res, err := l.RecordIfNew(ctx, obs("T", ts))
		require.NoError(t, err)
		if res.Recorded {
			recorded++
		}
	}
	assert.Equal(t, 1, recorded)
}

func TestRecordIfNew_DifferentTrack(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	_, err := l.RecordIfNew(ctx, obs("T", 1000))
	require.NoError(t, err)
	res, err := l.RecordIfNew(ctx, obs("U", 2000))
	require.NoError(t, err)
	assert.True(t, res.Recorded)
}

func TestRecordIfNew_OnlyLatestIsCompared(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	_, err := l.RecordIfNew(ctx, obs("T", 1000))
	require.NoError(t, err)
	_, err = l.RecordIfNew(ctx, obs("U", 2000))
	require.NoError(t, err)

	// T again, inside its first playthrough window, but U is now the latest.
	res, err := l.RecordIfNew(ctx, obs("T", 3000))
	require.NoError(t, err)
	assert.True(t, res.Recorded)
}

func TestRecordIfNew_EventFields(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()

	ts := int64(1718236800000) // 2024-06-13T00:00:00Z
	res, err := l.RecordIfNew(ctx, obs("T", ts))
	require.NoError(t, err)
	assert.NotZero(t, res.Event.ID)
	assert.Equal(t, "2024-06-13", res.Event.PlayedOn)

	latest, err := store.History.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Event, *latest)
}

func TestRecordIfNew_ConcurrentWriters(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.RecordIfNew(ctx, obs("T", int64(1000+i)))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIsDuplicate(t *testing.T) {
	latest := db.PlayEvent{TrackID: "T", PlayedAt: 10000}

	assert.True(t, IsDuplicate(latest, db.PlayEvent{TrackID: "T", PlayedAt: 9000}, 5000), "earlier timestamp within window")
	assert.False(t, IsDuplicate(latest, db.PlayEvent{TrackID: "T", PlayedAt: 5000}, 5000))
	assert.False(t, IsDuplicate(latest, db.PlayEvent{TrackID: "X", PlayedAt: 10000}, 5000))
}

func TestPage(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	for i, track := range []string{"T", "U", "T"} {
		_, err := l.RecordIfNew(ctx, obs(track, int64(i)*1000000))
		require.NoError(t, err)
	}

	page, err := l.Page(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2000000), page[0].PlayedAt)
	assert.Equal(t, "U", page[1].TrackID)
}
