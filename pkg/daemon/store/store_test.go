package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenonby/directory-getinfo/pkg/daemon/store"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func snapshot(id string, ts time.Time, rows ...types.SnapshotRow) *types.Snapshot {
	return &types.Snapshot{
		SnapshotHeader: types.SnapshotHeader{ID: id, Timestamp: ts, Rows: len(rows)},
		Entries:        rows,
	}
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSaveSnapshot_History(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, snapshot("one", base,
		types.SnapshotRow{Path: "/a", Stats: types.NewStats(1, 2, 300)},
		types.SnapshotRow{Path: "/a/b", Stats: types.NewStats(0, 1, 100)},
	)))
	require.NoError(t, s.SaveSnapshot(ctx, snapshot("two", base.Add(time.Hour),
		types.SnapshotRow{Path: "/a", Stats: types.NewStats(1, 3, 900)},
	)))

	hist, err := s.StatsHistory(ctx, "/a")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, base, hist[0].Timestamp)
	assert.Equal(t, types.NewStats(1, 2, 300), hist[0].Stats)
	assert.Equal(t, uint64(900), types.Value(hist[1].Stats.TotalSize))

	hist, err = s.StatsHistory(ctx, "/a/b")
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	// "/a" must not match rows of "/ab"
	hist, err = s.StatsHistory(ctx, "/ab")
	require.NoError(t, err)
	assert.Empty(t, hist)

	headers, err := s.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, "one", headers[0].ID)
	assert.Equal(t, 2, headers[0].Rows)
}

func TestSaveSnapshot_DuplicateTimestamp(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, snapshot("one", base)))
	err := s.SaveSnapshot(ctx, snapshot("dup", base, types.SnapshotRow{Path: "/x", Stats: types.NewStats(0, 0, 1)}))
	assert.ErrorIs(t, err, store.ErrSnapshotExists)

	hist, err := s.StatsHistory(ctx, "/x")
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestSaveSnapshot_CancelledRollsBack(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.SaveSnapshot(ctx, snapshot("gone", base, types.SnapshotRow{Path: "/a", Stats: types.NewStats(0, 1, 1)}))
	assert.ErrorIs(t, err, context.Canceled)

	headers, err := s.Snapshots(context.Background())
	require.NoError(t, err)
	assert.Empty(t, headers)
	hist, err := s.StatsHistory(context.Background(), "/a")
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestDeleteSnapshot(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, snapshot("keep", base, types.SnapshotRow{Path: "/a", Stats: types.NewStats(0, 1, 1)})))
	require.NoError(t, s.SaveSnapshot(ctx, snapshot("drop", base.Add(time.Minute), types.SnapshotRow{Path: "/a", Stats: types.NewStats(0, 1, 2)})))

	require.NoError(t, s.DeleteSnapshot(ctx, "drop"))
	hist, err := s.StatsHistory(ctx, "/a")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, uint64(1), types.Value(hist[0].Stats.TotalSize))

	assert.ErrorIs(t, s.DeleteSnapshot(ctx, "drop"), store.ErrSnapshotNotFound)
}

func TestOverrides_RoundTrip(t *testing.T) {
	s := openStore(t)

	require.NoError(t, s.SaveOverrides(map[string]bool{"/a": false, "/a/b": true}))
	got, err := s.LoadOverrides()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"/a": false, "/a/b": true}, got)

	require.NoError(t, s.SaveOverrides(map[string]bool{"/c": false}))
	got, err = s.LoadOverrides()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"/c": false}, got)
}

func TestSchema_StampedOnOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir)
	require.NoError(t, err)

	schema := s.GetSchema()
	require.NotNil(t, schema)
	assert.Equal(t, store.CurrentSchemaVersion, schema.Version)

	require.NoError(t, s.SetSchema(&store.Schema{Version: store.CurrentSchemaVersion + 1}))
	require.NoError(t, s.Close())

	_, err = store.Open(dir)
	assert.ErrorIs(t, err, store.ErrSchemaTooNew)
}
