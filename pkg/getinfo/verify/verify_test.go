package verify_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/verify"
)

func createTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"top.txt":      "12345",
		"a/one.go":     "1234567890",
		"a/b/two.md":   "12",
		"c/three.json": "{}",
	}
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	return root
}

func TestWalk_CountsRegularFiles(t *testing.T) {
	root := createTestTree(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "a"), filepath.Join(root, "link")))

	totals, err := verify.Walk(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, types.NewStats(3, 4, 19), totals.Stats())
	assert.Equal(t, uint64(4), totals.Dirs)
	assert.Empty(t, totals.Errors)
}

func TestWalk_SkipExcludesSubtree(t *testing.T) {
	root := createTestTree(t)
	skipped := filepath.Join(root, "a")

	totals, err := verify.Walk(context.Background(), root, func(p string) bool { return p == skipped })
	require.NoError(t, err)
	// the skipped directory still counts as a subdirectory of root
	assert.Equal(t, types.NewStats(3, 2, 7), totals.Stats())
}

func TestWalk_Cancelled(t *testing.T) {
	root := createTestTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := verify.Walk(ctx, root, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompare(t *testing.T) {
	root := createTestTree(t)

	rep, err := verify.Compare(context.Background(), root, types.DirectoryRecord{
		Status: types.StatusReady,
		Stats:  types.NewStats(3, 4, 19),
	}, nil)
	require.NoError(t, err)
	assert.True(t, rep.OK())

	rep, err = verify.Compare(context.Background(), root, types.DirectoryRecord{
		Status: types.StatusScanning,
		Stats:  types.DirectoryStats{SubdirCount: types.Known(3), FileCount: types.Known(1)},
	}, nil)
	require.NoError(t, err)
	assert.False(t, rep.OK())
	require.Len(t, rep.Mismatches, 2)
	assert.Equal(t, "files", rep.Mismatches[0].Field)
	assert.Equal(t, "size", rep.Mismatches[1].Field)
	assert.Equal(t, "-", rep.Mismatches[1].Stored)
}
