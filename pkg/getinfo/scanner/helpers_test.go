package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/dirstore"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/paths"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

func createTestTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root, err := paths.Unify(t.TempDir())
	require.NoError(t, err)
	for rel, content := range files {
		full := filepath.Join(root, rel)
		if strings.HasSuffix(rel, "/") {
			require.NoError(t, os.MkdirAll(full, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

// expectedStats walks dir independently of the scanner.
func expectedStats(t *testing.T, dir string) types.DirectoryStats {
	t.Helper()
	var subdirs, files, size uint64
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if e.Type()&fs.ModeSymlink != 0 {
			continue
		}
		if e.IsDir() {
			subdirs++
			sub := expectedStats(t, filepath.Join(dir, e.Name()))
			files += types.Value(sub.FileCount)
			size += types.Value(sub.TotalSize)
			continue
		}
		info, err := e.Info()
		require.NoError(t, err)
		files++
		size += uint64(info.Size())
	}
	return types.NewStats(subdirs, files, size)
}

func testOptions(root string) Options {
	return Options{
		RootPath:            root,
		CancelCheckInterval: 100,
		IdlePoll:            5 * time.Millisecond,
		NotifyInterval:      10 * time.Millisecond,
		ReadBatch:           16,
	}
}

func newTestScanner(t *testing.T, root string, enabler Enabler) *Scanner {
	t.Helper()
	s := New(dirstore.New(nil), enabler, testOptions(root))
	t.Cleanup(s.Stop)
	return s
}

// runUntilIdle drives the worker synchronously until it has nothing to do.
func runUntilIdle(t *testing.T, s *Scanner) {
	t.Helper()
	for range 100000 {
		worked, err := s.step()
		require.NoError(t, err)
		if !worked {
			return
		}
	}
	t.Fatal("worker never went idle")
}

func statusOf(t *testing.T, s *Scanner, path string) types.ProcessingStatus {
	t.Helper()
	rec, ok := s.store.TryGet(path, false)
	require.True(t, ok, "no record for %s", path)
	return rec.Status
}

type recordingSink struct {
	mu       sync.Mutex
	dirs     []DirectoryInfo
	mimes    []MimeSizesInfo
	failures []error
}

func (r *recordingSink) OnDirectoryInfo(info DirectoryInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs = append(r.dirs, info)
}

func (r *recordingSink) OnMimeSizes(info MimeSizesInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mimes = append(r.mimes, info)
}

func (r *recordingSink) OnWorkerFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *recordingSink) lastStatus(path string) (types.ProcessingStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.dirs) - 1; i >= 0; i-- {
		if r.dirs[i].Path == path {
			return r.dirs[i].Status, true
		}
	}
	return types.StatusPending, false
}

func (r *recordingSink) failureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

type enablerFunc func(string) bool

func (f enablerFunc) IsEnabled(path string) bool { return f(path) }
