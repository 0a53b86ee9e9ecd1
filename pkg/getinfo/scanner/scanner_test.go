package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

func bigTree(files int) map[string]string {
	tree := map[string]string{
		"small/readme.md": "hello",
		"top.txt":         "0123456789",
	}
	for i := range files {
		tree[fmt.Sprintf("big/f%04d.dat", i)] = "0123456789"
	}
	return tree
}

func TestScanDirectory_StopsWithinCheckInterval(t *testing.T) {
	root := createTestTree(t, bigTree(250))
	big := filepath.Join(root, "big")
	s := newTestScanner(t, root, nil)

	require.NoError(t, s.stack.Push(root, nil))
	require.NoError(t, s.stack.Push(big, nil))
	frame, done, err := s.prepareTop()
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, big, frame.Path())
	assert.Equal(t, types.StatusScanning, statusOf(t, s, big))

	s.cancelRequested.Store(true)
	outcome, err := s.scanDirectory(frame)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Equal(t, uint64(100), types.Value(frame.Stats().FileCount))
	require.NoError(t, s.finishScan(big, outcome, nil))
	assert.False(t, s.scanRunning)
}

func TestFinishScan_CompletionDuringCancelIsPending(t *testing.T) {
	root := createTestTree(t, bigTree(10))
	small := filepath.Join(root, "small")
	s := newTestScanner(t, root, nil)

	done := make(chan types.ProcessingStatus, 1)
	require.NoError(t, s.stack.Push(root, nil))
	require.NoError(t, s.stack.Push(small, done))
	frame, _, err := s.prepareTop()
	require.NoError(t, err)
	require.Equal(t, small, frame.Path())

	s.cancelRequested.Store(true)
	outcome, err := s.scanDirectory(frame)
	require.NoError(t, err)
	require.Equal(t, OutcomeComplete, outcome)
	require.NoError(t, s.finishScan(small, outcome, nil))
	s.cancelRequested.Store(false)

	assert.Equal(t, types.StatusPending, <-done)
	assert.Equal(t, types.StatusPending, statusOf(t, s, small))
	assert.Equal(t, []string{root}, s.stack.Paths())

	// the next pass rescans it from the parent and finishes normally
	runUntilIdle(t, s)
	assert.Equal(t, types.StatusReady, statusOf(t, s, small))
	assert.Equal(t, expectedStats(t, root), mustRecord(t, s, root).Stats)
}

func TestApplyFocus_RedirectsAndResumes(t *testing.T) {
	root := createTestTree(t, bigTree(250))
	big := filepath.Join(root, "big")
	small := filepath.Join(root, "small")
	s := newTestScanner(t, root, nil)

	require.NoError(t, s.stack.Push(root, nil))
	require.NoError(t, s.stack.Push(big, nil))
	frame, _, err := s.prepareTop()
	require.NoError(t, err)
	s.cancelRequested.Store(true)
	outcome, err := s.scanDirectory(frame)
	require.NoError(t, err)
	require.NoError(t, s.finishScan(big, outcome, err))
	s.cancelRequested.Store(false)

	done := make(chan types.ProcessingStatus, 1)
	require.NoError(t, s.applyFocus(small, done))

	assert.Equal(t, []string{root, small}, s.stack.Paths())
	assert.Equal(t, types.StatusPending, statusOf(t, s, big))
	assert.Equal(t, types.StatusPending, statusOf(t, s, root))
	rec, _ := s.store.TryGet(big, false)
	assert.True(t, rec.Stats.IsZero(), "partial counts of a cancelled scan are not kept")

	runUntilIdle(t, s)
	assert.Equal(t, types.StatusReady, <-done)
	assert.Equal(t, []string{root}, s.stack.Paths(), "the focus parent stays parked")

	rootDone := make(chan types.ProcessingStatus, 1)
	require.NoError(t, s.applyFocus(root, rootDone))
	runUntilIdle(t, s)
	assert.Equal(t, types.StatusReady, <-rootDone)

	rec, ok := s.store.TryGet(root, true)
	require.True(t, ok)
	assert.Equal(t, expectedStats(t, root), rec.Stats)
	assert.Equal(t, expectedStats(t, big), mustRecord(t, s, big).Stats)
}

func TestInterruptedScan_MatchesUninterrupted(t *testing.T) {
	tree := bigTree(120)
	tree["big/nested/deeper/x.bin"] = strings.Repeat("z", 4096)
	tree["other/a/b/c.txt"] = "abc"
	tree["other/d.txt"] = "defg"
	root := createTestTree(t, tree)

	straight := newTestScanner(t, root, nil)
	done := make(chan types.ProcessingStatus, 1)
	require.NoError(t, straight.applyFocus(root, done))
	runUntilIdle(t, straight)
	require.Equal(t, types.StatusReady, <-done)

	interrupted := newTestScanner(t, root, nil)
	require.NoError(t, interrupted.applyFocus(root, make(chan types.ProcessingStatus, 1)))
	for range 3 {
		_, err := interrupted.step()
		require.NoError(t, err)
	}
	for _, p := range []string{"other/a", "big/nested", "small", "other/a/b"} {
		require.NoError(t, interrupted.applyFocus(filepath.Join(root, p), make(chan types.ProcessingStatus, 1)))
		for range 2 {
			_, err := interrupted.step()
			require.NoError(t, err)
		}
	}
	final := make(chan types.ProcessingStatus, 1)
	require.NoError(t, interrupted.applyFocus(root, final))
	runUntilIdle(t, interrupted)
	require.Equal(t, types.StatusReady, <-final)

	for _, p := range []string{"", "big", "big/nested", "other", "other/a", "small"} {
		full := filepath.Join(root, p)
		want := mustRecord(t, straight, full)
		got := mustRecord(t, interrupted, full)
		assert.Equal(t, want.Stats, got.Stats, p)
		assert.Equal(t, want.Mime, got.Mime, p)
		assert.Equal(t, expectedStats(t, full), got.Stats, p)
	}
}

func TestWorker_NeverScansFocusAncestors(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"a/many1.txt":   "1",
		"a/many2.txt":   "22",
		"a/b/c/leaf.go": "package leaf",
		"a/b/sib/x":     "x",
	})
	a := filepath.Join(root, "a")
	b := filepath.Join(a, "b")
	c := filepath.Join(b, "c")
	s := newTestScanner(t, root, nil)

	done := make(chan types.ProcessingStatus, 1)
	require.NoError(t, s.applyFocus(c, done))
	require.Equal(t, []string{root, a, b, c}, s.stack.Paths())

	for range 1000 {
		worked, err := s.step()
		require.NoError(t, err)
		for _, p := range []string{root, a, b} {
			if rec, ok := s.store.TryGet(p, false); ok {
				require.NotEqual(t, types.StatusScanning, rec.Status, p)
			}
		}
		if !worked {
			break
		}
	}

	assert.Equal(t, types.StatusReady, <-done)
	assert.Equal(t, []string{root, a, b}, s.stack.Paths())
	_, ok := s.store.TryGet(root, false)
	assert.False(t, ok)
	assert.Equal(t, types.StatusPending, statusOf(t, s, b))
	_, ok = s.store.TryGet(filepath.Join(b, "sib"), false)
	assert.False(t, ok, "siblings of the focused path are not scanned")
}

func TestWorker_DisabledDirectoryIsSkipped(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"keep/a.txt":  "aaaa",
		"skip/b.txt":  "bbbbbbbb",
		"skip/c/d.md": "d",
	})
	skip := filepath.Join(root, "skip")
	s := newTestScanner(t, root, enablerFunc(func(p string) bool { return p != skip }))

	done := make(chan types.ProcessingStatus, 1)
	require.NoError(t, s.applyFocus(root, done))
	runUntilIdle(t, s)
	require.Equal(t, types.StatusReady, <-done)

	assert.Equal(t, types.StatusSkipped, statusOf(t, s, skip))
	assert.Equal(t, types.NewStats(2, 1, 4), mustRecord(t, s, root).Stats)
	_, ok := s.store.TryGet(filepath.Join(skip, "c"), false)
	assert.False(t, ok)
}

func TestWorker_MissingDirectoryIsError(t *testing.T) {
	root := createTestTree(t, map[string]string{"ok/f.txt": "f"})
	missing := filepath.Join(root, "gone")
	s := newTestScanner(t, root, nil)

	done := make(chan types.ProcessingStatus, 1)
	require.NoError(t, s.applyFocus(missing, done))
	runUntilIdle(t, s)

	assert.Equal(t, types.StatusError, <-done)
	assert.Equal(t, types.StatusError, statusOf(t, s, missing))

	again := make(chan types.ProcessingStatus, 1)
	require.NoError(t, s.applyFocus(missing, again))
	runUntilIdle(t, s)
	assert.Equal(t, types.StatusError, <-again, "a finished directory is not rescanned")
}

func TestFocus_RejectsOutsideRoot(t *testing.T) {
	root := createTestTree(t, nil)
	s := newTestScanner(t, filepath.Join(root, "inner"), nil)

	_, err := s.Focus(context.Background(), root)
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = s.Focus(context.Background(), "relative/path")
	assert.Error(t, err)
}

func TestFocus_OverwrittenRequestResolvesPending(t *testing.T) {
	root := createTestTree(t, map[string]string{"a/": "", "b/": ""})
	s := newTestScanner(t, root, nil)

	first := make(chan (<-chan types.ProcessingStatus), 1)
	go func() {
		ch, err := s.Focus(context.Background(), filepath.Join(root, "a"))
		if err == nil {
			first <- ch
		}
	}()

	require.Eventually(t, func() bool {
		s.focusMu.Lock()
		defer s.focusMu.Unlock()
		return s.focusReq != nil
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Focus(ctx, filepath.Join(root, "b"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case ch := <-first:
		assert.Equal(t, types.StatusPending, <-ch)
	case <-time.After(time.Second):
		t.Fatal("overwritten request was not released")
	}

	s.focusMu.Lock()
	assert.Nil(t, s.focusReq, "a cancelled request leaves the slot")
	s.focusMu.Unlock()
}

func TestScanner_BackgroundScanAndEvents(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"docs/a.md":     "# a",
		"docs/b.MD":     "# bb",
		"src/main.go":   "package main",
		"src/util/u.go": "package util",
		"root.bin":      strings.Repeat("0", 1000),
	})
	s := newTestScanner(t, root, nil)
	sink := &recordingSink{}
	unsubscribe := s.Subscribe(sink)
	defer unsubscribe()
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := s.FocusAndWait(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, types.StatusReady, st)
	assert.Equal(t, expectedStats(t, root), mustRecord(t, s, root).Stats)

	var rootMime *MimeSizesInfo
	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		for i := range sink.mimes {
			if sink.mimes[i].Path == root {
				rootMime = &sink.mimes[i]
			}
		}
		return rootMime != nil
	}, 5*time.Second, 5*time.Millisecond)

	got, ok := sink.lastStatus(root)
	require.True(t, ok)
	assert.Equal(t, types.StatusReady, got)
	require.NotNil(t, rootMime)
	assert.Equal(t, types.AllExtensions, rootMime.Sizes[0].Extension)
	assert.Equal(t, uint64(5), rootMime.Sizes[0].FileCount)
	assert.Equal(t, "bin", rootMime.Sizes[1].Extension)
}

func TestScanner_FocusRacesNaturalCompletion(t *testing.T) {
	tree := bigTree(300)
	for i := range 6 {
		tree[fmt.Sprintf("d%d/sub/f.txt", i)] = strings.Repeat("q", i+1)
	}
	root := createTestTree(t, tree)
	s := newTestScanner(t, root, nil)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	// Each target is small enough to finish while the next request is
	// waiting for pickup.
	for i := range 6 {
		_, err := s.Focus(ctx, filepath.Join(root, fmt.Sprintf("d%d", i), "sub"))
		require.NoError(t, err)
	}
	_, err := s.Focus(ctx, filepath.Join(root, "big"))
	require.NoError(t, err)

	st, err := s.FocusAndWait(ctx, root)
	require.NoError(t, err)
	require.Equal(t, types.StatusReady, st)

	assert.Equal(t, expectedStats(t, root), mustRecord(t, s, root).Stats)
	for i := range 6 {
		d := filepath.Join(root, fmt.Sprintf("d%d", i))
		assert.Equal(t, expectedStats(t, d), mustRecord(t, s, d).Stats, d)
	}
}

func TestScanner_PanicIsFatalOnce(t *testing.T) {
	root := createTestTree(t, map[string]string{"a/x.txt": "x"})
	s := newTestScanner(t, root, enablerFunc(func(string) bool { panic("overlay exploded") }))
	sink := &recordingSink{}
	s.Subscribe(sink)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, _ := s.FocusAndWait(ctx, root)
	assert.Equal(t, types.StatusPending, st)

	require.Eventually(t, func() bool { return sink.failureCount() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Contains(t, sink.failures[0].Error(), "overlay exploded")
	assert.True(t, s.Status().Stopped)

	_, err := s.Focus(ctx, root)
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, 1, sink.failureCount())
}

func TestSubscribe_UnsubscribeStopsDelivery(t *testing.T) {
	root := createTestTree(t, map[string]string{"f.txt": "f"})
	s := newTestScanner(t, root, nil)
	sink := &recordingSink{}
	unsubscribe := s.Subscribe(sink)

	s.store.Upsert(root, types.DirectoryRecord{Status: types.StatusPending}, true)
	s.mu.Lock()
	s.postLocked(root)
	s.mu.Unlock()
	s.flush()
	_, ok := sink.lastStatus(root)
	assert.True(t, ok)

	unsubscribe()
	s.mu.Lock()
	s.postLocked(root)
	s.mu.Unlock()
	s.flush()

	sink.mu.Lock()
	assert.Len(t, sink.dirs, 1)
	sink.mu.Unlock()
}

func mustRecord(t *testing.T, s *Scanner, path string) types.DirectoryRecord {
	t.Helper()
	rec, ok := s.store.TryGet(path, false)
	require.True(t, ok, "no record for %s", path)
	return rec
}
