package workstack_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/dirstore"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/paths"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/workstack"
)

// createTestTree creates files (relative path -> content) under a fresh
// unified temp directory and returns it.
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

// drainFiles adds every regular file of the top frame and stops at the first
// subdirectory or the end of the directory.
func drainFiles(t *testing.T, f *workstack.Frame) (subdir string) {
	t.Helper()
	for {
		entry, err := f.Current()
		if errors.Is(err, io.EOF) {
			return ""
		}
		require.NoError(t, err)
		if entry.IsDir() {
			return entry.Name()
		}
		info, err := entry.Info()
		require.NoError(t, err)
		f.AddFile(entry.Name(), uint64(info.Size()))
		f.Advance()
	}
}

func newStack(root string) (*workstack.Stack, *dirstore.Store) {
	store := dirstore.New(nil)
	return workstack.New(store, 2, root), store
}

func TestPop_ReadyMergesIntoParent(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"b/1.txt": strings.Repeat("x", 100),
		"b/2.txt": strings.Repeat("x", 100),
		"b/3.log": strings.Repeat("x", 100),
	})
	child := filepath.Join(root, "b")
	stack, store := newStack(root)

	require.NoError(t, stack.Push(root, nil))
	rec, ok := store.TryGet(root, false)
	require.True(t, ok)
	assert.Equal(t, types.StatusScanning, rec.Status)

	name := drainFiles(t, stack.Top())
	require.Equal(t, "b", name)
	stack.Top().NoteSubdir(name)
	require.NoError(t, stack.Push(child, nil))

	assert.Empty(t, drainFiles(t, stack.Top()))
	require.NoError(t, stack.Pop(types.StatusReady))

	rec, ok = store.TryGet(child, true)
	require.True(t, ok)
	assert.Equal(t, types.StatusReady, rec.Status)
	assert.Equal(t, types.NewStats(0, 3, 300), rec.Stats)
	assert.Equal(t, uint64(2), rec.Mime["txt"].FileCount)

	top := stack.Top()
	require.NotNil(t, top)
	assert.Equal(t, root, top.Path())
	assert.Equal(t, types.NewStats(1, 3, 300), top.Stats())

	_, err := top.Current()
	assert.ErrorIs(t, err, io.EOF, "parent cursor must have moved past the child")

	parent, ok := store.TryGet(root, false)
	require.True(t, ok)
	assert.Equal(t, uint64(3), types.Value(parent.Stats.FileCount))
	assert.Equal(t, uint64(300), parent.Mime.All().TotalSize)
}

func TestPop_ReadyContributesOnce(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"a.bin":     "12345",
		"sub/c.bin": "123",
	})
	stack, store := newStack(root)

	require.NoError(t, stack.Push(root, nil))
	name := drainFiles(t, stack.Top())
	require.Equal(t, "sub", name)
	stack.Top().NoteSubdir(name)
	require.NoError(t, stack.Push(filepath.Join(root, name), nil))
	drainFiles(t, stack.Top())
	require.NoError(t, stack.Pop(types.StatusReady))

	assert.Empty(t, drainFiles(t, stack.Top()))
	require.NoError(t, stack.Pop(types.StatusReady))
	assert.Zero(t, stack.Len())

	rec, ok := store.TryGet(root, true)
	require.True(t, ok)
	assert.Equal(t, types.StatusReady, rec.Status)
	assert.Equal(t, types.NewStats(1, 2, 8), rec.Stats)
	assert.True(t, rec.Stats.Complete())
}

func TestPush_RejectsNonChild(t *testing.T) {
	root := createTestTree(t, map[string]string{"a/": "", "b/": ""})
	stack, _ := newStack(root)

	require.NoError(t, stack.Push(filepath.Join(root, "a"), nil))
	err := stack.Push(filepath.Join(root, "b"), nil)
	assert.ErrorIs(t, err, workstack.ErrNotChild)
	assert.Equal(t, 1, stack.Len())
}

func TestPush_KeepsFinishedStatus(t *testing.T) {
	root := createTestTree(t, map[string]string{"done/": ""})
	done := filepath.Join(root, "done")
	stack, store := newStack(root)
	store.Upsert(done, types.DirectoryRecord{Status: types.StatusReady, Stats: types.NewStats(0, 0, 0)}, false)

	require.NoError(t, stack.Push(root, nil))
	require.NoError(t, stack.Push(done, nil))

	rec, _ := store.TryGet(done, false)
	assert.Equal(t, types.StatusReady, rec.Status)
}

func TestPush_DoesNotMarkFocusAncestorsScanning(t *testing.T) {
	root := createTestTree(t, map[string]string{"a/b/": ""})
	a := filepath.Join(root, "a")
	b := filepath.Join(a, "b")
	stack, store := newStack(root)
	stack.SetFocusedPath(b)

	require.NoError(t, stack.Push(root, nil))
	require.NoError(t, stack.Push(a, nil))
	require.NoError(t, stack.Push(b, nil))

	for _, p := range []string{root, a} {
		_, ok := store.TryGet(p, false)
		assert.False(t, ok, "%s must not be marked scanning", p)
		assert.True(t, stack.IsAboveFocus(p))
	}
	rec, ok := store.TryGet(b, false)
	require.True(t, ok)
	assert.Equal(t, types.StatusScanning, rec.Status)
	assert.False(t, stack.IsAboveFocus(b))
}

func TestPush_ResumesFromStoredBreakdown(t *testing.T) {
	root := createTestTree(t, map[string]string{"f.txt": "1234"})
	stack, store := newStack(root)

	seed := types.NewMimeAccumulator()
	seed.AddFile("a.go", 20)
	seed.AddFile("b.go", 30)
	store.Upsert(root, types.DirectoryRecord{Status: types.StatusPending, Mime: seed}, true)

	require.NoError(t, stack.Push(root, nil))
	drainFiles(t, stack.Top())
	assert.Equal(t, types.NewStats(0, 3, 54), stack.Top().Stats())
}

func TestPopError_UnwindsDescendants(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"a/sibling/x.txt": "abc",
		"a/broken/deep/":  "",
	})
	a := filepath.Join(root, "a")
	sibling := filepath.Join(a, "sibling")
	broken := filepath.Join(a, "broken")
	deep := filepath.Join(broken, "deep")
	stack, store := newStack(root)

	require.NoError(t, stack.Push(a, nil))
	require.NoError(t, stack.Push(sibling, nil))
	drainFiles(t, stack.Top())
	require.NoError(t, stack.Pop(types.StatusReady))

	done := make(chan types.ProcessingStatus, 1)
	require.NoError(t, stack.Push(broken, nil))
	require.NoError(t, stack.Push(deep, done))

	require.NoError(t, stack.PopError(broken))

	assert.Equal(t, 1, stack.Len())
	assert.Equal(t, a, stack.Top().Path())
	for _, p := range []string{broken, deep} {
		rec, ok := store.TryGet(p, false)
		require.True(t, ok)
		assert.Equal(t, types.StatusError, rec.Status, p)
	}
	rec, _ := store.TryGet(sibling, false)
	assert.Equal(t, types.StatusReady, rec.Status)
	assert.Equal(t, types.StatusError, <-done)

	assert.ErrorIs(t, stack.PopError("/nowhere"), workstack.ErrPathMismatch)
}

func TestPopReady_ResolvesWithStoredStatus(t *testing.T) {
	root := createTestTree(t, map[string]string{"e/": ""})
	e := filepath.Join(root, "e")
	stack, store := newStack(root)
	store.Upsert(e, types.DirectoryRecord{Status: types.StatusError}, true)

	require.NoError(t, stack.Push(root, nil))
	name := drainFiles(t, stack.Top())
	stack.Top().NoteSubdir(name)

	done := make(chan types.ProcessingStatus, 1)
	require.NoError(t, stack.Push(e, done))
	require.NoError(t, stack.PopReady())

	assert.Equal(t, types.StatusError, <-done)
	_, err := stack.Top().Current()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, types.NewStats(1, 0, 0), stack.Top().Stats())
}

func TestPopReady_MissingRecord(t *testing.T) {
	root := createTestTree(t, nil)
	stack, store := newStack(root)
	stack.SetFocusedPath(filepath.Join(root, "x"))

	require.NoError(t, stack.Push(root, nil))
	require.False(t, store.HasData())
	assert.ErrorIs(t, stack.PopReady(), workstack.ErrMissingRecord)
}

func TestPopDisabled_MarksSkipped(t *testing.T) {
	root := createTestTree(t, map[string]string{"off/big.iso": "0123456789"})
	off := filepath.Join(root, "off")
	stack, store := newStack(root)

	require.NoError(t, stack.Push(root, nil))
	stack.Top().NoteSubdir(drainFiles(t, stack.Top()))
	done := make(chan types.ProcessingStatus, 1)
	require.NoError(t, stack.Push(off, done))
	require.NoError(t, stack.PopDisabled())

	assert.Equal(t, types.StatusSkipped, <-done)
	rec, _ := store.TryGet(off, false)
	assert.Equal(t, types.StatusSkipped, rec.Status)

	assert.Empty(t, drainFiles(t, stack.Top()))
	assert.Equal(t, types.NewStats(1, 0, 0), stack.Top().Stats())
}

func TestPopPending_WritesStatusOnly(t *testing.T) {
	root := createTestTree(t, map[string]string{"a.txt": "hello"})
	stack, store := newStack(root)

	require.NoError(t, stack.Push(root, nil))
	drainFiles(t, stack.Top())
	require.NoError(t, stack.Pop(types.StatusPending))

	rec, ok := store.TryGet(root, false)
	require.True(t, ok)
	assert.Equal(t, types.StatusPending, rec.Status)
	assert.True(t, rec.Stats.IsZero(), "partial counts are not persisted")
}

func TestNoteSubdir_CountsOncePerChild(t *testing.T) {
	root := createTestTree(t, map[string]string{"c/": ""})
	child := filepath.Join(root, "c")
	stack, _ := newStack(root)

	require.NoError(t, stack.Push(root, nil))
	for range 2 {
		name := drainFiles(t, stack.Top())
		require.Equal(t, "c", name)
		stack.Top().NoteSubdir(name)
		require.NoError(t, stack.Push(child, nil))
		require.NoError(t, stack.Pop(types.StatusPending))
	}
	assert.Equal(t, types.NewStats(1, 0, 0), stack.Top().Stats())
}

func TestPauseTop_ReleasesWithPending(t *testing.T) {
	root := createTestTree(t, nil)
	stack, store := newStack(root)

	done := make(chan types.ProcessingStatus, 1)
	require.NoError(t, stack.Push(root, done))
	require.NoError(t, stack.PauseTop())

	assert.Equal(t, types.StatusPending, <-done)
	assert.False(t, stack.Top().HasCompletion())
	rec, _ := store.TryGet(root, false)
	assert.Equal(t, types.StatusPending, rec.Status)

	require.NoError(t, stack.Pop(types.StatusPending))
	assert.ErrorIs(t, stack.PauseTop(), workstack.ErrEmptyStack)
}

func TestAttachCompletion(t *testing.T) {
	root := createTestTree(t, nil)
	stack, _ := newStack(root)
	require.NoError(t, stack.Push(root, nil))

	first := make(chan types.ProcessingStatus, 1)
	second := make(chan types.ProcessingStatus, 1)
	require.NoError(t, stack.AttachCompletion(root, first))
	require.NoError(t, stack.AttachCompletion(root, second))
	assert.Equal(t, types.StatusPending, <-first)

	assert.ErrorIs(t, stack.AttachCompletion("/elsewhere", first), workstack.ErrPathMismatch)

	require.NoError(t, stack.Pop(types.StatusReady))
	assert.Equal(t, types.StatusReady, <-second)
}

func TestReleaseCompletions(t *testing.T) {
	root := createTestTree(t, map[string]string{"k/": ""})
	stack, _ := newStack(root)

	outer := make(chan types.ProcessingStatus, 1)
	inner := make(chan types.ProcessingStatus, 1)
	require.NoError(t, stack.Push(root, outer))
	require.NoError(t, stack.Push(filepath.Join(root, "k"), inner))
	stack.ReleaseCompletions()

	assert.Equal(t, types.StatusPending, <-outer)
	assert.Equal(t, types.StatusPending, <-inner)
	assert.Equal(t, []string{root, filepath.Join(root, "k")}, stack.Paths())
}

func TestReleaseCompletions_KeepsCursorPosition(t *testing.T) {
	root := createTestTree(t, map[string]string{"a.txt": "1", "b.txt": "22", "c.txt": "333"})
	stack, _ := newStack(root)

	done := make(chan types.ProcessingStatus, 1)
	require.NoError(t, stack.Push(root, done))
	top := stack.Top()
	first, err := top.Current()
	require.NoError(t, err)
	top.Advance()

	stack.ReleaseCompletions()
	assert.Equal(t, types.StatusPending, <-done)

	second, err := top.Current()
	require.NoError(t, err)
	assert.NotEqual(t, first.Name(), second.Name())

	stack.CloseCursors()
	again, err := top.Current()
	require.NoError(t, err)
	assert.Equal(t, first.Name(), again.Name(), "a closed cursor reopens from the start")
}

func TestPop_EmptyStack(t *testing.T) {
	stack, _ := newStack("/tmp")
	assert.ErrorIs(t, stack.Pop(types.StatusReady), workstack.ErrEmptyStack)
	assert.ErrorIs(t, stack.PopDisabled(), workstack.ErrEmptyStack)
	assert.ErrorIs(t, stack.PopReady(), workstack.ErrEmptyStack)
	assert.Nil(t, stack.Top())
}
