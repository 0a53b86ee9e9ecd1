package workstack

import (
	"io/fs"
	"path/filepath"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/fsiter"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// Frame is one directory whose scan is in progress. Frames are created and
// destroyed by the Stack; the directory cursor never leaves the frame.
type Frame struct {
	path   string
	batch  int
	cursor *fsiter.Cursor

	subdirs uint64
	mime    types.MimeAccumulator

	// pendingChild is the subdirectory most recently pushed from this
	// frame. Re-pushing it after an unsuccessful pop does not count it twice.
	pendingChild string

	done chan<- types.ProcessingStatus
}

// Path returns the directory of the frame.
func (f *Frame) Path() string {
	return f.path
}

// Current returns the entry under the frame's cursor, opening the directory
// on first use. It returns io.EOF once the directory is exhausted.
func (f *Frame) Current() (fs.DirEntry, error) {
	if f.cursor == nil {
		c, err := fsiter.Open(f.path, f.batch)
		if err != nil {
			return nil, err
		}
		f.cursor = c
	}
	return f.cursor.Current()
}

// Advance moves the cursor past the current entry.
func (f *Frame) Advance() {
	if f.cursor != nil {
		f.cursor.Advance()
	}
}

// AddFile accounts one regular file of this directory.
func (f *Frame) AddFile(name string, size uint64) {
	f.mime.AddFile(name, size)
}

// NoteSubdir records that the subdirectory name is about to be pushed and
// counts it unless it was already counted by an earlier push.
func (f *Frame) NoteSubdir(name string) {
	if f.pendingChild == name {
		return
	}
	f.pendingChild = name
	f.subdirs++
}

// Stats returns the frame's aggregates. All fields are known.
func (f *Frame) Stats() types.DirectoryStats {
	all := f.mime.All()
	return types.NewStats(f.subdirs, all.FileCount, all.TotalSize)
}

// Mime returns a copy of the frame's breakdown.
func (f *Frame) Mime() types.MimeAccumulator {
	return f.mime.Clone()
}

// HasCompletion reports whether a caller is waiting on this frame.
func (f *Frame) HasCompletion() bool {
	return f.done != nil
}

// advancePast moves the cursor past child if it is the current entry.
func (f *Frame) advancePast(child string) {
	if f.cursor == nil {
		return
	}
	name := filepath.Base(child)
	if f.cursor.AdvancePast(name) && f.pendingChild == name {
		f.pendingChild = ""
	}
}

// resolve delivers status to the waiting caller, if any, exactly once.
func (f *Frame) resolve(status types.ProcessingStatus) {
	if f.done == nil {
		return
	}
	select {
	case f.done <- status:
	default:
	}
	f.done = nil
}

func (f *Frame) close() {
	if f.cursor != nil {
		_ = f.cursor.Close()
		f.cursor = nil
	}
}
