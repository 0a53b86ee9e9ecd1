// Package workstack holds the resumable depth-first traversal state: a stack
// of directory frames, each with a partially consumed directory cursor. Push
// and pop keep the directory store in step with the stack and hand completed
// results to the parent frame.
//
// A Stack is not safe for concurrent use; the scanner serializes access.
package workstack

import (
	"errors"
	"fmt"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/dirstore"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/fsiter"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/paths"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// Invariant violations. The scanner treats each of these as fatal.
var (
	ErrNotChild      = errors.New("pushed path is not a child of the top frame")
	ErrEmptyStack    = errors.New("work stack is empty")
	ErrPathMismatch  = errors.New("path does not match a frame on the stack")
	ErrMissingRecord = errors.New("directory has no store record")
)

// Completion is the sending half of a one-shot channel resolved when a frame
// leaves the stack or is paused. It must have a buffer of one.
type Completion = chan<- types.ProcessingStatus

// Stack is the explicit traversal stack. Frame paths are in strict
// parent-child order from bottom to top.
type Stack struct {
	frames []*Frame
	store  *dirstore.Store
	batch  int
	root   string

	// focusedParent is the parent of the focused path. Frames at or above
	// it are not scanned while it is set.
	focusedParent string

	log *logging.Logger
}

// New returns an empty stack backed by store. Frames read their directory in
// batches of batch entries. Records are never written above root.
func New(store *dirstore.Store, batch int, root string) *Stack {
	if batch <= 0 {
		batch = fsiter.DefaultBatchSize
	}
	return &Stack{
		store: store,
		batch: batch,
		root:  root,
		log:   logging.Get("workstack"),
	}
}

// Len returns the number of frames.
func (s *Stack) Len() int {
	return len(s.frames)
}

// Top returns the top frame, or nil when the stack is empty.
func (s *Stack) Top() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Paths returns the frame paths from bottom to top.
func (s *Stack) Paths() []string {
	out := make([]string, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.path
	}
	return out
}

// SetFocusedPath records the parent of path as the focus boundary.
func (s *Stack) SetFocusedPath(path string) {
	s.focusedParent = paths.Parent(path)
}

// FocusedParent returns the current focus boundary, or "" when unset.
func (s *Stack) FocusedParent() string {
	return s.focusedParent
}

// IsAboveFocus reports whether path is at or above the focus boundary.
func (s *Stack) IsAboveFocus(path string) bool {
	return paths.IsAncestorOrEqual(path, s.focusedParent)
}

// Push places a frame for path on top of the stack. path must be a child of
// the current top. The frame resumes from the store's record of path: its
// breakdown already holds every child merged by an earlier attempt. done, if
// non-nil, is resolved when the frame is popped.
func (s *Stack) Push(path string, done Completion) error {
	if top := s.Top(); top != nil && !paths.IsChild(path, top.path) {
		return fmt.Errorf("%w: %s onto %s", ErrNotChild, path, top.path)
	}

	f := &Frame{
		path:  path,
		batch: s.batch,
		mime:  types.NewMimeAccumulator(),
		done:  done,
	}

	rec, ok := s.store.TryGet(path, false)
	if ok && rec.Mime != nil {
		f.mime = rec.Mime
	}

	keep := ok && (rec.Status == types.StatusReady || rec.Status == types.StatusError || rec.Status == types.StatusScanning)
	if !keep && !s.IsAboveFocus(path) {
		s.store.Upsert(path, types.DirectoryRecord{Status: types.StatusScanning}, true)
	}

	s.frames = append(s.frames, f)
	return nil
}

// Pop removes the top frame with status. Ready stores the frame's complete
// stats and breakdown and merges them into the parent; any other status is
// written without touching stats.
func (s *Stack) Pop(status types.ProcessingStatus) error {
	f, err := s.remove()
	if err != nil {
		return err
	}
	defer f.close()

	if status == types.StatusReady {
		s.store.Upsert(f.path, types.DirectoryRecord{
			Status: types.StatusReady,
			Stats:  f.Stats(),
			Mime:   f.mime,
		}, false)
		s.copyReadyToParent(f)
	} else {
		s.store.Upsert(f.path, types.DirectoryRecord{Status: status}, true)
	}

	f.resolve(status)
	return nil
}

// PopReady removes a top frame whose directory the store already holds as
// finished. Nothing is written; the caller receives the stored status.
func (s *Stack) PopReady() error {
	top := s.Top()
	if top == nil {
		return ErrEmptyStack
	}
	rec, ok := s.store.TryGet(top.path, false)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingRecord, top.path)
	}

	f, _ := s.remove()
	defer f.close()

	s.advanceParent(f.path)
	f.resolve(rec.Status)
	return nil
}

// PopDisabled removes the top frame as Skipped.
func (s *Stack) PopDisabled() error {
	f, err := s.remove()
	if err != nil {
		return err
	}
	defer f.close()

	s.store.Upsert(f.path, types.DirectoryRecord{Status: types.StatusSkipped}, true)
	s.advanceParent(f.path)
	f.resolve(types.StatusSkipped)
	return nil
}

// PopError unwinds frames from the top down to and including path, marking
// each one Error. Frames below path are untouched.
func (s *Stack) PopError(path string) error {
	idx := -1
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].path == path {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrPathMismatch, path)
	}

	for len(s.frames) > idx {
		f, _ := s.remove()
		s.store.Upsert(f.path, types.DirectoryRecord{Status: types.StatusError}, true)
		f.resolve(types.StatusError)
		f.close()
	}
	return nil
}

// PauseTop parks the top frame because focus moved below it. A waiting
// caller is released with Pending and a Scanning record is reset to Pending.
func (s *Stack) PauseTop() error {
	top := s.Top()
	if top == nil {
		return ErrEmptyStack
	}
	top.resolve(types.StatusPending)

	if rec, ok := s.store.TryGet(top.path, false); ok && rec.Status == types.StatusScanning {
		s.store.Upsert(top.path, types.DirectoryRecord{Status: types.StatusPending}, true)
	}
	return nil
}

// AttachCompletion makes done wait on the top frame, which must be path.
// A completion already attached there is released with Pending.
func (s *Stack) AttachCompletion(path string, done Completion) error {
	top := s.Top()
	if top == nil {
		return ErrEmptyStack
	}
	if top.path != path {
		return fmt.Errorf("%w: top is %s, want %s", ErrPathMismatch, top.path, path)
	}
	top.resolve(types.StatusPending)
	top.done = done
	return nil
}

// ReleaseCompletions releases every waiting caller with Pending. The frames
// and their cursors stay in place.
func (s *Stack) ReleaseCompletions() {
	for _, f := range s.frames {
		f.resolve(types.StatusPending)
	}
}

// CloseCursors closes the directory of every frame. Only safe once nothing
// else reads the frames.
func (s *Stack) CloseCursors() {
	for _, f := range s.frames {
		f.close()
	}
}

func (s *Stack) remove() (*Frame, error) {
	n := len(s.frames)
	if n == 0 {
		return nil, ErrEmptyStack
	}
	f := s.frames[n-1]
	s.frames[n-1] = nil
	s.frames = s.frames[:n-1]
	return f, nil
}

func (s *Stack) advanceParent(child string) {
	if top := s.Top(); top != nil && paths.IsChild(child, top.path) {
		top.advancePast(child)
	}
}

// copyReadyToParent folds a finished child into its parent frame and into
// the parent's store record.
func (s *Stack) copyReadyToParent(child *Frame) {
	parent := paths.Parent(child.path)
	if parent == "" || (s.root != "" && !paths.IsAncestorOrEqual(s.root, parent)) {
		return
	}

	if top := s.Top(); top != nil && top.path == parent {
		top.mime.Merge(child.mime)
		top.advancePast(child.path)
	}

	all := child.mime.All()
	s.store.Update(parent, func(rec *types.DirectoryRecord) {
		if rec.Status == types.StatusReady {
			s.log.Debug("child finished under a ready parent", "path", child.path)
			return
		}
		if rec.Mime == nil {
			rec.Mime = types.NewMimeAccumulator()
		}
		rec.Mime.Merge(child.mime)
		rec.Stats.Add(types.DirectoryStats{
			FileCount: types.Known(all.FileCount),
			TotalSize: types.Known(all.TotalSize),
		})
	})
}
