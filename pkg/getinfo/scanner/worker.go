package scanner

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/workstack"
)

func (s *Scanner) work() {
	defer s.wg.Done()
	defer s.recoverFatal("worker")

	for !s.stopped.Load() {
		worked, err := s.step()
		if err != nil {
			s.fail(err)
			return
		}
		if !worked && !s.sleep(s.opts.IdlePoll) {
			return
		}
	}
}

// step handles the top frame once. It reports false when there was nothing
// the worker may touch. A returned error is an invariant violation.
func (s *Scanner) step() (bool, error) {
	frame, done, err := s.prepareTop()
	if frame == nil || done || err != nil {
		return done, err
	}

	outcome, err := s.scanDirectory(frame)
	return true, s.finishScan(frame.Path(), outcome, err)
}

// prepareTop picks the top frame. Frames already finished or disabled are
// popped here and reported as done; otherwise the frame is returned with
// scanRunning set.
func (s *Scanner) prepareTop() (frame *workstack.Frame, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	top := s.stack.Top()
	if top == nil || s.stack.IsAboveFocus(top.Path()) {
		return nil, false, nil
	}
	path := top.Path()

	rec, ok := s.store.TryGet(path, false)
	switch {
	case ok && isFinished(rec.Status):
		err = s.stack.PopReady()
		s.postLocked(path)
		return nil, true, err
	case s.enabler != nil && !s.enabler.IsEnabled(path):
		err = s.stack.PopDisabled()
		s.postLocked(path)
		s.log.Debug("scan disabled", "path", path)
		return nil, true, err
	}

	if !ok || rec.Status != types.StatusScanning {
		s.store.Upsert(path, types.DirectoryRecord{Status: types.StatusScanning}, true)
	}
	s.postLocked(path)
	s.scanRunning = true
	return top, false, nil
}

func (s *Scanner) finishScan(path string, outcome ScanOutcome, scanErr error) error {
	s.mu.Lock()
	defer func() {
		s.scanRunning = false
		s.idle.Broadcast()
		s.mu.Unlock()
	}()

	var fsErr *ScanError
	if errors.As(scanErr, &fsErr) {
		s.log.Warn("directory scan failed", "path", fsErr.Path, "op", fsErr.Op, "err", fsErr.Err)
		if err := s.stack.PopError(fsErr.Path); err != nil {
			return err
		}
		s.postLocked(fsErr.Path)
		return nil
	}
	if scanErr != nil {
		return scanErr
	}

	if outcome == OutcomeComplete {
		// a completion racing a cancellation is not reported as Ready: the
		// waiting caller must see that it was preempted
		status := types.StatusReady
		if s.cancelRequested.Load() {
			status = types.StatusPending
		}
		if err := s.stack.Pop(status); err != nil {
			return err
		}
		if parent := s.stack.Top(); parent != nil && status == types.StatusReady {
			s.postLocked(parent.Path())
		}
	}
	s.postLocked(path)
	return nil
}

// scanDirectory advances frame until it is exhausted, a subdirectory is
// pushed, or cancellation is requested. Filesystem failures come back as
// *ScanError; any other error is an invariant violation.
func (s *Scanner) scanDirectory(frame *workstack.Frame) (ScanOutcome, error) {
	processed := 0
	for {
		entry, err := frame.Current()
		if errors.Is(err, io.EOF) {
			return OutcomeComplete, nil
		}
		if err != nil {
			return OutcomeCancelled, &ScanError{Path: frame.Path(), Op: "readdir", Err: err}
		}

		switch mode := entry.Type(); {
		case mode&fs.ModeSymlink != 0:
			frame.Advance()

		case mode.IsDir():
			child := filepath.Join(frame.Path(), entry.Name())
			s.mu.Lock()
			frame.NoteSubdir(entry.Name())
			err := s.stack.Push(child, nil)
			s.mu.Unlock()
			if err != nil {
				return OutcomeCancelled, err
			}
			return OutcomeSuspended, nil

		case mode.IsRegular():
			info, err := entry.Info()
			if errors.Is(err, fs.ErrNotExist) {
				frame.Advance()
				break
			}
			if err != nil {
				return OutcomeCancelled, &ScanError{Path: frame.Path(), Op: "stat " + entry.Name(), Err: err}
			}
			frame.AddFile(entry.Name(), uint64(info.Size()))
			frame.Advance()

		default:
			frame.Advance()
		}

		processed++
		if processed%s.opts.CancelCheckInterval == 0 && s.cancelRequested.Load() {
			return OutcomeCancelled, nil
		}
	}
}

// requestCancellationAndWait asks the worker to leave scanDirectory and
// blocks until it has. Must hold s.mu; it is released while waiting. The
// returned func clears the request.
func (s *Scanner) requestCancellationAndWait() (reset func()) {
	s.cancelRequested.Store(true)
	for s.scanRunning {
		s.idle.Wait()
	}
	return func() {
		if !s.stopped.Load() {
			s.cancelRequested.Store(false)
		}
	}
}
