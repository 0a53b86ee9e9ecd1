package scanner

import (
	"context"
	"fmt"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/paths"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

type focusRequest struct {
	path   string
	done   chan types.ProcessingStatus
	picked chan struct{}
}

// Focus redirects the traversal to path and blocks until the notifier has
// restructured the stack for it. The returned channel yields path's final
// status once its frame is popped, or Pending if a later focus request
// preempts it. path must be unified.
//
// Only the latest request waiting for pickup is kept; an overwritten request
// is released immediately with Pending.
func (s *Scanner) Focus(ctx context.Context, path string) (<-chan types.ProcessingStatus, error) {
	if s.stopped.Load() {
		return nil, ErrStopped
	}
	if !paths.IsUnified(path) {
		return nil, fmt.Errorf("focus %q: path is not unified", path)
	}
	if s.opts.RootPath != "" && !paths.IsAncestorOrEqual(s.opts.RootPath, path) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	req := &focusRequest{
		path:   path,
		done:   make(chan types.ProcessingStatus, 1),
		picked: make(chan struct{}),
	}

	s.focusMu.Lock()
	if prev := s.focusReq; prev != nil {
		prev.done <- types.StatusPending
		close(prev.picked)
	}
	s.focusReq = req
	s.focusMu.Unlock()

	select {
	case <-req.picked:
		return req.done, nil
	case <-ctx.Done():
		s.focusMu.Lock()
		if s.focusReq == req {
			s.focusReq = nil
		}
		s.focusMu.Unlock()
		return nil, ctx.Err()
	case <-s.stopCh:
		return nil, ErrStopped
	}
}

// FocusAndWait focuses path and waits for its frame to settle. A context
// cancelled while waiting yields Pending with the context's error.
func (s *Scanner) FocusAndWait(ctx context.Context, path string) (types.ProcessingStatus, error) {
	done, err := s.Focus(ctx, path)
	if err != nil {
		return types.StatusPending, err
	}
	select {
	case st := <-done:
		return st, nil
	case <-ctx.Done():
		return types.StatusPending, ctx.Err()
	}
}

// applyPendingFocus takes the request out of the focus slot, if any, and
// applies it. A returned error is an invariant violation.
func (s *Scanner) applyPendingFocus() error {
	s.focusMu.Lock()
	req := s.focusReq
	s.focusReq = nil
	s.focusMu.Unlock()

	if req == nil {
		return nil
	}
	defer close(req.picked)

	if err := s.applyFocus(req.path, req.done); err != nil {
		select {
		case req.done <- types.StatusPending:
		default:
		}
		return err
	}
	return nil
}

// applyFocus restructures the stack so target is on top: frames that are not
// ancestors of target are popped as Pending, the remaining top is paused and
// the missing path components are pushed.
func (s *Scanner) applyFocus(target string, done chan types.ProcessingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stack.SetFocusedPath(target)
	reset := s.requestCancellationAndWait()
	defer reset()

	for top := s.stack.Top(); top != nil; top = s.stack.Top() {
		p := top.Path()
		if p == target {
			s.log.Debug("focus already on top", "path", target)
			return s.stack.AttachCompletion(target, done)
		}
		if paths.IsAncestor(p, target) {
			break
		}
		if err := s.stack.Pop(types.StatusPending); err != nil {
			return err
		}
		s.postLocked(p)
	}

	var from string
	if top := s.stack.Top(); top != nil {
		from = top.Path()
		if err := s.stack.PauseTop(); err != nil {
			return err
		}
		s.postLocked(from)
	}

	for _, p := range paths.Chain(target, from, s.opts.RootPath) {
		if err := s.stack.Push(p, nil); err != nil {
			return err
		}
		s.postLocked(p)
	}

	s.log.Info("focus applied", "path", target, "frames", s.stack.Len())
	return s.stack.AttachCompletion(target, done)
}
