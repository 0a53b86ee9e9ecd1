// Package orchestrator runs lists of focus targets one after another, for
// example every filesystem root or a single selected directory.
package orchestrator

import (
	"context"
	"sync"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// Focuser focuses a directory and waits until it settles.
type Focuser interface {
	FocusAndWait(ctx context.Context, path string) (types.ProcessingStatus, error)
}

// TargetStatus is the settled status of one target.
type TargetStatus struct {
	Path   string                 `json:"path"`
	Status types.ProcessingStatus `json:"status"`
}

// Result describes a finished sequence. Targets lists the targets that were
// attempted, in order. Preempted is set when a later focus request
// redirected the scanner and the remaining targets were abandoned.
type Result struct {
	Targets   []TargetStatus `json:"targets"`
	Preempted bool           `json:"preempted"`
	Err       error          `json:"-"`
}

// CompletionFunc receives the result of a sequence. It runs after the
// sequence has stopped counting as running, so it may call Running, Cancel or
// ScanSequentially. It must not call Wait or IgnoreCallback.
type CompletionFunc func(Result)

type sequence struct {
	cancel context.CancelFunc
	// settled is closed once the last focus returned; done after the
	// completion callback.
	settled chan struct{}
	done    chan struct{}
}

func (s *sequence) running() bool {
	select {
	case <-s.settled:
		return false
	default:
		return true
	}
}

// Orchestrator allows one active sequence at a time.
type Orchestrator struct {
	focuser Focuser
	log     *logging.Logger

	mu     sync.Mutex
	active *sequence

	cbMu   sync.Mutex
	ignore bool
}

// New returns an orchestrator driving focuser.
func New(focuser Focuser) *Orchestrator {
	return &Orchestrator{
		focuser: focuser,
		log:     logging.Get("orchestrator"),
	}
}

// ScanSequentially focuses each target in order on a new goroutine. A
// sequence already running is cancelled and waited for first. onComplete may
// be nil.
func (o *Orchestrator) ScanSequentially(ctx context.Context, targets []string, onComplete CompletionFunc) {
	for {
		o.mu.Lock()
		prev := o.active
		if prev == nil || !prev.running() {
			o.startLocked(ctx, targets, onComplete)
			o.mu.Unlock()
			return
		}
		o.mu.Unlock()

		o.log.Debug("replacing running sequence")
		prev.cancel()
		<-prev.settled
	}
}

// Running reports whether a sequence is in progress.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil && o.active.running()
}

// Cancel stops the running sequence, if any, and waits until its last focus
// has returned.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	seq := o.active
	o.mu.Unlock()
	if seq != nil {
		seq.cancel()
		<-seq.settled
	}
}

// Wait blocks until the running sequence, if any, has finished and its
// callback has returned.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	seq := o.active
	o.mu.Unlock()
	if seq != nil {
		<-seq.done
	}
}

// IgnoreCallback suppresses completion callbacks from now on. Once it
// returns no callback is running.
func (o *Orchestrator) IgnoreCallback() {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.ignore = true
}

func (o *Orchestrator) startLocked(ctx context.Context, targets []string, onComplete CompletionFunc) {
	seqCtx, cancel := context.WithCancel(ctx)
	seq := &sequence{cancel: cancel, settled: make(chan struct{}), done: make(chan struct{})}
	o.active = seq

	targets = append([]string(nil), targets...)
	go func() {
		defer close(seq.done)

		res := o.run(seqCtx, targets)
		cancel()
		close(seq.settled)

		o.cbMu.Lock()
		defer o.cbMu.Unlock()
		if onComplete != nil && !o.ignore {
			onComplete(res)
		}
	}()
}

func (o *Orchestrator) run(ctx context.Context, targets []string) Result {
	var res Result
	for _, path := range targets {
		st, err := o.focuser.FocusAndWait(ctx, path)
		res.Targets = append(res.Targets, TargetStatus{Path: path, Status: st})
		if err != nil {
			res.Err = err
			break
		}
		if st == types.StatusPending {
			res.Preempted = true
			o.log.Info("sequence preempted", "path", path)
			break
		}
	}
	o.log.Info("sequence finished", "targets", len(res.Targets), "preempted", res.Preempted)
	return res
}
