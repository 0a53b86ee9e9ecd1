// Package scanner runs the directory traversal in the background. A worker
// goroutine advances the top frame of the work stack a bounded number of
// entries at a time; a notifier goroutine batches change events for
// subscribers and applies focus requests.
package scanner

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/dirstore"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/workstack"
)

// ErrStopped is returned by calls made after the scanner stopped.
var ErrStopped = errors.New("scanner stopped")

// ErrOutsideRoot is returned when a focus target is not under the root path.
var ErrOutsideRoot = errors.New("path is outside the scan root")

// ScanOutcome is the result of one scanDirectory call.
type ScanOutcome int

const (
	// OutcomeComplete means the directory was read to the end.
	OutcomeComplete ScanOutcome = iota
	// OutcomeSuspended means a child frame was pushed above the directory.
	OutcomeSuspended
	// OutcomeCancelled means a cancellation request stopped the scan early.
	OutcomeCancelled
)

func (o ScanOutcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeSuspended:
		return "suspended"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ScanError is a filesystem failure confined to one directory.
type ScanError struct {
	Path string
	Op   string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Enabler decides whether a directory may be scanned.
type Enabler interface {
	IsEnabled(path string) bool
}

// Options tunes the scanner. Zero fields take the DefaultOptions value.
type Options struct {
	// RootPath bounds the traversal; frames are never pushed above it.
	RootPath string

	// CancelCheckInterval is the number of entries between cancellation checks.
	CancelCheckInterval int

	// IdlePoll is the worker's sleep when there is nothing it may scan.
	IdlePoll time.Duration

	// NotifyInterval is the notifier's flush and focus pickup period.
	NotifyInterval time.Duration

	// ReadBatch is the number of directory entries read at once.
	ReadBatch int
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		CancelCheckInterval: 100,
		IdlePoll:            100 * time.Millisecond,
		NotifyInterval:      500 * time.Millisecond,
		ReadBatch:           64,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.CancelCheckInterval <= 0 {
		o.CancelCheckInterval = def.CancelCheckInterval
	}
	if o.IdlePoll <= 0 {
		o.IdlePoll = def.IdlePoll
	}
	if o.NotifyInterval <= 0 {
		o.NotifyInterval = def.NotifyInterval
	}
	if o.ReadBatch <= 0 {
		o.ReadBatch = def.ReadBatch
	}
	return o
}

// Status is a point-in-time view of the scanner.
type Status struct {
	Frames        []string
	FocusedParent string
	Scanning      bool
	Stopped       bool
}

// Scanner owns the work stack and its two background goroutines.
type Scanner struct {
	store   *dirstore.Store
	enabler Enabler
	opts    Options
	log     *logging.Logger

	// mu guards the stack, scanRunning and the notification buffers.
	mu          sync.Mutex
	idle        *sync.Cond
	stack       *workstack.Stack
	scanRunning bool
	dirInfos    map[string]DirectoryInfo
	mimeInfos   map[string]MimeSizesInfo

	cancelRequested atomic.Bool

	// focusMu guards the pending focus slot only.
	focusMu  sync.Mutex
	focusReq *focusRequest

	sinksMu  sync.Mutex
	sinks    map[uint64]EventSink
	nextSink uint64

	startOnce sync.Once
	stopOnce  sync.Once
	failOnce  sync.Once
	stopCh    chan struct{}
	stopped   atomic.Bool
	wg        sync.WaitGroup
}

// New creates a scanner over store. enabler may be nil, in which case every
// directory is scanned. Call Start to launch the background goroutines.
func New(store *dirstore.Store, enabler Enabler, opts Options) *Scanner {
	opts = opts.withDefaults()
	s := &Scanner{
		store:     store,
		enabler:   enabler,
		opts:      opts,
		log:       logging.Get("scanner"),
		stack:     workstack.New(store, opts.ReadBatch, opts.RootPath),
		dirInfos:  make(map[string]DirectoryInfo),
		mimeInfos: make(map[string]MimeSizesInfo),
		sinks:     make(map[uint64]EventSink),
		stopCh:    make(chan struct{}),
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Start launches the worker and notifier goroutines. Extra calls are no-ops.
func (s *Scanner) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(2)
		go s.work()
		go s.notify()
		s.log.Info("scanner started", "root", s.opts.RootPath)
	})
}

// Stop halts both goroutines, flushes pending events and releases every
// caller waiting on a frame with Pending.
func (s *Scanner) Stop() {
	s.halt()
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack.ReleaseCompletions()
	s.stack.CloseCursors()
}

// Store returns the directory store the scanner writes to.
func (s *Scanner) Store() *dirstore.Store {
	return s.store
}

// Status returns the current stack and flags.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Frames:        s.stack.Paths(),
		FocusedParent: s.stack.FocusedParent(),
		Scanning:      s.scanRunning,
		Stopped:       s.stopped.Load(),
	}
}

func (s *Scanner) halt() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		s.cancelRequested.Store(true)
		close(s.stopCh)
	})
}

// fail delivers err once to every sink as a fatal worker failure and shuts
// the scanner down. It may run on either goroutine while the other is still
// inside a scan, so cursors are left for Stop to close.
func (s *Scanner) fail(err error) {
	s.failOnce.Do(func() {
		s.log.Error("background failure", "err", err)
		s.halt()
		s.broadcastFailure(err)
		s.mu.Lock()
		s.stack.ReleaseCompletions()
		s.mu.Unlock()
	})
}

// recoverFatal turns a panic in a background goroutine into a fatal event.
func (s *Scanner) recoverFatal(loop string) {
	if r := recover(); r != nil {
		s.mu.Lock()
		s.scanRunning = false
		s.idle.Broadcast()
		s.mu.Unlock()
		s.fail(fmt.Errorf("%s panic: %v", loop, r))
	}
}

func (s *Scanner) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.stopCh:
		return false
	case <-t.C:
		return true
	}
}

func isFinished(st types.ProcessingStatus) bool {
	return st == types.StatusReady || st == types.StatusError
}
