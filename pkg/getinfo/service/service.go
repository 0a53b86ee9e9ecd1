// Package service wires the directory store, work-stack scanner, overlay,
// orchestrator and history provider into one explicitly owned unit. A
// process constructs one ScannerService at startup and hands it to every
// caller; nothing in the engine is global.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/config"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/dirstore"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/history"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/orchestrator"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/overlay"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/paths"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/scanner"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/tuner"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// ErrUnknownDirectory is returned by Directory for a path with no record.
var ErrUnknownDirectory = errors.New("directory has not been visited")

// Persistence is the durable backing of a service: snapshots, history and
// scan overrides. The badger store in pkg/daemon/store implements it.
type Persistence interface {
	dirstore.Persister
	overlay.Persister
	LoadOverrides() (map[string]bool, error)
	Snapshots(ctx context.Context) ([]types.SnapshotHeader, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// Options configures a ScannerService.
type Options struct {
	Scanner        scanner.Options
	HistoryWorkers int

	// Persistence may be nil for a memory-only service without snapshots.
	Persistence Persistence

	// PersistOverlay saves overrides after every change and loads them in New.
	PersistOverlay bool
}

// OptionsFromConfig maps loaded configuration onto service options.
// Persistence is left for the caller to fill in.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := Options{
		Scanner: scanner.Options{
			CancelCheckInterval: cfg.Scan.CancelCheckInterval,
			IdlePoll:            cfg.Scan.IdlePoll,
			NotifyInterval:      cfg.Scan.NotifyInterval,
			ReadBatch:           cfg.Scan.ReadBatch,
		},
		HistoryWorkers: cfg.History.Workers,
		PersistOverlay: cfg.Overlay.Persist,
	}
	if opts.HistoryWorkers <= 0 {
		opts.HistoryWorkers = tuner.Auto().HistoryWorkers
	}
	if cfg.RootPath != "" {
		root, err := paths.UnifyDir(cfg.RootPath)
		if err != nil {
			return Options{}, fmt.Errorf("root_path: %w", err)
		}
		opts.Scanner.RootPath = root
	}
	return opts, nil
}

// ScannerService owns one engine instance.
type ScannerService struct {
	opts Options
	log  *logging.Logger

	store   *dirstore.Store
	overlay *overlay.Overlay
	scanner *scanner.Scanner
	orch    *orchestrator.Orchestrator
	history *history.Provider
}

// New builds a stopped service. Saved overrides are loaded when
// PersistOverlay is set.
func New(opts Options) (*ScannerService, error) {
	var (
		storePersist   dirstore.Persister
		overlayPersist overlay.Persister
	)
	if opts.Persistence != nil {
		storePersist = opts.Persistence
		if opts.PersistOverlay {
			overlayPersist = opts.Persistence
		}
	}

	s := &ScannerService{
		opts:    opts,
		log:     logging.Get("service"),
		store:   dirstore.New(storePersist),
		overlay: overlay.New(overlayPersist),
	}

	if overlayPersist != nil {
		saved, err := opts.Persistence.LoadOverrides()
		if err != nil {
			return nil, fmt.Errorf("loading scan overrides: %w", err)
		}
		s.overlay.Load(saved)
		s.log.Debug("overrides loaded", "count", s.overlay.Len())
	}

	s.scanner = scanner.New(s.store, s.overlay, opts.Scanner)
	s.orch = orchestrator.New(s.scanner)
	s.history = history.New(s.store, opts.HistoryWorkers)
	return s, nil
}

// Start launches the scanner goroutines.
func (s *ScannerService) Start() {
	s.scanner.Start()
}

// Close tears the service down: callbacks are silenced first, then the
// running sequence, the scanner and the history pool are stopped.
func (s *ScannerService) Close() error {
	s.orch.IgnoreCallback()
	s.history.IgnoreCallback()
	s.orch.Cancel()
	s.scanner.Stop()
	return s.history.Close()
}

// RootPath returns the traversal boundary, or "" when unbounded.
func (s *ScannerService) RootPath() string {
	return s.opts.Scanner.RootPath
}

// Focus unifies path and redirects the scanner to it. See scanner.Focus.
func (s *ScannerService) Focus(ctx context.Context, path string) (<-chan types.ProcessingStatus, error) {
	u, err := paths.UnifyDir(path)
	if err != nil {
		return nil, err
	}
	return s.scanner.Focus(ctx, u)
}

// FocusAndWait unifies path, focuses it and waits for its frame to settle.
func (s *ScannerService) FocusAndWait(ctx context.Context, path string) (types.ProcessingStatus, error) {
	u, err := paths.UnifyDir(path)
	if err != nil {
		return types.StatusPending, err
	}
	return s.scanner.FocusAndWait(ctx, u)
}

// ScanSequentially unifies targets and scans them one after another,
// replacing any running sequence. Targets that cannot be unified are
// reported as an error before anything starts.
func (s *ScannerService) ScanSequentially(ctx context.Context, targets []string, onComplete orchestrator.CompletionFunc) error {
	unified := make([]string, 0, len(targets))
	for _, t := range targets {
		u, err := paths.UnifyDir(t)
		if err != nil {
			return err
		}
		unified = append(unified, u)
	}
	s.orch.ScanSequentially(ctx, unified, onComplete)
	return nil
}

// ScanAll sequences every filesystem root, or the root path when one is
// configured.
func (s *ScannerService) ScanAll(ctx context.Context, onComplete orchestrator.CompletionFunc) error {
	targets := paths.Roots()
	if root := s.RootPath(); root != "" {
		targets = []string{root}
	}
	return s.ScanSequentially(ctx, targets, onComplete)
}

// CancelSequence stops the running sequence, if any.
func (s *ScannerService) CancelSequence() {
	s.orch.Cancel()
}

// SequenceRunning reports whether an orchestrated sequence is in progress.
func (s *ScannerService) SequenceRunning() bool {
	return s.orch.Running()
}

// WaitSequence blocks until the running sequence, if any, has finished.
func (s *ScannerService) WaitSequence() {
	s.orch.Wait()
}

// Directory returns the record of path. The breakdown is included only for
// Ready directories.
func (s *ScannerService) Directory(path string) (types.DirectoryRecord, error) {
	u, err := paths.Unify(path)
	if err != nil {
		return types.DirectoryRecord{}, err
	}
	rec, ok := s.store.TryGet(u, true)
	if !ok {
		return types.DirectoryRecord{}, fmt.Errorf("%w: %s", ErrUnknownDirectory, u)
	}
	return rec, nil
}

// Child is a known immediate subdirectory.
type Child struct {
	Path string
	types.DirectoryRecord
}

// Children returns the known immediate subdirectories of path in lexical
// order, without breakdowns.
func (s *ScannerService) Children(path string) ([]Child, error) {
	u, err := paths.Unify(path)
	if err != nil {
		return nil, err
	}
	var out []Child
	for _, p := range s.store.Paths() {
		if !paths.IsChild(p, u) {
			continue
		}
		if rec, ok := s.store.TryGet(p, true); ok {
			rec.Mime = nil
			out = append(out, Child{Path: p, DirectoryRecord: rec})
		}
	}
	return out, nil
}

// SetEnabled sets the scan override of path.
func (s *ScannerService) SetEnabled(path string, enabled bool) error {
	u, err := paths.Unify(path)
	if err != nil {
		return err
	}
	return s.overlay.SetEnabled(u, enabled)
}

// IsEnabled reports whether path may be scanned.
func (s *ScannerService) IsEnabled(path string) (bool, error) {
	u, err := paths.Unify(path)
	if err != nil {
		return false, err
	}
	return s.overlay.IsEnabled(u), nil
}

// Overrides lists the stored scan overrides.
func (s *ScannerService) Overrides() []overlay.Entry {
	return s.overlay.Entries()
}

// SaveSnapshot persists every Ready directory as one snapshot.
func (s *ScannerService) SaveSnapshot(ctx context.Context) (types.SnapshotHeader, error) {
	return s.store.SaveSnapshot(ctx)
}

// Snapshots lists the saved snapshots, oldest first.
func (s *ScannerService) Snapshots(ctx context.Context) ([]types.SnapshotHeader, error) {
	if s.opts.Persistence == nil {
		return nil, dirstore.ErrNoPersister
	}
	return s.opts.Persistence.Snapshots(ctx)
}

// DeleteSnapshot removes one saved snapshot and its rows from the history.
func (s *ScannerService) DeleteSnapshot(ctx context.Context, id string) error {
	if s.opts.Persistence == nil {
		return dirstore.ErrNoPersister
	}
	if err := s.opts.Persistence.DeleteSnapshot(ctx, id); err != nil {
		return err
	}
	s.log.Info("snapshot deleted", "id", id)
	return nil
}

// History loads the size trend of path on the history pool and waits for
// it. Concurrent callers are independent of each other.
func (s *ScannerService) History(ctx context.Context, path string) ([]types.SizePoint, error) {
	u, err := paths.Unify(path)
	if err != nil {
		return nil, err
	}
	return s.history.Fetch(ctx, u)
}

// RequestHistory loads the size trend of path on the history pool. Only the
// latest request's callback fires.
func (s *ScannerService) RequestHistory(path string, cb history.Callback) error {
	u, err := paths.Unify(path)
	if err != nil {
		return err
	}
	return s.history.RequestHistory(u, cb)
}

// Subscribe registers sink for scanner events.
func (s *ScannerService) Subscribe(sink scanner.EventSink) (unsubscribe func()) {
	return s.scanner.Subscribe(sink)
}

// Status returns the scanner status.
func (s *ScannerService) Status() scanner.Status {
	return s.scanner.Status()
}

// Counts returns the number of known directories per status.
func (s *ScannerService) Counts() map[types.ProcessingStatus]int {
	return s.store.Counts()
}

// Store returns the directory store.
func (s *ScannerService) Store() *dirstore.Store {
	return s.store
}
