package daemon

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"runtime"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	getinfov1 "github.com/zenonby/directory-getinfo/pkg/api/getinfo/v1"
	"github.com/zenonby/directory-getinfo/pkg/daemon/broadcaster"
	"github.com/zenonby/directory-getinfo/pkg/daemon/store"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/dirstore"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/orchestrator"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/paths"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/scanner"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/service"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// Service implements the GetInfoDaemon gRPC service on top of one engine.
type Service struct {
	getinfov1.UnimplementedGetInfoDaemonServer

	engine      *service.ScannerService
	broadcaster *broadcaster.Broadcaster
	startTime   time.Time
	log         *logging.Logger

	shutdownMu sync.Mutex
	shutdown   func()
}

// NewService creates the RPC service. b may be nil, in which case Watch is
// unavailable.
func NewService(engine *service.ScannerService, b *broadcaster.Broadcaster) *Service {
	return &Service{
		engine:      engine,
		broadcaster: b,
		startTime:   time.Now(),
		log:         logging.Get("daemon"),
	}
}

// SetShutdownFunc sets what the Shutdown RPC triggers. It runs on its own
// goroutine after the response is sent.
func (s *Service) SetShutdownFunc(fn func()) {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	s.shutdown = fn
}

// toStatus maps engine errors onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, service.ErrUnknownDirectory), errors.Is(err, store.ErrSnapshotNotFound):
		code = codes.NotFound
	case errors.Is(err, paths.ErrNotDirectory), errors.Is(err, scanner.ErrOutsideRoot):
		code = codes.InvalidArgument
	case errors.Is(err, scanner.ErrStopped):
		code = codes.Unavailable
	case errors.Is(err, dirstore.ErrNoPersister):
		code = codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

func requirePath(p string) error {
	if p == "" {
		return status.Error(codes.InvalidArgument, "path is required")
	}
	return nil
}

// Focus redirects the scanner to a directory, optionally waiting for it.
func (s *Service) Focus(ctx context.Context, req *getinfov1.FocusRequest) (*getinfov1.FocusResponse, error) {
	if err := requirePath(req.Path); err != nil {
		return nil, err
	}
	target, err := paths.UnifyDir(req.Path)
	if err != nil {
		return nil, toStatus(err)
	}

	if req.Wait {
		st, err := s.engine.FocusAndWait(ctx, target)
		if err != nil {
			return nil, toStatus(err)
		}
		return &getinfov1.FocusResponse{Path: target, Status: st}, nil
	}

	if _, err := s.engine.Focus(ctx, target); err != nil {
		return nil, toStatus(err)
	}
	st := types.StatusPending
	if rec, err := s.engine.Directory(target); err == nil {
		st = rec.Status
	}
	return &getinfov1.FocusResponse{Path: target, Status: st}, nil
}

// ScanSequence starts an orchestrated sequence, replacing any running one.
// The sequence outlives the call.
func (s *Service) ScanSequence(_ context.Context, req *getinfov1.ScanSequenceRequest) (*getinfov1.ScanSequenceResponse, error) {
	onComplete := func(res orchestrator.Result) {
		s.log.Info("scan sequence finished", "targets", len(res.Targets), "preempted", res.Preempted, "err", res.Err)
	}

	// the sequence keeps running after the RPC returns
	ctx := context.Background()

	if req.All {
		if err := s.engine.ScanAll(ctx, onComplete); err != nil {
			return nil, toStatus(err)
		}
		return &getinfov1.ScanSequenceResponse{Started: true}, nil
	}

	if len(req.Paths) == 0 {
		return nil, status.Error(codes.InvalidArgument, "no paths given")
	}
	if err := s.engine.ScanSequentially(ctx, req.Paths, onComplete); err != nil {
		return nil, toStatus(err)
	}
	return &getinfov1.ScanSequenceResponse{Started: true, Targets: req.Paths}, nil
}

// CancelSequence stops the running sequence.
func (s *Service) CancelSequence(_ context.Context, _ *getinfov1.Empty) (*getinfov1.Empty, error) {
	s.engine.CancelSequence()
	return &getinfov1.Empty{}, nil
}

// GetDirectory returns the record of a directory and optionally its known
// immediate subdirectories.
func (s *Service) GetDirectory(_ context.Context, req *getinfov1.GetDirectoryRequest) (*getinfov1.GetDirectoryResponse, error) {
	if err := requirePath(req.Path); err != nil {
		return nil, err
	}
	target, err := paths.Unify(req.Path)
	if err != nil {
		return nil, toStatus(err)
	}
	rec, err := s.engine.Directory(target)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &getinfov1.GetDirectoryResponse{
		DirectoryEntry: getinfov1.DirectoryEntry{Path: target, Status: rec.Status, Stats: rec.Stats},
	}
	if rec.Mime != nil {
		resp.Mime = rec.Mime.Sizes()
	}
	if req.Children {
		children, err := s.engine.Children(target)
		if err != nil {
			return nil, toStatus(err)
		}
		for _, c := range children {
			resp.Children = append(resp.Children, getinfov1.DirectoryEntry{Path: c.Path, Status: c.Status, Stats: c.Stats})
		}
	}
	return resp, nil
}

// SetEnabled changes the scan override of a directory.
func (s *Service) SetEnabled(_ context.Context, req *getinfov1.SetEnabledRequest) (*getinfov1.IsEnabledResponse, error) {
	if err := requirePath(req.Path); err != nil {
		return nil, err
	}
	if err := s.engine.SetEnabled(req.Path, req.Enabled); err != nil {
		return nil, toStatus(err)
	}
	enabled, err := s.engine.IsEnabled(req.Path)
	if err != nil {
		return nil, toStatus(err)
	}
	s.log.Info("scan override changed", "path", req.Path, "enabled", req.Enabled)
	return &getinfov1.IsEnabledResponse{Path: req.Path, Enabled: enabled}, nil
}

// IsEnabled reports whether a directory may be scanned.
func (s *Service) IsEnabled(_ context.Context, req *getinfov1.IsEnabledRequest) (*getinfov1.IsEnabledResponse, error) {
	if err := requirePath(req.Path); err != nil {
		return nil, err
	}
	enabled, err := s.engine.IsEnabled(req.Path)
	if err != nil {
		return nil, toStatus(err)
	}
	return &getinfov1.IsEnabledResponse{Path: req.Path, Enabled: enabled}, nil
}

// ListOverrides returns every stored scan override.
func (s *Service) ListOverrides(_ context.Context, _ *getinfov1.Empty) (*getinfov1.OverridesResponse, error) {
	return &getinfov1.OverridesResponse{Entries: s.engine.Overrides()}, nil
}

// SaveSnapshot persists the current Ready directories.
func (s *Service) SaveSnapshot(ctx context.Context, _ *getinfov1.Empty) (*getinfov1.SaveSnapshotResponse, error) {
	hdr, err := s.engine.SaveSnapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &getinfov1.SaveSnapshotResponse{Snapshot: hdr}, nil
}

// ListSnapshots returns the saved snapshot headers, oldest first.
func (s *Service) ListSnapshots(ctx context.Context, _ *getinfov1.Empty) (*getinfov1.ListSnapshotsResponse, error) {
	headers, err := s.engine.Snapshots(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &getinfov1.ListSnapshotsResponse{Snapshots: headers}, nil
}

// DeleteSnapshot removes a saved snapshot.
func (s *Service) DeleteSnapshot(ctx context.Context, req *getinfov1.DeleteSnapshotRequest) (*getinfov1.Empty, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "snapshot id is required")
	}
	if err := s.engine.DeleteSnapshot(ctx, req.ID); err != nil {
		return nil, toStatus(err)
	}
	return &getinfov1.Empty{}, nil
}

// History returns the saved size trend of a directory.
func (s *Service) History(ctx context.Context, req *getinfov1.HistoryRequest) (*getinfov1.HistoryResponse, error) {
	if err := requirePath(req.Path); err != nil {
		return nil, err
	}
	points, err := s.engine.History(ctx, req.Path)
	if err != nil {
		return nil, toStatus(err)
	}
	return &getinfov1.HistoryResponse{Path: req.Path, Points: points}, nil
}

// Watch streams scanner events under a root until the client goes away.
func (s *Service) Watch(req *getinfov1.WatchRequest, stream getinfov1.WatchServer) error {
	if s.broadcaster == nil {
		return status.Error(codes.Unavailable, "event streaming not available")
	}

	root := req.Root
	if root != "" {
		u, err := paths.Unify(root)
		if err != nil {
			return toStatus(err)
		}
		root = u
	}

	sub := s.broadcaster.Subscribe(root)
	if sub == nil {
		return status.Error(codes.Unavailable, "failed to subscribe")
	}
	defer s.broadcaster.Unsubscribe(sub.ID)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events:
			if !ok {
				return nil
			}
			out := &getinfov1.WatchEvent{
				Type:      ev.Type.String(),
				Directory: ev.Directory,
				Mime:      ev.Mime,
				Error:     ev.Err,
			}
			if err := stream.Send(out); err != nil {
				return err
			}
		}
	}
}

// Status returns daemon health and scanner state.
func (s *Service) Status(_ context.Context, _ *getinfov1.Empty) (*getinfov1.StatusResponse, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := s.engine.Status()
	counts := make(map[string]int)
	for k, v := range s.engine.Counts() {
		counts[k.String()] = v
	}

	resp := &getinfov1.StatusResponse{
		PID:             os.Getpid(),
		UptimeSeconds:   int64(time.Since(s.startTime).Seconds()),
		MemoryBytes:     mem.Alloc,
		RootPath:        s.engine.RootPath(),
		Frames:          st.Frames,
		FocusedParent:   st.FocusedParent,
		Scanning:        st.Scanning,
		Stopped:         st.Stopped,
		SequenceRunning: s.engine.SequenceRunning(),
		Directories:     counts,
		Overrides:       len(s.engine.Overrides()),
	}
	if s.broadcaster != nil {
		resp.Watchers = s.broadcaster.SubscriberCount()
	}
	return resp, nil
}

// Shutdown asks the daemon to exit once the response has been sent.
func (s *Service) Shutdown(_ context.Context, _ *getinfov1.Empty) (*getinfov1.ShutdownResponse, error) {
	s.shutdownMu.Lock()
	fn := s.shutdown
	s.shutdownMu.Unlock()

	if fn == nil {
		return &getinfov1.ShutdownResponse{Success: false}, nil
	}
	s.log.Info("shutdown requested")
	go func() {
		time.Sleep(50 * time.Millisecond)
		fn()
	}()
	return &getinfov1.ShutdownResponse{Success: true}, nil
}
