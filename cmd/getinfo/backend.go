package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zenonby/directory-getinfo/pkg/client"
	"github.com/zenonby/directory-getinfo/pkg/daemon/store"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/config"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/orchestrator"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/output"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/overlay"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/paths"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/scanner"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/service"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// errNotScanned is returned by Report for a directory the engine has not
// visited.
var errNotScanned = errors.New("directory has not been scanned")

// errNeedsDaemon is returned for operations that only make sense against a
// long-lived engine.
var errNeedsDaemon = errors.New("this command needs the daemon (start it with: getinfo daemon start)")

// sequencePoll is how often a daemon sequence is checked for completion.
const sequencePoll = 200 * time.Millisecond

// backend is where commands get their data: the daemon over its socket, or
// an engine running inside the CLI process.
type backend interface {
	DaemonUp() bool
	FocusAndWait(ctx context.Context, path string) (types.ProcessingStatus, error)
	// ScanSequence scans targets (or every root when all is set) one after
	// another and blocks until the sequence ends.
	ScanSequence(ctx context.Context, targets []string, all bool) ([]orchestrator.TargetStatus, error)
	Report(ctx context.Context, path string) (*output.Report, error)
	SetEnabled(ctx context.Context, path string, enabled bool) error
	IsEnabled(ctx context.Context, path string) (bool, error)
	Overrides(ctx context.Context) ([]overlay.Entry, error)
	SaveSnapshot(ctx context.Context) (types.SnapshotHeader, error)
	Snapshots(ctx context.Context) ([]types.SnapshotHeader, error)
	DeleteSnapshot(ctx context.Context, id string) error
	History(ctx context.Context, path string) ([]types.SizePoint, error)
	// Events streams directory events under root until ctx ends.
	Events(ctx context.Context, root string) (<-chan scanner.DirectoryInfo, error)
	Close() error
}

// openBackend connects to the daemon, starting it when auto_start is set,
// and falls back to an in-process engine. Warnings describe any fallback.
func openBackend(cfg *config.Config, noDaemon bool) (backend, []string, error) {
	var warnings []string
	if !noDaemon {
		dp := client.PathsFromConfig(cfg)
		if !client.IsDaemonRunning(dp) && cfg.Daemon.AutoStart {
			printVerbose("starting daemon...")
			if err := client.StartDaemon(dp); err != nil {
				warnings = append(warnings, fmt.Sprintf("daemon unavailable: %v", err))
			}
		}
		if client.IsDaemonRunning(dp) {
			c, err := client.Connect(dp.Socket)
			if err == nil {
				printVerbose("using daemon at %s", dp.Socket)
				return &daemonBackend{c: c}, warnings, nil
			}
			warnings = append(warnings, fmt.Sprintf("daemon not responding: %v", err))
		}
	}

	lb, warn, err := openLocal(cfg)
	if warn != "" {
		warnings = append(warnings, warn)
	}
	return lb, warnings, err
}

// withBackend opens a backend for one command and closes it when fn
// returns. The context ends on SIGINT or SIGTERM.
func withBackend(fn func(ctx context.Context, be backend, warnings []string) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, warnings, err := openBackend(cfg, viper.GetBool("no_daemon"))
	if err != nil {
		return err
	}
	defer be.Close()
	return fn(ctx, be, warnings)
}

// daemonBackend talks to getinfod.
type daemonBackend struct {
	c *client.Client
}

func (d *daemonBackend) DaemonUp() bool { return true }

func (d *daemonBackend) FocusAndWait(ctx context.Context, path string) (types.ProcessingStatus, error) {
	return d.c.Focus(ctx, path, true)
}

func (d *daemonBackend) ScanSequence(ctx context.Context, targets []string, all bool) ([]orchestrator.TargetStatus, error) {
	resolved, err := d.c.ScanSequence(ctx, targets, all)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(sequencePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = d.c.CancelSequence(cctx) //nolint:contextcheck // ctx is already done
			return nil, ctx.Err()
		case <-ticker.C:
		}
		st, err := d.c.Status(ctx)
		if err != nil {
			return nil, err
		}
		if !st.SequenceRunning {
			break
		}
	}

	out := make([]orchestrator.TargetStatus, 0, len(resolved))
	for _, t := range resolved {
		ts := orchestrator.TargetStatus{Path: t, Status: types.StatusPending}
		if dir, err := d.c.Directory(ctx, t, false); err == nil {
			ts.Status = dir.Status
		}
		out = append(out, ts)
	}
	return out, nil
}

func (d *daemonBackend) Report(ctx context.Context, path string) (*output.Report, error) {
	dir, err := d.c.Directory(ctx, path, true)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%w: %s", errNotScanned, path)
	}
	if err != nil {
		return nil, err
	}
	rep := &output.Report{
		Entry:    output.Entry{Path: dir.Path, Status: dir.Status, Stats: dir.Stats},
		Mime:     dir.Mime,
		DaemonUp: true,
	}
	for _, c := range dir.Children {
		rep.Children = append(rep.Children, output.Entry{Path: c.Path, Status: c.Status, Stats: c.Stats})
	}
	rep.SortChildren()
	return rep, nil
}

func (d *daemonBackend) SetEnabled(ctx context.Context, path string, enabled bool) error {
	return d.c.SetEnabled(ctx, path, enabled)
}

func (d *daemonBackend) IsEnabled(ctx context.Context, path string) (bool, error) {
	return d.c.IsEnabled(ctx, path)
}

func (d *daemonBackend) Overrides(ctx context.Context) ([]overlay.Entry, error) {
	return d.c.Overrides(ctx)
}

func (d *daemonBackend) SaveSnapshot(ctx context.Context) (types.SnapshotHeader, error) {
	return d.c.SaveSnapshot(ctx)
}

func (d *daemonBackend) Snapshots(ctx context.Context) ([]types.SnapshotHeader, error) {
	return d.c.Snapshots(ctx)
}

func (d *daemonBackend) DeleteSnapshot(ctx context.Context, id string) error {
	return d.c.DeleteSnapshot(ctx, id)
}

func (d *daemonBackend) History(ctx context.Context, path string) ([]types.SizePoint, error) {
	return d.c.History(ctx, path)
}

func (d *daemonBackend) Events(ctx context.Context, root string) (<-chan scanner.DirectoryInfo, error) {
	events, err := d.c.Watch(ctx, root)
	if err != nil {
		return nil, err
	}
	out := make(chan scanner.DirectoryInfo, 100)
	go func() {
		defer close(out)
		for ev := range events {
			if ev.Directory == nil {
				continue
			}
			select {
			case out <- *ev.Directory:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (d *daemonBackend) Close() error {
	return d.c.Close()
}

// localBackend runs an engine inside the CLI process. Its snapshot store is
// the daemon's database, which is only available while no daemon holds it.
type localBackend struct {
	engine *service.ScannerService
	store  *store.Store
}

func openLocal(cfg *config.Config) (*localBackend, string, error) {
	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		return nil, "", err
	}

	var warning string
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		warning = fmt.Sprintf("snapshot store unavailable, history and --save disabled: %v", err)
	} else {
		opts.Persistence = st
	}

	engine, err := service.New(opts)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, warning, err
	}
	engine.Start()
	return &localBackend{engine: engine, store: st}, warning, nil
}

func (l *localBackend) DaemonUp() bool { return false }

func (l *localBackend) FocusAndWait(ctx context.Context, path string) (types.ProcessingStatus, error) {
	return l.engine.FocusAndWait(ctx, path)
}

func (l *localBackend) ScanSequence(ctx context.Context, targets []string, all bool) ([]orchestrator.TargetStatus, error) {
	done := make(chan orchestrator.Result, 1)
	onComplete := func(r orchestrator.Result) { done <- r }

	var err error
	if all {
		err = l.engine.ScanAll(ctx, onComplete)
	} else {
		err = l.engine.ScanSequentially(ctx, targets, onComplete)
	}
	if err != nil {
		return nil, err
	}

	select {
	case r := <-done:
		return r.Targets, r.Err
	case <-ctx.Done():
		l.engine.CancelSequence()
		l.engine.WaitSequence()
		return nil, ctx.Err()
	}
}

func (l *localBackend) Report(_ context.Context, path string) (*output.Report, error) {
	rec, err := l.engine.Directory(path)
	if errors.Is(err, service.ErrUnknownDirectory) {
		return nil, fmt.Errorf("%w: %s", errNotScanned, path)
	}
	if err != nil {
		return nil, err
	}
	children, err := l.engine.Children(path)
	if err != nil {
		return nil, err
	}

	rep := &output.Report{Entry: output.Entry{Path: path, Status: rec.Status, Stats: rec.Stats}}
	if rec.Mime != nil {
		rep.Mime = rec.Mime.Sizes()
	}
	for _, c := range children {
		rep.Children = append(rep.Children, output.Entry{Path: c.Path, Status: c.Status, Stats: c.Stats})
	}
	rep.SortChildren()
	return rep, nil
}

func (l *localBackend) SetEnabled(_ context.Context, path string, enabled bool) error {
	return l.engine.SetEnabled(path, enabled)
}

func (l *localBackend) IsEnabled(_ context.Context, path string) (bool, error) {
	return l.engine.IsEnabled(path)
}

func (l *localBackend) Overrides(_ context.Context) ([]overlay.Entry, error) {
	return l.engine.Overrides(), nil
}

func (l *localBackend) SaveSnapshot(ctx context.Context) (types.SnapshotHeader, error) {
	return l.engine.SaveSnapshot(ctx)
}

func (l *localBackend) Snapshots(ctx context.Context) ([]types.SnapshotHeader, error) {
	return l.engine.Snapshots(ctx)
}

func (l *localBackend) DeleteSnapshot(ctx context.Context, id string) error {
	return l.engine.DeleteSnapshot(ctx, id)
}

// History goes through the engine's latest-wins history queue: this process
// is its only consumer, so the request is never replaced.
func (l *localBackend) History(ctx context.Context, path string) ([]types.SizePoint, error) {
	type result struct {
		points []types.SizePoint
		err    error
	}
	out := make(chan result, 1)
	err := l.engine.RequestHistory(path, func(_ string, points []types.SizePoint, err error) {
		out <- result{points: points, err: err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case r := <-out:
		return r.points, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *localBackend) Events(ctx context.Context, root string) (<-chan scanner.DirectoryInfo, error) {
	sink := &chanSink{root: root, ch: make(chan scanner.DirectoryInfo, 256)}
	unsubscribe := l.engine.Subscribe(sink)
	go func() {
		<-ctx.Done()
		unsubscribe()
		close(sink.ch)
	}()
	return sink.ch, nil
}

func (l *localBackend) Close() error {
	err := l.engine.Close()
	if l.store != nil {
		err = errors.Join(err, l.store.Close())
	}
	return err
}

// chanSink forwards directory events under root to a channel, dropping
// them when the reader falls behind.
type chanSink struct {
	root string
	ch   chan scanner.DirectoryInfo
}

func (s *chanSink) OnDirectoryInfo(info scanner.DirectoryInfo) {
	if s.root != "" && !paths.IsAncestorOrEqual(s.root, info.Path) {
		return
	}
	select {
	case s.ch <- info:
	default:
	}
}

func (s *chanSink) OnMimeSizes(scanner.MimeSizesInfo) {}

func (s *chanSink) OnWorkerFailure(err error) {
	printVerbose("scanner failure: %v", err)
}
