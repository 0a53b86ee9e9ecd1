// Package client connects to the getinfod daemon. It wraps the gRPC client
// with plain-argument methods and manages the daemon process.
package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	getinfov1 "github.com/zenonby/directory-getinfo/pkg/api/getinfo/v1"
	"github.com/zenonby/directory-getinfo/pkg/daemon"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/config"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/overlay"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// ErrDaemonNotRunning is returned when no daemon socket exists.
var ErrDaemonNotRunning = errors.New("daemon is not running")

// Client connects to the getinfod daemon via gRPC.
type Client struct {
	conn   *grpc.ClientConn
	client *getinfov1.GetInfoDaemonClient
}

// Connect establishes a connection to the daemon with a 5 second timeout.
func Connect(socketPath string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ConnectWithContext(ctx, socketPath)
}

// ConnectWithContext establishes a connection to the daemon. It blocks
// until the connection is up or ctx ends.
func ConnectWithContext(ctx context.Context, socketPath string) (*Client, error) {
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: no socket at %s", ErrDaemonNotRunning, socketPath)
	}

	//nolint:staticcheck // NewClient does not block until connected
	conn, err := grpc.DialContext(
		ctx,
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}

	return &Client{
		conn:   conn,
		client: getinfov1.NewGetInfoDaemonClient(conn),
	}, nil
}

// Close closes the connection to the daemon.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Focus makes path the scanner's focus. With wait set the call returns once
// the directory has settled.
func (c *Client) Focus(ctx context.Context, path string, wait bool) (types.ProcessingStatus, error) {
	resp, err := c.client.Focus(ctx, &getinfov1.FocusRequest{Path: path, Wait: wait})
	if err != nil {
		return types.StatusPending, fmt.Errorf("Focus RPC failed: %w", err)
	}
	return resp.Status, nil
}

// ScanSequence starts a background scan of paths, or of every root when all
// is set. It returns the targets the daemon resolved.
func (c *Client) ScanSequence(ctx context.Context, paths []string, all bool) ([]string, error) {
	resp, err := c.client.ScanSequence(ctx, &getinfov1.ScanSequenceRequest{Paths: paths, All: all})
	if err != nil {
		return nil, fmt.Errorf("ScanSequence RPC failed: %w", err)
	}
	if !resp.Started {
		return nil, errors.New("scan sequence not started")
	}
	return resp.Targets, nil
}

// CancelSequence stops a running scan sequence.
func (c *Client) CancelSequence(ctx context.Context) error {
	if err := c.client.CancelSequence(ctx); err != nil {
		return fmt.Errorf("CancelSequence RPC failed: %w", err)
	}
	return nil
}

// Directory returns the known state of path, optionally with its children.
func (c *Client) Directory(ctx context.Context, path string, children bool) (*getinfov1.GetDirectoryResponse, error) {
	resp, err := c.client.GetDirectory(ctx, &getinfov1.GetDirectoryRequest{Path: path, Children: children})
	if err != nil {
		return nil, fmt.Errorf("GetDirectory RPC failed: %w", err)
	}
	return resp, nil
}

// SetEnabled enables or disables scanning of path and its subtree.
func (c *Client) SetEnabled(ctx context.Context, path string, enabled bool) error {
	if _, err := c.client.SetEnabled(ctx, &getinfov1.SetEnabledRequest{Path: path, Enabled: enabled}); err != nil {
		return fmt.Errorf("SetEnabled RPC failed: %w", err)
	}
	return nil
}

// IsEnabled reports whether path would be scanned.
func (c *Client) IsEnabled(ctx context.Context, path string) (bool, error) {
	resp, err := c.client.IsEnabled(ctx, &getinfov1.IsEnabledRequest{Path: path})
	if err != nil {
		return false, fmt.Errorf("IsEnabled RPC failed: %w", err)
	}
	return resp.Enabled, nil
}

// Overrides lists the explicit enable/disable settings.
func (c *Client) Overrides(ctx context.Context) ([]overlay.Entry, error) {
	resp, err := c.client.ListOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListOverrides RPC failed: %w", err)
	}
	return resp.Entries, nil
}

// SaveSnapshot persists the finished directories.
func (c *Client) SaveSnapshot(ctx context.Context) (types.SnapshotHeader, error) {
	resp, err := c.client.SaveSnapshot(ctx)
	if err != nil {
		return types.SnapshotHeader{}, fmt.Errorf("SaveSnapshot RPC failed: %w", err)
	}
	return resp.Snapshot, nil
}

// Snapshots lists the saved snapshot headers, oldest first.
func (c *Client) Snapshots(ctx context.Context) ([]types.SnapshotHeader, error) {
	resp, err := c.client.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListSnapshots RPC failed: %w", err)
	}
	return resp.Snapshots, nil
}

func (c *Client) DeleteSnapshot(ctx context.Context, id string) error {
	if err := c.client.DeleteSnapshot(ctx, &getinfov1.DeleteSnapshotRequest{ID: id}); err != nil {
		return fmt.Errorf("DeleteSnapshot RPC failed: %w", err)
	}
	return nil
}

// History returns the saved size trend of path, oldest first.
func (c *Client) History(ctx context.Context, path string) ([]types.SizePoint, error) {
	resp, err := c.client.History(ctx, &getinfov1.HistoryRequest{Path: path})
	if err != nil {
		return nil, fmt.Errorf("History RPC failed: %w", err)
	}
	return resp.Points, nil
}

// Status returns the daemon's current status.
func (c *Client) Status(ctx context.Context) (*getinfov1.StatusResponse, error) {
	resp, err := c.client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("Status RPC failed: %w", err)
	}
	return resp, nil
}

// Shutdown requests the daemon to shut down gracefully.
func (c *Client) Shutdown(ctx context.Context) error {
	resp, err := c.client.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("Shutdown RPC failed: %w", err)
	}
	if !resp.Success {
		return errors.New("shutdown request was not successful")
	}
	return nil
}

// Watch subscribes to scanner events under root. The channel closes when
// ctx ends or the stream breaks.
func (c *Client) Watch(ctx context.Context, root string) (<-chan *getinfov1.WatchEvent, error) {
	stream, err := c.client.Watch(ctx, &getinfov1.WatchRequest{Root: root})
	if err != nil {
		return nil, fmt.Errorf("Watch RPC failed: %w", err)
	}

	events := make(chan *getinfov1.WatchEvent, 100)
	go func() {
		defer close(events)
		for {
			ev, err := stream.Recv()
			if err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// DaemonPaths configures paths for daemon operations. Empty fields use
// defaults.
type DaemonPaths struct {
	Binary string // getinfod binary, auto-discovered if empty
	Socket string
	PID    string
}

// PathsFromConfig takes the daemon paths from cfg.
func PathsFromConfig(cfg *config.Config) DaemonPaths {
	return DaemonPaths{
		Binary: cfg.Daemon.BinaryPath,
		Socket: cfg.SocketPath(),
		PID:    cfg.PIDPath(),
	}
}

func (p DaemonPaths) withDefaults() DaemonPaths {
	if p.Socket == "" {
		p.Socket = config.DefaultSocketPath()
	}
	if p.PID == "" {
		p.PID = config.DefaultPIDPath()
	}
	return p
}

// IsDaemonRunning reports whether the daemon named by the PID file is alive.
func IsDaemonRunning(paths DaemonPaths) bool {
	return daemon.IsDaemonRunning(paths.withDefaults().PID)
}

// StartDaemon starts getinfod in the background and waits for it to come
// up. It returns nil if the daemon is already running.
func StartDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()
	if daemon.IsDaemonRunning(paths.PID) {
		return nil
	}

	binary, err := resolveBinary(paths.Binary)
	if err != nil {
		return fmt.Errorf("find %s: %w", config.DaemonBinary, err)
	}

	statusPath := daemon.StatusPath(paths.Socket)
	_ = daemon.RemoveStatus(statusPath)

	// not CommandContext: the daemon outlives the caller
	cmd := exec.Command(binary) //nolint:gosec // binary path is resolved above
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	for range 50 {
		time.Sleep(100 * time.Millisecond)

		if _, err := os.Stat(paths.Socket); err == nil {
			return nil
		}
		if st, err := daemon.ReadStatus(statusPath); err == nil {
			switch st.Status {
			case daemon.StatusReady:
				return nil
			case daemon.StatusError:
				return fmt.Errorf("daemon failed to start: %s", st.Error)
			}
		}
	}
	return errors.New("daemon did not become ready within timeout")
}

// StopDaemon asks the daemon to shut down and waits for it to exit. It
// returns nil if the daemon is not running.
func StopDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()
	if !daemon.IsDaemonRunning(paths.PID) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := ConnectWithContext(ctx, paths.Socket)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer c.Close()

	if err := c.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown daemon: %w", err)
	}

	for range 20 {
		time.Sleep(250 * time.Millisecond)
		if !daemon.IsDaemonRunning(paths.PID) {
			return nil
		}
	}
	return errors.New("daemon did not stop within timeout")
}

// RestartDaemon stops and starts the daemon.
func RestartDaemon(paths DaemonPaths) error {
	if err := StopDaemon(paths); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if err := StartDaemon(paths); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return nil
}

// resolveBinary finds getinfod. Priority: configured path, then next to the
// running executable, then the Go install locations, then PATH.
func resolveBinary(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured binary not found: %s", configured)
		}
		return configured, nil
	}

	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), config.DaemonBinary)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if p := config.DefaultBinaryPath(); p != "" {
		return p, nil
	}

	if p, err := exec.LookPath(config.DaemonBinary); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("%s not found", config.DaemonBinary)
}
