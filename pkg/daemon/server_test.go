package daemon_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	getinfov1 "github.com/zenonby/directory-getinfo/pkg/api/getinfo/v1"
	"github.com/zenonby/directory-getinfo/pkg/daemon"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/paths"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/scanner"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/service"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// shortSocket keeps unix socket paths under the platform length limit.
func shortSocket(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "gi")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "d.sock")
}

func createTestTree(t *testing.T) string {
	t.Helper()
	root, err := paths.Unify(t.TempDir())
	require.NoError(t, err)
	for rel, content := range map[string]string{"a.txt": "aaaa", "sub/b.go": "bb"} {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func startServer(t *testing.T, root string) (*daemon.Server, *getinfov1.GetInfoDaemonClient) {
	t.Helper()
	sock := shortSocket(t)
	srv, err := daemon.NewServer(daemon.Config{
		SocketPath: sock,
		DataDir:    t.TempDir(),
		Engine: service.Options{
			Scanner: scanner.Options{
				RootPath:       root,
				IdlePoll:       5 * time.Millisecond,
				NotifyInterval: 10 * time.Millisecond,
			},
			PersistOverlay: true,
		},
	})
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient("unix://"+sock,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", sock)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, getinfov1.NewGetInfoDaemonClient(conn)
}

func TestNewServer(t *testing.T) {
	srv, err := daemon.NewServer(daemon.Config{
		SocketPath: shortSocket(t),
		DataDir:    t.TempDir(),
	})
	require.NoError(t, err)
	require.NotNil(t, srv)
	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())
}

func TestServer_FocusSnapshotHistory(t *testing.T) {
	root := createTestTree(t)
	_, c := startServer(t, root)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := c.Focus(ctx, &getinfov1.FocusRequest{Path: root, Wait: true})
	require.NoError(t, err)
	assert.Equal(t, types.StatusReady, resp.Status)

	dir, err := c.GetDirectory(ctx, &getinfov1.GetDirectoryRequest{Path: root, Children: true})
	require.NoError(t, err)
	assert.Equal(t, types.NewStats(1, 2, 6), dir.Stats)
	require.Len(t, dir.Children, 1)
	assert.Equal(t, filepath.Join(root, "sub"), dir.Children[0].Path)
	require.NotEmpty(t, dir.Mime)
	assert.Equal(t, types.AllExtensions, dir.Mime[0].Extension)

	snap, err := c.SaveSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Snapshot.Rows)

	hist, err := c.History(ctx, &getinfov1.HistoryRequest{Path: root})
	require.NoError(t, err)
	require.Len(t, hist.Points, 1)
	assert.Equal(t, uint64(6), hist.Points[0].TotalSize)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), st.PID)
	assert.Equal(t, root, st.RootPath)
	assert.Equal(t, 2, st.Directories["ready"])
}

func TestServer_Overrides(t *testing.T) {
	root := createTestTree(t)
	_, c := startServer(t, root)
	ctx := context.Background()
	sub := filepath.Join(root, "sub")

	resp, err := c.SetEnabled(ctx, &getinfov1.SetEnabledRequest{Path: sub, Enabled: false})
	require.NoError(t, err)
	assert.False(t, resp.Enabled)

	list, err := c.ListOverrides(ctx)
	require.NoError(t, err)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, sub, list.Entries[0].Path)

	en, err := c.IsEnabled(ctx, &getinfov1.IsEnabledRequest{Path: root})
	require.NoError(t, err)
	assert.True(t, en.Enabled)
}

func TestServer_Watch(t *testing.T) {
	root := createTestTree(t)
	_, c := startServer(t, root)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := c.Watch(ctx, &getinfov1.WatchRequest{Root: root})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := c.Status(ctx)
		return err == nil && st.Watchers == 1
	}, 5*time.Second, 10*time.Millisecond)

	go func() {
		_, _ = c.Focus(ctx, &getinfov1.FocusRequest{Path: root, Wait: true})
	}()

	for {
		ev, err := stream.Recv()
		require.NoError(t, err)
		if ev.Type == "directory" && ev.Directory.Path == root && ev.Directory.Status == types.StatusReady {
			break
		}
	}
}

func TestServer_ListAndDeleteSnapshots(t *testing.T) {
	root := createTestTree(t)
	_, c := startServer(t, root)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := c.Focus(ctx, &getinfov1.FocusRequest{Path: root, Wait: true})
	require.NoError(t, err)
	first, err := c.SaveSnapshot(ctx)
	require.NoError(t, err)
	second, err := c.SaveSnapshot(ctx)
	require.NoError(t, err)

	list, err := c.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list.Snapshots, 2)
	assert.Equal(t, first.Snapshot.ID, list.Snapshots[0].ID)

	require.NoError(t, c.DeleteSnapshot(ctx, &getinfov1.DeleteSnapshotRequest{ID: first.Snapshot.ID}))
	list, err = c.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, second.Snapshot.ID, list.Snapshots[0].ID)

	hist, err := c.History(ctx, &getinfov1.HistoryRequest{Path: root})
	require.NoError(t, err)
	assert.Len(t, hist.Points, 1)

	err = c.DeleteSnapshot(ctx, &getinfov1.DeleteSnapshotRequest{ID: first.Snapshot.ID})
	assert.Equal(t, codes.NotFound, status.Code(err))
	err = c.DeleteSnapshot(ctx, &getinfov1.DeleteSnapshotRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_ErrorCodes(t *testing.T) {
	root := createTestTree(t)
	_, c := startServer(t, root)
	ctx := context.Background()

	_, err := c.GetDirectory(ctx, &getinfov1.GetDirectoryRequest{Path: filepath.Join(root, "sub")})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.Focus(ctx, &getinfov1.FocusRequest{Path: filepath.Join(root, "a.txt")})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Focus(ctx, &getinfov1.FocusRequest{Path: filepath.Dir(root)})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Focus(ctx, &getinfov1.FocusRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
