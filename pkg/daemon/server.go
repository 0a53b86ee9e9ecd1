package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/grpc"

	getinfov1 "github.com/zenonby/directory-getinfo/pkg/api/getinfo/v1"
	"github.com/zenonby/directory-getinfo/pkg/daemon/broadcaster"
	"github.com/zenonby/directory-getinfo/pkg/daemon/store"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/service"
)

// Config holds daemon configuration.
type Config struct {
	SocketPath string
	DataDir    string

	// StorePath is the badger directory. Defaults to DataDir/snapshots.db.
	StorePath string

	Engine service.Options
}

// Server is the getinfod gRPC server. It owns the store, the engine and the
// event broadcaster.
type Server struct {
	cfg      Config
	grpc     *grpc.Server
	listener net.Listener

	store       *store.Store
	engine      *service.ScannerService
	broadcaster *broadcaster.Broadcaster
	service     *Service
	unsubscribe func()

	closeOnce sync.Once
	closeErr  error
}

// NewServer opens the store, builds the engine and listens on the socket.
// The engine is started by Serve.
func NewServer(cfg Config) (*Server, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	if cfg.StorePath == "" {
		cfg.StorePath = filepath.Join(cfg.DataDir, "snapshots.db")
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	engineOpts := cfg.Engine
	engineOpts.Persistence = st
	engine, err := service.New(engineOpts)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	if err := os.RemoveAll(cfg.SocketPath); err != nil {
		_ = engine.Close()
		_ = st.Close()
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SocketPath), 0o755); err != nil {
		_ = engine.Close()
		_ = st.Close()
		return nil, err
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "unix", cfg.SocketPath)
	if err != nil {
		_ = engine.Close()
		_ = st.Close()
		return nil, err
	}

	b := broadcaster.New()
	srv := &Server{
		cfg:         cfg,
		grpc:        grpc.NewServer(),
		listener:    listener,
		store:       st,
		engine:      engine,
		broadcaster: b,
		service:     NewService(engine, b),
		unsubscribe: engine.Subscribe(b),
	}
	srv.service.SetShutdownFunc(func() { _ = srv.Close() })
	getinfov1.RegisterGetInfoDaemonServer(srv.grpc, srv.service)
	return srv, nil
}

// Service returns the RPC service. By default the Shutdown RPC closes the
// server; callers replace the hook to add their own cleanup.
func (s *Server) Service() *Service {
	return s.service
}

// Engine returns the scanner service the daemon drives.
func (s *Server) Engine() *service.ScannerService {
	return s.engine
}

// Serve starts the engine and the gRPC server. Blocks until stopped.
func (s *Server) Serve() error {
	s.engine.Start()
	logging.Get("daemon").Info("serving", "socket", s.cfg.SocketPath, "root", s.engine.RootPath())
	err := s.grpc.Serve(s.listener)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Close stops the server and releases everything it owns. Extra calls
// return the first result.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		// watch streams and focus waits end before GracefulStop waits on them
		s.unsubscribe()
		s.broadcaster.Close()
		errEngine := s.engine.Close()
		s.grpc.GracefulStop()
		errStore := s.store.Close()
		errSock := os.RemoveAll(s.cfg.SocketPath)
		s.closeErr = errors.Join(errEngine, errStore, errSock)
	})
	return s.closeErr
}
