// Command getinfod is the getinfo background daemon. It keeps one scanner
// engine alive and serves it over a unix socket.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/zenonby/directory-getinfo/pkg/daemon"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/config"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "getinfod: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logCfg, err := cfg.LoggingInit()
	if err != nil {
		return err
	}
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logging.Close() }()
	log := logging.Get("daemon")

	socketPath, pidPath := cfg.SocketPath(), cfg.PIDPath()
	statusPath := daemon.StatusPath(socketPath)

	// startup failures are reported through the status file so the
	// launching CLI can show them
	fail := func(err error) error {
		_ = daemon.WriteStatusError(statusPath, err)
		log.Error("startup failed", "err", err)
		return err
	}

	for _, dir := range []string{filepath.Dir(socketPath), filepath.Dir(pidPath), filepath.Dir(cfg.Store.Path)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fail(fmt.Errorf("create %s: %w", dir, err))
		}
	}

	if err := daemon.RecoverFromStaleDaemon(pidPath, socketPath, cfg.Store.Path); err != nil {
		return fail(err)
	}

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		return fail(err)
	}

	srv, err := daemon.NewServer(daemon.Config{
		SocketPath: socketPath,
		DataDir:    filepath.Dir(cfg.Store.Path),
		StorePath:  cfg.Store.Path,
		Engine:     opts,
	})
	if err != nil {
		return fail(fmt.Errorf("create server: %w", err))
	}

	if err := daemon.WritePIDFile(pidPath); err != nil {
		_ = srv.Close()
		return fail(fmt.Errorf("write pid file: %w", err))
	}
	defer func() {
		if err := daemon.RemovePIDFile(pidPath); err != nil {
			log.Warn("failed to remove pid file", "err", err)
		}
		_ = daemon.RemoveStatus(statusPath)
	}()

	stop := func() {
		log.Info("shutting down")
		if err := srv.Close(); err != nil {
			log.Warn("error during shutdown", "err", err)
		}
	}
	srv.Service().SetShutdownFunc(stop)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("signal received", "signal", sig.String())
		stop()
	}()

	if err := daemon.WriteStatusReady(statusPath); err != nil {
		log.Warn("failed to write status file", "err", err)
	}

	serveErr := srv.Serve()
	// waits for a shutdown already in progress to release the store
	_ = srv.Close()
	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	return nil
}
