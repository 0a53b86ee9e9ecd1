package daemon

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
)

// RecoverFromStaleDaemon removes the PID file, socket and badger LOCK left
// behind by a daemon that died without cleaning up. It returns
// ErrDaemonAlreadyRunning if the recorded process is still alive.
func RecoverFromStaleDaemon(pidPath, socketPath, storePath string) error {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return nil //nolint:nilerr // missing or invalid PID file leaves nothing to recover
	}

	if IsProcessRunning(pid) {
		return ErrDaemonAlreadyRunning
	}

	logging.Get("daemon").Warn("cleaning up stale daemon files", "stale_pid", pid)

	_ = os.Remove(pidPath)
	_ = os.Remove(socketPath)
	_ = os.Remove(filepath.Join(storePath, "LOCK"))
	return nil
}

// IsProcessRunning checks pid with signal 0. EPERM means the process exists
// but belongs to someone else.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
