package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// DaemonConfig configures the background daemon.
type DaemonConfig struct {
	AutoStart  bool   `mapstructure:"auto_start"`
	BinaryPath string `mapstructure:"binary_path"` // getinfod binary, auto-discovered if empty
	SocketPath string `mapstructure:"socket_path"`
	PIDPath    string `mapstructure:"pid_path"`
}

// ScanConfig tunes the directory scanner.
type ScanConfig struct {
	CancelCheckInterval int           `mapstructure:"cancel_check_interval"`
	IdlePoll            time.Duration `mapstructure:"idle_poll"`
	NotifyInterval      time.Duration `mapstructure:"notify_interval"`
	ReadBatch           int           `mapstructure:"read_batch"`
}

// Config represents the application configuration.
type Config struct {
	RootPath string     `mapstructure:"root_path"`
	Scan     ScanConfig `mapstructure:"scan"`
	History  struct {
		Workers int `mapstructure:"workers"`
	} `mapstructure:"history"`
	Store struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"store"`
	Overlay struct {
		Persist bool `mapstructure:"persist"`
	} `mapstructure:"overlay"`
	Output struct {
		Format string `mapstructure:"format"`
	} `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/getinfo/config.yaml
//   - $HOME/.config/getinfo/config.yaml
//
// Environment variables are prefixed with GETINFO_ (e.g., GETINFO_ROOT_PATH).
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations; a missing explicit file is an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "getinfo"))
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "getinfo"))
	}

	v.SetEnvPrefix("GETINFO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.File = v.ConfigFileUsed()

	var err error
	for _, p := range []*string{&cfg.RootPath, &cfg.Store.Path, &cfg.Logging.Path, &cfg.Daemon.SocketPath, &cfg.Daemon.PIDPath} {
		if *p, err = ExpandPath(*p); err != nil {
			return nil, err
		}
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultDBPath()
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root_path", "")

	v.SetDefault("scan.cancel_check_interval", DefaultCancelCheckInterval)
	v.SetDefault("scan.idle_poll", DefaultIdlePoll)
	v.SetDefault("scan.notify_interval", DefaultNotifyInterval)
	v.SetDefault("scan.read_batch", DefaultReadBatch)

	v.SetDefault("history.workers", DefaultHistoryWorkers)
	v.SetDefault("store.path", "") // empty means DefaultDBPath
	v.SetDefault("overlay.persist", true)
	v.SetDefault("output.format", DefaultOutputFormat)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"daemon":    "info",
		"scanner":   "info",
		"workstack": "warn",
		"tui":       "info",
	})

	v.SetDefault("daemon.auto_start", true)
	v.SetDefault("daemon.socket_path", "")
	v.SetDefault("daemon.pid_path", "")
}

// LoggingInit converts the logging section for logging.Init.
func (c *Config) LoggingInit() (logging.Config, error) {
	rot := logging.RotationConfig{
		MaxAge:     c.Logging.Rotation.MaxAge,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		Daily:      c.Logging.Rotation.Daily,
	}
	if c.Logging.Rotation.MaxSize != "" {
		size, err := types.ParseSize(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("logging.rotation.max_size: %w", err)
		}
		rot.MaxSize = int64(size)
	}
	return logging.Config{
		Level:      c.Logging.Level,
		Path:       c.Logging.Path,
		Rotation:   rot,
		Components: c.Logging.Components,
	}, nil
}

// SocketPath returns the configured socket path or the default.
func (c *Config) SocketPath() string {
	if c.Daemon.SocketPath != "" {
		return c.Daemon.SocketPath
	}
	return DefaultSocketPath()
}

// PIDPath returns the configured PID file path or the default.
func (c *Config) PIDPath() string {
	if c.Daemon.PIDPath != "" {
		return c.Daemon.PIDPath
	}
	return DefaultPIDPath()
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "getinfo"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "getinfo"), nil
}

// ConfigPath returns the path of the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	content := fmt.Sprintf(`# getinfo configuration

# Directories above this path are never scanned (empty: whole filesystem)
root_path: ""

scan:
  # Directory entries processed between cancellation checks
  cancel_check_interval: %d
  idle_poll: %s
  notify_interval: %s
  read_batch: %d

history:
  # Concurrent history loads (0: sized from the CPU count)
  workers: %d

store:
  # Snapshot database (empty means default: $XDG_DATA_HOME/getinfo/snapshots.db)
  path: ""

overlay:
  # Remember enable/disable overrides between runs
  persist: true

output:
  # pretty, plain, json or yaml
  format: %s

logging:
  level: info
  # empty means default: $XDG_STATE_HOME/getinfo/getinfo.log
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    daemon: info
    scanner: info
    workstack: warn
    tui: info

daemon:
  auto_start: true
  socket_path: ""
  pid_path: ""
`, DefaultCancelCheckInterval, DefaultIdlePoll, DefaultNotifyInterval, DefaultReadBatch,
		DefaultHistoryWorkers, DefaultOutputFormat)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return path, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/getinfo/ for the database, socket and pid files.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "getinfo")
}

// StateDir returns $XDG_STATE_HOME/getinfo/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "getinfo")
}

// DefaultSocketPath returns the default Unix socket path.
func DefaultSocketPath() string {
	return filepath.Join(DataDir(), "getinfo.sock")
}

// DefaultPIDPath returns the default PID file path.
func DefaultPIDPath() string {
	return filepath.Join(DataDir(), "getinfo.pid")
}

// DefaultDBPath returns the default snapshot database path.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "snapshots.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// DefaultBinaryPath returns the first getinfod found in the Go install
// locations ($GOBIN, $GOPATH/bin, $HOME/go/bin), or "" if none exists.
func DefaultBinaryPath() string {
	var dirs []string
	if gobin := os.Getenv("GOBIN"); gobin != "" {
		dirs = append(dirs, gobin)
	}
	if gopath := os.Getenv("GOPATH"); gopath != "" {
		dirs = append(dirs, filepath.Join(gopath, "bin"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "go", "bin"))
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, DaemonBinary)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
