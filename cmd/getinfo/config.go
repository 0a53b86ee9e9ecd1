package main

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage getinfo configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/getinfo/config.yaml (if set)
  2. ~/.config/getinfo/config.yaml

Environment variables can override config file settings using the GETINFO_ prefix:
  GETINFO_ROOT_PATH=/srv
  GETINFO_SCAN_READ_BATCH=256
  GETINFO_DAEMON_AUTO_START=false`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if cfg.File != "" {
		fmt.Printf("Config file: %s\n\n", cfg.File)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("root_path:                  %s\n", orNone(cfg.RootPath))
	fmt.Printf("scan.cancel_check_interval: %d\n", cfg.Scan.CancelCheckInterval)
	fmt.Printf("scan.idle_poll:             %s\n", cfg.Scan.IdlePoll)
	fmt.Printf("scan.notify_interval:       %s\n", cfg.Scan.NotifyInterval)
	fmt.Printf("scan.read_batch:            %d\n", cfg.Scan.ReadBatch)
	fmt.Printf("history.workers:            %d\n", cfg.History.Workers)
	fmt.Printf("store.path:                 %s\n", cfg.Store.Path)
	fmt.Printf("overlay.persist:            %t\n", cfg.Overlay.Persist)
	fmt.Printf("output.format:              %s\n", cfg.Output.Format)
	fmt.Printf("logging.level:              %s\n", cfg.Logging.Level)
	fmt.Printf("logging.path:               %s\n", orNone(cfg.Logging.Path))
	fmt.Printf("daemon.auto_start:          %t\n", cfg.Daemon.AutoStart)
	fmt.Printf("daemon.binary_path:         %s\n", orNone(cfg.Daemon.BinaryPath))
	fmt.Printf("daemon.socket_path:         %s\n", cfg.SocketPath())
	fmt.Printf("daemon.pid_path:            %s\n", cfg.PIDPath())

	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	var overrides []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "GETINFO_") {
			overrides = append(overrides, kv)
		}
	}
	sort.Strings(overrides)
	if len(overrides) == 0 {
		fmt.Println("(none)")
	}
	for _, kv := range overrides {
		fmt.Println(kv)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func runConfigEdit(_ *cobra.Command, _ []string) error {
	configPath, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath) //nolint:gosec // the user's own editor
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'getinfo config edit' to modify it.")
		return nil
	}

	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	printInfo("Created default config file: %s", configPath)
	return nil
}

func runConfigPath(_ *cobra.Command, _ []string) error {
	if cfg.File != "" {
		fmt.Println(cfg.File)
		return nil
	}
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	fmt.Println(configPath)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		printInfo("(file does not exist, run 'getinfo config init' to create it)")
	}
	return nil
}
