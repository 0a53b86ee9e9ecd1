package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zenonby/directory-getinfo/pkg/client"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/output"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the getinfod daemon",
	Long: `Manage the getinfod daemon.

The daemon keeps one scanner engine alive between commands, so results,
overrides and running scans survive the CLI exiting. It also owns the
snapshot store.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the getinfod daemon",
	Long:  `Start the getinfod daemon in the background.`,
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the getinfod daemon",
	Long:  `Stop the getinfod daemon gracefully.`,
	RunE:  runDaemonStop,
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the getinfod daemon",
	Long:  `Stop and start the getinfod daemon.`,
	RunE:  runDaemonRestart,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Show the current status of the getinfod daemon.`,
	RunE:  runDaemonStatus,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonRestartCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
}

func runDaemonStart(_ *cobra.Command, _ []string) error {
	dp := client.PathsFromConfig(cfg)
	if client.IsDaemonRunning(dp) {
		printInfo("Daemon already running")
		return nil
	}
	printVerbose("starting daemon, socket %s", dp.Socket)
	if err := client.StartDaemon(dp); err != nil {
		return err
	}
	printInfo("Daemon started")
	return nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	dp := client.PathsFromConfig(cfg)
	if !client.IsDaemonRunning(dp) {
		printInfo("Daemon is not running")
		return nil
	}
	printVerbose("sending shutdown request to %s", dp.Socket)
	if err := client.StopDaemon(dp); err != nil {
		return err
	}
	printInfo("Daemon stopped")
	return nil
}

func runDaemonRestart(_ *cobra.Command, _ []string) error {
	if err := client.RestartDaemon(client.PathsFromConfig(cfg)); err != nil {
		return err
	}
	printInfo("Daemon restarted")
	return nil
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	dp := client.PathsFromConfig(cfg)
	if !client.IsDaemonRunning(dp) {
		printInfo("Daemon status: not running")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := client.ConnectWithContext(ctx, dp.Socket)
	if err != nil {
		printInfo("Daemon status: running (but not responding)")
		return nil
	}
	defer c.Close()

	status, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get daemon status: %w", err)
	}

	var buf bytes.Buffer
	if ok, err := output.EncodeValue(&buf, outputFormat(), status); ok {
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(buf.Bytes())
		return err
	}

	printInfo("Daemon status: running (pid %d)", status.PID)
	printInfo("  Uptime:    %s", formatDuration(time.Duration(status.UptimeSeconds)*time.Second))
	printInfo("  Memory:    %s", humanize.IBytes(status.MemoryBytes))
	if status.RootPath != "" {
		printInfo("  Root:      %s", status.RootPath)
	}
	state := "idle"
	switch {
	case status.Stopped:
		state = "stopped"
	case status.Scanning:
		state = "scanning"
	}
	printInfo("  Scanner:   %s", state)
	if status.FocusedParent != "" {
		printInfo("  Focus:     %s", status.FocusedParent)
	}
	if status.SequenceRunning {
		printInfo("  Sequence:  running")
	}
	printInfo("  Overrides: %d", status.Overrides)
	printInfo("  Watchers:  %d", status.Watchers)

	if len(status.Directories) > 0 {
		names := make([]string, 0, len(status.Directories))
		for name := range status.Directories {
			names = append(names, name)
		}
		sort.Strings(names)
		printInfo("  Directories:")
		for _, name := range names {
			printInfo("    %-9s %s", name, humanize.Comma(int64(status.Directories[name])))
		}
	}
	if len(status.Frames) > 0 {
		printInfo("  Work stack:")
		for _, f := range status.Frames {
			printInfo("    - %s", f)
		}
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
