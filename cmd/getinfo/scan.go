package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/zenonby/directory-getinfo/cmd/getinfo/tui"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/config"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/orchestrator"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/output"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/paths"
)

var scanCmd = &cobra.Command{
	Use:   "scan [paths...]",
	Short: "Scan directories and report their totals",
	Long: `Scan one or more directory trees and print a report for each.

A single path is focused directly. Several paths, or --all, are scanned one
after another; Ctrl+C stops the scan and prints what is known so far.

Examples:
  getinfo scan                 # Scan the current directory
  getinfo scan ~/src ~/docs    # Scan two trees in order
  getinfo scan --all           # Scan every filesystem root (or root_path)
  getinfo scan --save -o json  # Save a snapshot, print JSON`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().Bool("all", false, "scan every filesystem root, or root_path when configured")
	scanCmd.Flags().Bool("save", false, "save a snapshot after the scan completes")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	save, _ := cmd.Flags().GetBool("save")
	if all && len(args) > 0 {
		return errors.New("--all does not take paths")
	}

	targets, err := scanTargets(args, all)
	if err != nil {
		return err
	}

	formatter, err := output.Get(outputFormat())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, warnings, err := openBackend(cfg, viper.GetBool("no_daemon"))
	if err != nil {
		return err
	}
	defer be.Close()

	var results []orchestrator.TargetStatus
	work := func(ctx context.Context) error {
		if len(targets) == 1 && !all {
			st, err := be.FocusAndWait(ctx, targets[0])
			results = []orchestrator.TargetStatus{{Path: targets[0], Status: st}}
			return err
		}
		var err error
		results, err = be.ScanSequence(ctx, targets, all)
		return err
	}

	start := time.Now()
	interrupted := false
	if useTUI() {
		interrupted, err = runWithProgress(ctx, be, targets, work)
	} else {
		printVerbose("scanning %d target(s)", len(targets))
		err = work(ctx)
	}
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		interrupted = true
	}
	if interrupted && errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		return err
	}

	// reports are fetched even after Ctrl+C, so the scan context is not used
	rctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if save && !interrupted {
		hdr, err := be.SaveSnapshot(rctx)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("snapshot not saved: %v", err))
		} else {
			printVerbose("saved snapshot %s (%d directories)", hdr.ID, hdr.Rows)
			if !getQuiet() {
				fmt.Fprintf(os.Stderr, "Saved snapshot %s (%d directories)\n", hdr.ID, hdr.Rows)
			}
		}
	}

	if len(results) > 0 {
		targets = targets[:0]
		for _, r := range results {
			targets = append(targets, r.Path)
		}
	}

	var buf bytes.Buffer
	for _, t := range targets {
		rep, err := be.Report(rctx, t)
		if errors.Is(err, errNotScanned) && interrupted {
			continue
		}
		if err != nil {
			return err
		}
		rep.Duration = elapsed
		rep.DaemonUp = be.DaemonUp()
		rep.Interrupted = interrupted
		rep.Warnings = warnings
		if err := formatter.Format(&buf, rep); err != nil {
			return fmt.Errorf("format %s: %w", t, err)
		}
	}
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}

// runWithProgress runs work behind the progress view, fed by the backend's
// event stream.
func runWithProgress(ctx context.Context, be backend, targets []string, work func(context.Context) error) (bool, error) {
	evCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	root := ""
	if len(targets) == 1 {
		root = targets[0]
	}
	events, err := be.Events(evCtx, root)
	if err != nil {
		printVerbose("progress events unavailable: %v", err)
		events = nil
	}
	return tui.Run(ctx, os.Stderr, targets, events, work)
}

// scanTargets resolves the command's paths, defaulting to the current
// directory. With all set it returns the roots the engine will visit.
func scanTargets(args []string, all bool) ([]string, error) {
	if all {
		if cfg.RootPath != "" {
			root, err := paths.UnifyDir(cfg.RootPath)
			if err != nil {
				return nil, fmt.Errorf("root_path: %w", err)
			}
			return []string{root}, nil
		}
		return paths.Roots(), nil
	}
	if len(args) == 0 {
		args = []string{"."}
	}
	targets := make([]string, 0, len(args))
	for _, a := range args {
		t, err := resolvePath(a)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// resolvePath expands ~ and unifies a directory argument.
func resolvePath(arg string) (string, error) {
	expanded, err := config.ExpandPath(arg)
	if err != nil {
		return "", fmt.Errorf("failed to expand path: %w", err)
	}
	return paths.UnifyDir(expanded)
}

// useTUI reports whether the progress view should be shown: pretty output
// to a terminal, not disabled by flags.
func useTUI() bool {
	if viper.GetBool("no_tui") || getQuiet() || outputFormat() != "pretty" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}
