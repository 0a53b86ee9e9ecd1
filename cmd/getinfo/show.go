package main

import (
	"bytes"
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/output"
)

var showCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Show what is known about a directory",
	Long: `Print the status, totals, extension breakdown, children and size
history of a directory.

A directory the engine has not visited yet is scanned first, unless
--no-scan is given. Without the daemon every invocation starts from an
empty engine, so show always scans.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().Bool("no-scan", false, "fail instead of scanning an unknown directory")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	target, err := resolvePath(args[0])
	if err != nil {
		return err
	}
	noScan, _ := cmd.Flags().GetBool("no-scan")

	formatter, err := output.Get(outputFormat())
	if err != nil {
		return err
	}

	return withBackend(func(ctx context.Context, be backend, warnings []string) error {
		rep, err := be.Report(ctx, target)
		if errors.Is(err, errNotScanned) && !noScan {
			printVerbose("%s has not been scanned, scanning", target)
			if _, err := be.FocusAndWait(ctx, target); err != nil {
				return err
			}
			rep, err = be.Report(ctx, target)
		}
		if err != nil {
			return err
		}

		if points, err := be.History(ctx, target); err == nil {
			rep.History = points
		} else {
			printVerbose("history unavailable: %v", err)
		}
		rep.DaemonUp = be.DaemonUp()
		rep.Warnings = warnings

		var buf bytes.Buffer
		if err := formatter.Format(&buf, rep); err != nil {
			return err
		}
		_, err = os.Stdout.Write(buf.Bytes())
		return err
	})
}
