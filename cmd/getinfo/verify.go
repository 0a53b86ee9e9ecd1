package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/output"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/overlay"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Check scanned totals against an independent walk",
	Long: `Walk a directory tree again with a parallel walker and compare the
result with the scanner's totals. Disabled subtrees are excluded the same
way the scanner excludes them. Exits non-zero when any field differs.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(_ *cobra.Command, args []string) error {
	target, err := resolvePath(args[0])
	if err != nil {
		return err
	}

	return withBackend(func(ctx context.Context, be backend, _ []string) error {
		rep, err := be.Report(ctx, target)
		if errors.Is(err, errNotScanned) || (err == nil && rep.Status != types.StatusReady) {
			printVerbose("scanning %s before verifying", target)
			if _, err := be.FocusAndWait(ctx, target); err != nil {
				return err
			}
			rep, err = be.Report(ctx, target)
		}
		if err != nil {
			return err
		}

		entries, err := be.Overrides(ctx)
		if err != nil {
			return err
		}
		ov := overlay.New(nil)
		saved := make(map[string]bool, len(entries))
		for _, e := range entries {
			saved[e.Path] = e.Enabled
		}
		ov.Load(saved)
		skip := func(p string) bool { return !ov.IsEnabled(p) }

		result, err := verify.Compare(ctx, target, types.DirectoryRecord{Status: rep.Status, Stats: rep.Stats}, skip)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if ok, err := output.EncodeValue(&buf, outputFormat(), result); ok {
			if err != nil {
				return err
			}
			if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
				return err
			}
		} else {
			printVerifyReport(target, result)
		}

		if !result.OK() {
			return fmt.Errorf("%d field(s) differ from the walk", len(result.Mismatches))
		}
		return nil
	})
}

func printVerifyReport(target string, r verify.Report) {
	printInfo("%s (%s)", target, r.Status)
	printInfo("  walked: %s subdirs, %s files, %s",
		humanize.Comma(int64(r.Totals.Subdirs)),
		humanize.Comma(int64(r.Totals.FileCount)),
		humanize.IBytes(r.Totals.TotalSize))
	for _, e := range r.Totals.Errors {
		printWarn("unreadable: %s", e)
	}
	if r.OK() {
		printInfo("  OK: stored totals match")
		return
	}
	for _, m := range r.Mismatches {
		printInfo("  MISMATCH %s: stored %s, walked %d", m.Field, m.Stored, m.Walked)
	}
}
