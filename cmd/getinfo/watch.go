package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Stream the daemon's directory events",
	Long: `Print directory status changes from the daemon as they happen, limited
to path and its subtree when given. Stops on Ctrl+C. With --json every event
is one JSON object per line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, args []string) error {
	root := ""
	if len(args) > 0 {
		var err error
		if root, err = resolvePath(args[0]); err != nil {
			return err
		}
	}
	asJSON := outputFormat() == "json"

	return withBackend(func(ctx context.Context, be backend, _ []string) error {
		if !be.DaemonUp() {
			return errNeedsDaemon
		}
		events, err := be.Events(ctx, root)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		for ev := range events {
			if asJSON {
				if err := enc.Encode(ev); err != nil {
					return err
				}
				continue
			}
			fmt.Printf("%-8s %s  %s dirs  %s files  %s\n",
				ev.Status, ev.Path,
				types.FormatCount(ev.Stats.SubdirCount),
				types.FormatCount(ev.Stats.FileCount),
				types.FormatOptionalSize(ev.Stats.TotalSize))
		}
		return nil
	})
}
