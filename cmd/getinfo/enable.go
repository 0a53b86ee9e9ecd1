package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/output"
)

var enableCmd = &cobra.Command{
	Use:   "enable <path>",
	Short: "Re-enable scanning of a directory subtree",
	Args:  cobra.ExactArgs(1),
	RunE:  func(_ *cobra.Command, args []string) error { return runSetEnabled(args[0], true) },
}

var disableCmd = &cobra.Command{
	Use:   "disable <path>",
	Short: "Exclude a directory subtree from scanning",
	Long: `Exclude a directory subtree from scanning. A disabled directory is
reported as skipped and contributes nothing to its parent's totals.

Overrides are kept by the daemon, and saved to the snapshot store when
overlay.persist is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error { return runSetEnabled(args[0], false) },
}

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "List scan enable/disable overrides",
	Args:  cobra.NoArgs,
	RunE:  runOverrides,
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(overridesCmd)
}

func runSetEnabled(arg string, enabled bool) error {
	target, err := resolvePath(arg)
	if err != nil {
		return err
	}

	return withBackend(func(ctx context.Context, be backend, warnings []string) error {
		for _, w := range warnings {
			printVerbose("%s", w)
		}
		if err := be.SetEnabled(ctx, target, enabled); err != nil {
			return err
		}
		if lb, ok := be.(*localBackend); ok && (lb.store == nil || !cfg.Overlay.Persist) {
			printWarn("no daemon and no override store: the change ends with this command")
		}

		verb := "Disabled"
		if enabled {
			verb = "Enabled"
		}
		printInfo("%s scanning of %s", verb, target)
		return nil
	})
}

func runOverrides(_ *cobra.Command, _ []string) error {
	return withBackend(func(ctx context.Context, be backend, _ []string) error {
		entries, err := be.Overrides(ctx)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if ok, err := output.EncodeValue(&buf, outputFormat(), entries); ok {
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(buf.Bytes())
			return err
		}

		if len(entries) == 0 {
			printInfo("No overrides; every directory is scanned")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, e := range entries {
			state := "disabled"
			if e.Enabled {
				state = "enabled"
			}
			fmt.Fprintf(tw, "%s\t%s\n", state, e.Path)
		}
		return tw.Flush()
	})
}
