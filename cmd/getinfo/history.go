package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/output"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

var historyCmd = &cobra.Command{
	Use:   "history <path>",
	Short: "Show the size trend of a directory across saved snapshots",
	Long: `Show the total size of a directory in every saved snapshot, oldest
first. The directory does not have to exist any more.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(_ *cobra.Command, args []string) error {
	target, err := historyPath(args[0])
	if err != nil {
		return err
	}

	return withBackend(func(ctx context.Context, be backend, warnings []string) error {
		for _, w := range warnings {
			printVerbose("%s", w)
		}
		points, err := be.History(ctx, target)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if ok, err := output.EncodeValue(&buf, outputFormat(), points); ok {
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(buf.Bytes())
			return err
		}

		if len(points) == 0 {
			printInfo("No saved snapshots contain %s", target)
			return nil
		}
		printInfo("%s", target)
		return writeHistory(os.Stdout, points)
	})
}

func writeHistory(w io.Writer, points []types.SizePoint) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SNAPSHOT\tAGE\tSIZE\tCHANGE")
	for i, p := range points {
		change := ""
		if i > 0 {
			change = sizeDelta(points[i-1].TotalSize, p.TotalSize)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			p.Timestamp.Local().Format("2006-01-02 15:04"),
			humanize.Time(p.Timestamp),
			humanize.IBytes(p.TotalSize),
			change)
	}
	return tw.Flush()
}

// sizeDelta formats the signed difference between two sizes.
func sizeDelta(prev, cur uint64) string {
	switch {
	case cur > prev:
		return "+" + humanize.IBytes(cur-prev)
	case cur < prev:
		return "-" + humanize.IBytes(prev-cur)
	default:
		return "="
	}
}

// historyPath unifies arg when it still exists and otherwise falls back to
// its cleaned absolute form.
func historyPath(arg string) (string, error) {
	if p, err := resolvePath(arg); err == nil {
		return p, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return filepath.Clean(abs), nil
}
