package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/output"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save the daemon's finished directories as a snapshot",
	Long: `Save every ready directory the daemon knows about as one timestamped
snapshot. Snapshots feed 'getinfo history'.`,
	Args: cobra.NoArgs,
	RunE: runSnapshot,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved snapshots",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotList,
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotDelete,
}

func init() {
	snapshotCmd.AddCommand(snapshotListCmd, snapshotDeleteCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(_ *cobra.Command, _ []string) error {
	return withBackend(func(ctx context.Context, be backend, _ []string) error {
		// an in-process engine starts empty; its snapshot would hold nothing
		if !be.DaemonUp() {
			return errNeedsDaemon
		}

		hdr, err := be.SaveSnapshot(ctx)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if ok, err := output.EncodeValue(&buf, outputFormat(), hdr); ok {
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(buf.Bytes())
			return err
		}
		printInfo("Saved snapshot %s at %s (%d directories)", hdr.ID, hdr.Timestamp.Format("2006-01-02 15:04:05"), hdr.Rows)
		return nil
	})
}

func runSnapshotList(_ *cobra.Command, _ []string) error {
	return withBackend(func(ctx context.Context, be backend, warnings []string) error {
		for _, w := range warnings {
			printVerbose("%s", w)
		}
		headers, err := be.Snapshots(ctx)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if ok, err := output.EncodeValue(&buf, outputFormat(), headers); ok {
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(buf.Bytes())
			return err
		}

		if len(headers) == 0 {
			printInfo("No saved snapshots")
			return nil
		}
		return writeSnapshots(os.Stdout, headers)
	})
}

func writeSnapshots(w io.Writer, headers []types.SnapshotHeader) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tAGE\tDIRS")
	for _, h := range headers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			h.ID,
			h.Timestamp.Local().Format("2006-01-02 15:04:05"),
			humanize.Time(h.Timestamp),
			humanize.Comma(int64(h.Rows)))
	}
	return tw.Flush()
}

func runSnapshotDelete(_ *cobra.Command, args []string) error {
	return withBackend(func(ctx context.Context, be backend, warnings []string) error {
		for _, w := range warnings {
			printVerbose("%s", w)
		}
		if err := be.DeleteSnapshot(ctx, args[0]); err != nil {
			return err
		}
		printInfo("Deleted snapshot %s", args[0])
		return nil
	})
}
