package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter writes tab-aligned text without styling, for scripts.
type PlainFormatter struct{}

// Format writes the report to w.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	fmt.Fprintf(tw, "PATH\tSTATUS\tSIZE\tFILES\tSUBDIRS\n")
	writeEntry(tw, r.Entry)
	for _, c := range r.Children {
		writeEntry(tw, c)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Mime) > 0 {
		w.WriteString("\n")
		tw = tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
		fmt.Fprintf(tw, "EXT\tFILES\tSIZE\tAVG\n")
		for _, m := range r.Mime {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f\n", m.Extension, m.FileCount, m.TotalSize, m.AvgSize)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(r.History) > 0 {
		w.WriteString("\n")
		for _, p := range r.History {
			fmt.Fprintf(w, "%s %d\n", p.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), p.TotalSize)
		}
	}
	return nil
}

func writeEntry(tw *tabwriter.Writer, e Entry) {
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		e.Path, e.Status, plainCount(e.Stats.TotalSize), plainCount(e.Stats.FileCount), plainCount(e.Stats.SubdirCount))
}

func plainCount(p *uint64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}

func init() {
	Register("plain", func() Formatter { return &PlainFormatter{} })
}

var _ Formatter = (*PlainFormatter)(nil)
