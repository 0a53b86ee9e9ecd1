package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// mimeRows caps the breakdown table in the pretty view.
const mimeRows = 10

// PrettyFormatter renders a styled report for terminals.
type PrettyFormatter struct{}

// Format writes the report to w.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	if len(r.Mime) > 0 {
		w.WriteString(f.formatMime(r.Mime))
	}
	if len(r.Children) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatChildren(r.Children))
	}
	if len(r.History) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatHistory(r.History))
	}

	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
		w.WriteString("\n")
		for _, warning := range r.Warnings {
			w.WriteString(WarningStyle.Render("  " + warning))
			w.WriteString("\n")
		}
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Report) string {
	lines := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Path:"), PathStyle.Render(r.Path)),
		fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
			LabelStyle.Render("Status:"), StatusStyle(r.Status).Render(r.Status.String()),
			LabelStyle.Render("Size:"), SizeStyle.Render(types.FormatOptionalSize(r.Stats.TotalSize)),
			LabelStyle.Render("Files:"), ValueStyle.Render(types.FormatCount(r.Stats.FileCount)),
			LabelStyle.Render("Subdirs:"), ValueStyle.Render(types.FormatCount(r.Stats.SubdirCount)),
		),
	}
	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Scan interrupted"))
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatMime(rows []types.MimeSize) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s\n", TitleStyle.Render("By extension")))
	sb.WriteString(fmt.Sprintf("  %s %s %s %s\n",
		TableHeaderStyle.Render(padRight("EXT", 10)),
		TableHeaderStyle.Render(padLeft("FILES", 10)),
		TableHeaderStyle.Render(padLeft("SIZE", 10)),
		TableHeaderStyle.Render(padLeft("AVG", 10)),
	))
	for i, m := range rows {
		if i > mimeRows {
			sb.WriteString(MutedStyle.Render(fmt.Sprintf("  ... %d more\n", len(rows)-i)))
			break
		}
		sb.WriteString(fmt.Sprintf("  %s %s %s %s\n",
			ValueStyle.Render(padRight(extLabel(m.Extension), 10)),
			ValueStyle.Render(padLeft(humanize.Comma(int64(m.FileCount)), 10)),
			SizeStyle.Render(padLeft(types.FormatSize(m.TotalSize), 10)),
			MutedStyle.Render(padLeft(types.FormatSize(uint64(m.AvgSize)), 10)),
		))
	}
	return sb.String()
}

func (f *PrettyFormatter) formatChildren(children []Entry) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s\n", TitleStyle.Render("Subdirectories")))
	for _, c := range children {
		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			SizeStyle.Render(padLeft(types.FormatOptionalSize(c.Stats.TotalSize), 10)),
			StatusStyle(c.Status).Render(padRight(c.Status.String(), 9)),
			PathStyle.Render(c.Path),
		))
	}
	return sb.String()
}

func (f *PrettyFormatter) formatHistory(points []types.SizePoint) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s\n", TitleStyle.Render("History")))
	for _, p := range points {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			MutedStyle.Render(p.Timestamp.Local().Format("2006-01-02 15:04")),
			SizeStyle.Render(types.FormatSize(p.TotalSize)),
		))
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Report) string {
	var parts []string
	if r.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Took:"), ValueStyle.Render(r.Duration.Round(1e6).String())))
	}
	if r.DaemonUp {
		parts = append(parts, LabelStyle.Render("daemon: ")+ValueStyle.Render("up"))
	} else {
		parts = append(parts, MutedStyle.Render("daemon: off"))
	}
	parts = append(parts, MutedStyle.Render("Use -o plain for unformatted output"))
	return FooterBox.Render(strings.Join(parts, "  "))
}

func extLabel(ext string) string {
	switch ext {
	case types.AllExtensions:
		return "(all)"
	case "":
		return "(none)"
	default:
		return "." + ext
	}
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("pretty", func() Formatter { return &PrettyFormatter{} })
}

var _ Formatter = (*PrettyFormatter)(nil)
