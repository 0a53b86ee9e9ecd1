package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/output"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/paths"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/scanner"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// DirectoryMsg carries one scanner directory event.
type DirectoryMsg scanner.DirectoryInfo

// DoneMsg is sent when the scan work has returned.
type DoneMsg struct {
	Err error
}

// ScanModel shows the progress of scanning one or more targets.
type ScanModel struct {
	spinner   spinner.Model
	targets   []string
	cancel    context.CancelFunc
	startTime time.Time
	width     int
	height    int

	current string
	totals  map[string]types.DirectoryStats
	counts  map[types.ProcessingStatus]int
	seen    map[string]types.ProcessingStatus

	done        bool
	interrupted bool
	err         error
}

// NewScanModel creates a model for targets. cancel is called when the user
// interrupts.
func NewScanModel(targets []string, cancel context.CancelFunc) ScanModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(output.ColorPrimary)

	return ScanModel{
		spinner:   s,
		targets:   targets,
		cancel:    cancel,
		startTime: time.Now(),
		width:     80,
		height:    16,
		totals:    make(map[string]types.DirectoryStats),
		counts:    make(map[types.ProcessingStatus]int),
		seen:      make(map[string]types.ProcessingStatus),
	}
}

// Init starts the spinner.
func (m ScanModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages.
func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.interrupted = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case DirectoryMsg:
		m.apply(scanner.DirectoryInfo(msg))
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *ScanModel) apply(info scanner.DirectoryInfo) {
	if prev, ok := m.seen[info.Path]; ok {
		m.counts[prev]--
	}
	m.seen[info.Path] = info.Status
	m.counts[info.Status]++

	if info.Status == types.StatusScanning {
		m.current = info.Path
	}
	for _, t := range m.targets {
		if t == info.Path {
			m.totals[t] = info.Stats
		}
	}
}

// aggregate sums the latest stats of every target.
func (m ScanModel) aggregate() types.DirectoryStats {
	var sum types.DirectoryStats
	for _, t := range m.targets {
		if st, ok := m.totals[t]; ok {
			sum.Add(st)
		}
	}
	return sum
}

// View renders the model.
func (m ScanModel) View() string {
	var b strings.Builder

	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	b.WriteString(m.renderHeader(contentWidth))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	case m.done:
		b.WriteString(successTextStyle.Render("  Scan complete"))
	case m.interrupted:
		b.WriteString(warningTextStyle.Render("  Stopping..."))
	default:
		b.WriteString(fmt.Sprintf("  %s Scanning: %s", m.spinner.View(), truncatePath(m.current, contentWidth-16)))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderProgressBar(contentWidth))
	b.WriteString("\n\n")
	b.WriteString(m.renderStats(contentWidth))

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

func (m ScanModel) renderHeader(width int) string {
	title := titleStyle.Render("getinfo")
	if len(m.targets) == 1 {
		title += " " + mutedTextStyle.Render(truncatePath(m.targets[0], width/2))
	} else if len(m.targets) > 1 {
		title += " " + mutedTextStyle.Render(fmt.Sprintf("%d targets", len(m.targets)))
	}
	hint := mutedTextStyle.Render("[Ctrl+C to stop]")

	spacing := width - lipgloss.Width(title) - lipgloss.Width(hint)
	if spacing < 1 {
		spacing = 1
	}
	return title + strings.Repeat(" ", spacing) + hint
}

// renderProgressBar draws an indeterminate pulse; the total directory count
// is unknown until the scan ends.
func (m ScanModel) renderProgressBar(width int) string {
	barWidth := width - 4
	if barWidth < 10 {
		barWidth = 10
	}

	var bar strings.Builder
	bar.WriteString("  ")
	if m.done {
		bar.WriteString(progressFillStyle.Render(strings.Repeat("█", barWidth)))
		return bar.String()
	}

	position := int(time.Since(m.startTime).Seconds()*8) % (barWidth * 2)
	if position > barWidth {
		position = barWidth*2 - position
	}
	pulse := max(barWidth/5, 3)
	for i := range barWidth {
		dist := i - position
		if dist < 0 {
			dist = -dist
		}
		if dist < pulse {
			bar.WriteString(progressFillStyle.Render("█"))
		} else {
			bar.WriteString(progressEmptyStyle.Render("░"))
		}
	}
	return bar.String()
}

func (m ScanModel) renderStats(totalWidth int) string {
	boxWidth := max((totalWidth-12)/5, 10)

	agg := m.aggregate()
	files := "-"
	if agg.FileCount != nil {
		files = humanize.Comma(int64(*agg.FileCount))
	}
	size := "-"
	if agg.TotalSize != nil {
		size = humanize.IBytes(*agg.TotalSize)
	}
	skipped := m.counts[types.StatusSkipped] + m.counts[types.StatusError]

	return lipgloss.JoinHorizontal(lipgloss.Top,
		"  ",
		renderStatBox("Dirs", humanize.Comma(int64(m.counts[types.StatusReady])), boxWidth), " ",
		renderStatBox("Files", files, boxWidth), " ",
		renderStatBox("Size", size, boxWidth), " ",
		renderStatBox("Skipped", humanize.Comma(int64(skipped)), boxWidth), " ",
		renderStatBox("Time", formatDuration(time.Since(m.startTime)), boxWidth))
}

func renderStatBox(label, value string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		center(statsLabelStyle.Render(label), width-4),
		center(statsValueStyle.Render(value), width-4))
	return statsBoxStyle.Width(width).Render(content)
}

// formatDuration formats a duration as M:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", d/time.Minute, (d%time.Minute)/time.Second)
}

// Interrupted reports whether the user stopped the scan.
func (m ScanModel) Interrupted() bool {
	return m.interrupted
}

// IsDone reports whether the work has returned.
func (m ScanModel) IsDone() bool {
	return m.done
}

// Err returns the error the work returned.
func (m ScanModel) Err() error {
	return m.err
}

// Run shows progress on out while work runs. Events under targets feed the
// view. Ctrl+C cancels the context given to work; Run still waits for work
// to return. It reports whether the user interrupted.
func Run(ctx context.Context, out io.Writer, targets []string, events <-chan scanner.DirectoryInfo, work func(context.Context) error) (interrupted bool, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logging.Get("tui")
	p := tea.NewProgram(NewScanModel(targets, cancel), tea.WithOutput(out))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if underAny(ev.Path, targets) {
					p.Send(DirectoryMsg(ev))
				}
			}
		}
	}()

	workErr := make(chan error, 1)
	go func() {
		err := work(ctx)
		workErr <- err
		p.Send(DoneMsg{Err: err})
	}()

	final, runErr := p.Run()
	if runErr != nil {
		log.Debug("progress view ended", "err", runErr)
		cancel()
	}
	err = <-workErr

	if fm, ok := final.(ScanModel); ok {
		interrupted = fm.Interrupted()
	}
	return interrupted, err
}

func underAny(p string, targets []string) bool {
	for _, t := range targets {
		if paths.IsAncestorOrEqual(t, p) {
			return true
		}
	}
	return false
}
