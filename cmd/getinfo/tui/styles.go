// Package tui renders live scan progress in the terminal with Bubble Tea.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/output"
)

var (
	outerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(output.ColorPrimary).
			Padding(0, 1)

	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(output.ColorPrimary)
	mutedTextStyle   = lipgloss.NewStyle().Foreground(output.ColorMuted)
	errorTextStyle   = lipgloss.NewStyle().Foreground(output.ColorDanger)
	successTextStyle = lipgloss.NewStyle().Foreground(output.ColorSuccess)
	warningTextStyle = lipgloss.NewStyle().Foreground(output.ColorWarning)

	progressFillStyle  = lipgloss.NewStyle().Foreground(output.ColorPrimary)
	progressEmptyStyle = lipgloss.NewStyle().Foreground(output.ColorMuted)

	statsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(output.ColorMuted).
			Padding(0, 1)
	statsLabelStyle = lipgloss.NewStyle().Foreground(output.ColorMuted)
	statsValueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
)

// truncatePath shortens p from the left to fit width.
func truncatePath(p string, width int) string {
	if width < 4 {
		width = 4
	}
	r := []rune(p)
	if len(r) <= width {
		return p
	}
	return "..." + string(r[len(r)-width+3:])
}

func center(s string, width int) string {
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, s)
}
