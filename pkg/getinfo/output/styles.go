package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// ANSI 256 palette shared by the pretty formatter and the TUI.
const (
	ColorPrimary = lipgloss.Color("39")
	ColorSuccess = lipgloss.Color("42")
	ColorWarning = lipgloss.Color("214")
	ColorDanger  = lipgloss.Color("196")
	ColorMuted   = lipgloss.Color("245")
)

var (
	HeaderBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1).
			MarginBottom(1)

	FooterBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1).
			MarginTop(1)
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	LabelStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	PathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	SizeStyle    = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorMuted).
				PaddingRight(2)
)

// StatusStyle colors a processing status.
func StatusStyle(st types.ProcessingStatus) lipgloss.Style {
	switch st {
	case types.StatusReady:
		return lipgloss.NewStyle().Foreground(ColorSuccess)
	case types.StatusScanning:
		return lipgloss.NewStyle().Foreground(ColorPrimary)
	case types.StatusError:
		return lipgloss.NewStyle().Foreground(ColorDanger)
	case types.StatusSkipped:
		return WarningStyle
	default:
		return MutedStyle
	}
}
