// Package tui provides the terminal UI for audioscribe using Charm libraries
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette. lipgloss picks the Light or Dark half from the terminal
// background, and prefs.Themes can force either.
var (
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"} // teal
	colorRecord  = lipgloss.AdaptiveColor{Light: "#BE123C", Dark: "#FB7185"}
	colorOK      = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FCD34D"}
	colorFail    = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#FCA5A5"}
	colorInk     = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#E5E7EB"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	colorFaint   = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"}
	colorFrame   = lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#374151"}
)

func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func framed(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c).
		Padding(1, 2)
}

var (
	TitleStyle     = fg(ColorPrimary).Bold(true).MarginBottom(1)
	BodyStyle      = fg(colorInk)
	MutedStyle     = fg(colorFaint)
	SubtleStyle    = fg(colorDim)
	SuccessStyle   = fg(colorOK).Bold(true)
	ErrorStyle     = fg(colorFail).Bold(true)
	WarningStyle   = fg(colorWarn)
	RecordingStyle = fg(colorRecord).Bold(true)
	SelectedStyle  = fg(ColorPrimary).Bold(true)

	// Transcript and translation panes.
	BoxStyle        = framed(colorFrame).MarginTop(1)
	FocusedBoxStyle = BoxStyle.BorderForeground(ColorPrimary)
	ErrorBoxStyle   = framed(colorFail)

	// Home screen mode tabs: file picker or microphone.
	TabStyle       = fg(colorDim).Padding(0, 2)
	ActiveTabStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorPrimary)

	// Translate / copy / retry actions under the result.
	ButtonStyle = fg(ColorPrimary).
			Padding(0, 1).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorFrame)
)

// Header is the application banner.
const Header = `
   ___  __  ______  ________  ____________  _______  ___
  / _ |/ / / / __ \/  _/ __ \/ __/ ___/ _ \/  _/ _ )/ __/
 / __ / /_/ / /_/ // // /_/ /\ \/ /__/ , _// // _  / _/
/_/ |_\____/_____/___/\____/___/\___/_/|_/___/____/___/
`

var headerStyle = fg(ColorPrimary).Bold(true)

// GetHeader returns the styled banner.
func GetHeader() string { return headerStyle.Render(Header) }

var (
	keyHintStyle  = fg(colorDim).Bold(true)
	descHintStyle = fg(colorFaint)
)

// KeyHelp renders "key desc" pairs separated by bars. A trailing key with
// no description is dropped.
func KeyHelp(pairs ...string) string {
	hints := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		hints = append(hints, keyHintStyle.Render(pairs[i])+" "+descHintStyle.Render(pairs[i+1]))
	}
	return descHintStyle.Render(strings.Join(hints, "  |  "))
}
