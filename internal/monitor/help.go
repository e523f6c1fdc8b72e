package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HelpBinding represents a single keyboard shortcut entry.
type HelpBinding struct {
	Key  string
	Desc string
}

var helpBindings = []HelpBinding{
	{Key: "up / k", Desc: "Move up the device list"},
	{Key: "down / j", Desc: "Move down the device list"},
	{Key: "Home / End", Desc: "Jump to first / last device"},
	{Key: "Enter", Desc: "Watch the highlighted device"},
	{Key: "w / ]", Desc: "Longer time window"},
	{Key: "W / [", Desc: "Shorter time window"},
	{Key: "r", Desc: "Refresh now (or retry loading devices)"},
	{Key: "t", Desc: "Toggle dark / light theme"},
	{Key: "Esc", Desc: "Dismiss message / close help"},
	{Key: "?", Desc: "Toggle this help"},
	{Key: "q / Ctrl+C", Desc: "Quit"},
}

// renderHelpOverlay renders a centered box listing the shortcuts.
func (m Model) renderHelpOverlay() string {
	p := m.styles.Palette
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Accent).
		Padding(1, 2)
	keyStyle := lipgloss.NewStyle().Foreground(p.TextPrimary).Bold(true).Width(14)
	descStyle := lipgloss.NewStyle().Foreground(p.TextSecondary)

	lines := []string{m.styles.Title.Render("Keyboard Shortcuts"), ""}
	for _, b := range helpBindings {
		lines = append(lines, keyStyle.Render(b.Key)+descStyle.Render(b.Desc))
	}
	lines = append(lines, "", m.styles.Label.Render("Press ? to close"))

	content := box.Render(strings.Join(lines, "\n"))
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
