package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemeAuto  = "auto"
)

// Palette is the set of colors a theme draws with.
type Palette struct {
	Background    lipgloss.Color
	Surface       lipgloss.Color
	Border        lipgloss.Color
	Healthy       lipgloss.Color
	Warning       lipgloss.Color
	Critical      lipgloss.Color
	TextPrimary   lipgloss.Color
	TextSecondary lipgloss.Color
	TextMuted     lipgloss.Color
	Accent        lipgloss.Color
	AccentDim     lipgloss.Color
	Graph         lipgloss.Color
}

// DarkPalette is the neon-on-black theme.
var DarkPalette = Palette{
	Background:    lipgloss.Color("#0A0A0F"),
	Surface:       lipgloss.Color("#12121A"),
	Border:        lipgloss.Color("#2A2A4A"),
	Healthy:       lipgloss.Color("#39FF14"),
	Warning:       lipgloss.Color("#FFAA00"),
	Critical:      lipgloss.Color("#FF0055"),
	TextPrimary:   lipgloss.Color("#FFFFFF"),
	TextSecondary: lipgloss.Color("#B4B4D0"),
	TextMuted:     lipgloss.Color("#6B6B8D"),
	Accent:        lipgloss.Color("#FF2E97"),
	AccentDim:     lipgloss.Color("#BF40FF"),
	Graph:         lipgloss.Color("#00FFFF"),
}

// LightPalette keeps the same roles with contrast for pale backgrounds.
var LightPalette = Palette{
	Background:    lipgloss.Color("#FAFAFC"),
	Surface:       lipgloss.Color("#F0F0F5"),
	Border:        lipgloss.Color("#C8C8DC"),
	Healthy:       lipgloss.Color("#1E8E3E"),
	Warning:       lipgloss.Color("#B06000"),
	Critical:      lipgloss.Color("#C5221F"),
	TextPrimary:   lipgloss.Color("#1A1A2E"),
	TextSecondary: lipgloss.Color("#4A4A68"),
	TextMuted:     lipgloss.Color("#8A8AA3"),
	Accent:        lipgloss.Color("#C2185B"),
	AccentDim:     lipgloss.Color("#7B1FA2"),
	Graph:         lipgloss.Color("#00838F"),
}

// Severity thresholds for percentage channels.
const (
	WarningThreshold  = 70.0
	CriticalThreshold = 90.0
)

// hasDarkBackground is swapped in tests.
var hasDarkBackground = termenv.HasDarkBackground

// ResolveTheme maps a configured theme to "dark" or "light". "auto" asks
// the terminal for its background color.
func ResolveTheme(name string) string {
	switch strings.ToLower(name) {
	case ThemeLight:
		return ThemeLight
	case ThemeDark:
		return ThemeDark
	default:
		if hasDarkBackground() {
			return ThemeDark
		}
		return ThemeLight
	}
}

// ToggleTheme returns the other concrete theme.
func ToggleTheme(resolved string) string {
	if resolved == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// PaletteFor returns the palette for a resolved theme name.
func PaletteFor(resolved string) Palette {
	if resolved == ThemeLight {
		return LightPalette
	}
	return DarkPalette
}

// MetricColor colors a percentage: healthy below 70, warning below 90,
// critical above.
func (p Palette) MetricColor(percent float64) lipgloss.Color {
	switch {
	case percent >= CriticalThreshold:
		return p.Critical
	case percent >= WarningThreshold:
		return p.Warning
	default:
		return p.Healthy
	}
}

// Styles are the lipgloss styles derived from a palette.
type Styles struct {
	Palette Palette

	Header       lipgloss.Style
	Title        lipgloss.Style
	Footer       lipgloss.Style
	Label        lipgloss.Style
	Value        lipgloss.Style
	Muted        lipgloss.Style
	Error        lipgloss.Style
	Panel        lipgloss.Style
	Card         lipgloss.Style
	ListItem     lipgloss.Style
	ListCursor   lipgloss.Style
	ListSelected lipgloss.Style
	Connected    lipgloss.Style
	Disconnected lipgloss.Style
	Border       lipgloss.Style
}

// NewStyles builds the style set for p.
func NewStyles(p Palette) Styles {
	return Styles{
		Palette: p,
		Header: lipgloss.NewStyle().
			Foreground(p.TextPrimary).
			Background(p.Surface).
			Bold(true).
			Padding(0, 1),
		Title: lipgloss.NewStyle().
			Foreground(p.Accent).
			Bold(true),
		Footer: lipgloss.NewStyle().
			Foreground(p.TextMuted).
			Padding(0, 1),
		Label: lipgloss.NewStyle().
			Foreground(p.TextSecondary),
		Value: lipgloss.NewStyle().
			Foreground(p.TextPrimary).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(p.TextMuted),
		Error: lipgloss.NewStyle().
			Foreground(p.Critical).
			Bold(true),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(0, 1),
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(0, 1).
			MarginRight(1),
		ListItem: lipgloss.NewStyle().
			Foreground(p.TextSecondary),
		ListCursor: lipgloss.NewStyle().
			Foreground(p.Accent).
			Bold(true),
		ListSelected: lipgloss.NewStyle().
			Foreground(p.Graph).
			Bold(true),
		Connected: lipgloss.NewStyle().
			Foreground(p.Healthy),
		Disconnected: lipgloss.NewStyle().
			Foreground(p.Critical),
		Border: lipgloss.NewStyle().
			Foreground(p.Border),
	}
}

// SectionHeader renders the top border of a chart section with the title on
// the left and value on the right:
//
//	╭─ Title ─────────────── Value ╮
func (s Styles) SectionHeader(title, value string, width int) string {
	if width < 10 {
		width = 10
	}

	leftWidth := 3 + lipgloss.Width(title) + 1
	rightWidth := 1 + lipgloss.Width(value) + 2
	fill := width - leftWidth - rightWidth
	if fill < 1 {
		fill = 1
	}

	titleStyle := lipgloss.NewStyle().Foreground(s.Palette.Accent).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(s.Palette.Graph).Bold(true)

	return s.Border.Render("╭─ ") +
		titleStyle.Render(title) +
		s.Border.Render(" "+strings.Repeat("─", fill)+" ") +
		valueStyle.Render(value) +
		s.Border.Render(" ╮")
}

// SectionFooter renders the bottom border of a section.
func (s Styles) SectionFooter(width int) string {
	if width < 2 {
		width = 2
	}
	return s.Border.Render("╰" + strings.Repeat("─", width-2) + "╯")
}

// SectionLine pads content between side borders to width.
func (s Styles) SectionLine(content string, width int) string {
	if width < 4 {
		width = 4
	}
	pad := width - 4 - lipgloss.Width(content)
	if pad < 0 {
		pad = 0
	}
	return s.Border.Render("│") + " " + content + strings.Repeat(" ", pad) + " " + s.Border.Render("│")
}
