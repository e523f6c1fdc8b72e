package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

// Layout constants.
const (
	defaultWidth   = 120
	listWidth      = 30
	twoColumnWidth = 96
	chartHeight    = 3
	compactHeight  = 30
)

// renderDashboard renders header, device list, charts and footer.
func (m Model) renderDashboard() string {
	width := m.width
	if width == 0 {
		width = defaultWidth
	}

	list := m.renderDeviceList()
	mainWidth := width - lipgloss.Width(list) - 1
	if mainWidth < 20 {
		mainWidth = 20
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, " ", m.renderMain(mainWidth))

	parts := []string{m.renderHeader(width), m.renderStatusLine(), body, m.renderFooter()}
	return strings.Join(parts, "\n")
}

// renderHeader shows the active device, window and connection state.
func (m Model) renderHeader(width int) string {
	sel := m.selection.Current()

	device := "no device"
	if e, ok := m.selection.Entity(sel.EntityID); ok {
		device = e.DisplayName()
	}

	title := m.styles.Title.Render("netwatch")
	info := m.styles.Label.Render(fmt.Sprintf(" | %s | window %s | ", device, telemetry.FormatWindow(sel.WindowMinutes)))
	line := title + info + m.connectionIndicator()

	return m.styles.Header.Width(width).Render(line)
}

// connectionIndicator reports whether the push channel is live.
func (m Model) connectionIndicator() string {
	if m.hasFrame && m.frame.Connected {
		return m.styles.Connected.Render("● Telemetry Active")
	}
	return m.styles.Disconnected.Render("○ Telemetry Inactive")
}

// renderStatusLine shows loading, errors and how fresh the data is.
func (m Model) renderStatusLine() string {
	switch {
	case m.loadErr != nil:
		return m.styles.Error.Render("✗ "+errors.Summary(m.loadErr)) + m.styles.Muted.Render("  (r to retry)")
	case !m.devicesLoaded:
		return m.spinner.View() + m.styles.Label.Render(" Loading devices")
	case m.notice != "":
		return m.styles.Error.Render("✗ " + m.notice)
	}

	if !m.hasFrame || m.frame.EntityID == "" {
		return m.styles.Muted.Render("Pick a device and press Enter")
	}

	switch m.frame.Status {
	case telemetry.RenderLoading:
		return m.spinner.View() + m.styles.Label.Render(" Loading metrics")
	case telemetry.RenderError:
		msg := m.styles.Error.Render("✗ " + errors.Summary(m.frame.Err))
		if m.frame.Series.Len() > 0 {
			msg += m.styles.Muted.Render("  showing last good data")
		}
		return msg
	}
	return m.styles.Muted.Render("updated " + m.updatedAgo())
}

// updatedAgo formats the age of the newest data.
func (m Model) updatedAgo() string {
	if m.frame.UpdatedAt.IsZero() {
		return "never"
	}
	age := m.now().Sub(m.frame.UpdatedAt)
	switch {
	case age < time.Second:
		return "just now"
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	default:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
}

// renderDeviceList draws the directory with the cursor and active device.
func (m Model) renderDeviceList() string {
	entities := m.selection.Entities()
	active := m.selection.Current().EntityID
	inner := listWidth - 4

	lines := []string{m.styles.Title.Render("Devices"), ""}
	if len(entities) == 0 {
		lines = append(lines, m.styles.Muted.Render("none"))
	}
	for i, e := range entities {
		name := truncate(e.Name, inner-2)
		if name == "" {
			name = e.ID
		}

		prefix, style := "  ", m.styles.ListItem
		if e.ID == active {
			prefix, style = "● ", m.styles.ListSelected
		}
		if i == m.cursor {
			style = m.styles.ListCursor
			if e.ID != active {
				prefix = "› "
			}
		}
		lines = append(lines, style.Render(prefix+name))
		if e.Address != "" {
			lines = append(lines, m.styles.Muted.Render("  "+truncate(e.Address, inner-2)))
		}
	}

	return m.styles.Panel.Width(listWidth - 2).Render(strings.Join(lines, "\n"))
}

// renderMain draws the metric cards and one chart per channel.
func (m Model) renderMain(width int) string {
	if !m.selection.Current().HasEntity() {
		return m.styles.Muted.Render("No device selected.")
	}

	var snap telemetry.Snapshot
	if m.hasFrame {
		snap = m.frame.Series
	}

	return m.renderCards(snap, width) + "\n" + m.renderCharts(snap, width)
}

// channelsFor lists the known channels followed by any extras the backend
// reports, so charts stay in place while a device loads.
func channelsFor(snap telemetry.Snapshot) []telemetry.ChannelInfo {
	out := make([]telemetry.ChannelInfo, 0, len(telemetry.KnownChannels)+len(snap))
	out = append(out, telemetry.KnownChannels...)
	known := make(map[string]bool, len(telemetry.KnownChannels))
	for _, c := range telemetry.KnownChannels {
		known[c.Name] = true
	}
	for _, ch := range snap.Channels() {
		if !known[ch] {
			out = append(out, telemetry.LookupChannel(ch))
		}
	}
	return out
}

// renderCards shows the newest value per channel, "--" when there is none.
func (m Model) renderCards(snap telemetry.Snapshot, width int) string {
	var cards []string
	for _, info := range channelsFor(snap) {
		value := "--"
		valueStyle := m.styles.Value
		if p, ok := snap.Latest(info.Name); ok {
			value = FormatValue(info, p.Value)
			if info.Percent {
				valueStyle = valueStyle.Foreground(m.styles.Palette.MetricColor(p.Value))
			}
		}
		cards = append(cards, m.styles.Card.Render(m.styles.Label.Render(info.Label)+"\n"+valueStyle.Render(value)))
	}

	// Wrap cards into rows that fit.
	var rows []string
	var row []string
	rowWidth := 0
	for _, c := range cards {
		w := lipgloss.Width(c)
		if rowWidth+w > width && len(row) > 0 {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, rowWidth = nil, 0
		}
		row = append(row, c)
		rowWidth += w
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderCharts lays charts out in one or two columns depending on width.
func (m Model) renderCharts(snap telemetry.Snapshot, width int) string {
	columns := 1
	if width >= twoColumnWidth {
		columns = 2
	}
	chartWidth := width/columns - (columns - 1)

	height := chartHeight
	if m.height > 0 && m.height < compactHeight {
		height = 1
	}

	var charts []string
	for _, info := range channelsFor(snap) {
		charts = append(charts, m.renderChartSection(info, snap[info.Name], chartWidth, height))
	}

	var rows []string
	for i := 0; i < len(charts); i += columns {
		end := i + columns
		if end > len(charts) {
			end = len(charts)
		}
		cells := make([]string, 0, columns*2)
		for j, c := range charts[i:end] {
			if j > 0 {
				cells = append(cells, " ")
			}
			cells = append(cells, c)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderChartSection draws one bordered braille chart.
func (m Model) renderChartSection(info telemetry.ChannelInfo, series telemetry.Series, width, height int) string {
	value := "--"
	if p, ok := series.Last(); ok {
		value = FormatValue(info, p.Value)
	}

	lines := []string{m.styles.SectionHeader(info.Label, value, width)}
	inner := width - 4
	if len(series) == 0 {
		for r := 0; r < height; r++ {
			text := ""
			if r == height/2 {
				text = m.styles.Muted.Render("no data")
			}
			lines = append(lines, m.styles.SectionLine(text, width))
		}
	} else {
		chart := RenderChart(series.Values(), inner, height, info.Percent, m.styles.Palette)
		for _, l := range strings.Split(chart, "\n") {
			lines = append(lines, m.styles.SectionLine(l, width))
		}
	}
	lines = append(lines, m.styles.SectionFooter(width))
	return strings.Join(lines, "\n")
}

// renderFooter renders the keyboard hints.
func (m Model) renderFooter() string {
	hints := []string{
		"q quit",
		"↑↓ move",
		"enter watch",
		"w/W window",
		"r refresh",
		"t theme",
		"? help",
	}
	return m.styles.Footer.Render(strings.Join(hints, " | "))
}

// FormatValue renders a sample with its channel's unit.
func FormatValue(info telemetry.ChannelInfo, v float64) string {
	switch info.Unit {
	case "":
		return fmt.Sprintf("%.2f", v)
	case "%":
		return fmt.Sprintf("%.1f%%", v)
	default:
		return fmt.Sprintf("%.1f %s", v, info.Unit)
	}
}

// truncate shortens s to n display cells with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 || lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 || len(r) <= 1 {
		return string(r[:1])
	}
	if len(r) > n-1 {
		r = r[:n-1]
	}
	return string(r) + "…"
}
