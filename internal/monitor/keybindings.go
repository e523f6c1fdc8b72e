package monitor

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

// Key bindings as constants for consistency.
const (
	KeyQuit        = "q"
	KeyQuitAlt     = "ctrl+c"
	KeyRefresh     = "r"
	KeySelectPrev  = "up"
	KeySelectPrevK = "k"
	KeySelectNext  = "down"
	KeySelectNextJ = "j"
	KeySelectFirst = "home"
	KeySelectLast  = "end"
	KeyOpen        = "enter"
	KeyWindowNext  = "w"
	KeyWindowPrev  = "W"
	KeyWindowUp    = "]"
	KeyWindowDown  = "["
	KeyTheme       = "t"
	KeyCollapse    = "esc"
	KeyToggleHelp  = "?"
)

// HandleKeyMsg processes keyboard input and returns the command to run.
// Returns true if the key was handled, false otherwise.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}
	if m.showHelp && key == KeyCollapse {
		m.showHelp = false
		return true, nil
	}

	switch key {
	case KeyQuit, KeyQuitAlt:
		m.quitting = true
		return true, tea.Quit

	case KeyRefresh:
		if m.loadErr != nil || !m.devicesLoaded {
			m.loadErr = nil
			return true, m.loadDevicesCmd()
		}
		if m.selection.Current().HasEntity() {
			m.refresher.Refresh()
		}
		return true, nil

	case KeySelectPrev, KeySelectPrevK:
		if m.cursor > 0 {
			m.cursor--
		}
		return true, nil

	case KeySelectNext, KeySelectNextJ:
		if m.cursor < len(m.selection.Entities())-1 {
			m.cursor++
		}
		return true, nil

	case KeySelectFirst:
		m.cursor = 0
		return true, nil

	case KeySelectLast:
		if n := len(m.selection.Entities()); n > 0 {
			m.cursor = n - 1
		}
		return true, nil

	case KeyOpen:
		entities := m.selection.Entities()
		if m.cursor >= 0 && m.cursor < len(entities) {
			m.setNotice(m.selection.SelectEntity(entities[m.cursor].ID))
		}
		return true, nil

	case KeyWindowNext, KeyWindowUp:
		m.setNotice(m.selection.SetWindow(telemetry.NextWindow(m.selection.Current().WindowMinutes)))
		return true, nil

	case KeyWindowPrev, KeyWindowDown:
		m.setNotice(m.selection.SetWindow(telemetry.PrevWindow(m.selection.Current().WindowMinutes)))
		return true, nil

	case KeyTheme:
		return true, m.toggleTheme()

	case KeyCollapse:
		m.notice = ""
		return true, nil
	}

	return false, nil
}

// setNotice shows a rejected selection in the status line; nil clears it.
func (m *Model) setNotice(err error) {
	m.notice = errors.Summary(err)
}
