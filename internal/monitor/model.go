package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

// Directory lists the devices that can be monitored.
type Directory interface {
	ListEntities(ctx context.Context) ([]telemetry.Entity, error)
}

// Refresher forces a pull refresh of the active device.
type Refresher interface {
	Refresh()
}

// DefaultLoadTimeout bounds the device directory request.
const DefaultLoadTimeout = 10 * time.Second

// Options configures a Model.
type Options struct {
	// Theme is "dark", "light", or "auto".
	Theme string

	// Device is selected once the directory loads.
	Device string

	// OnThemeChange persists a toggled theme. Optional.
	OnThemeChange func(theme string) error

	// LoadTimeout bounds the directory request.
	LoadTimeout time.Duration

	// Now is the clock used for "updated ago" text.
	Now func() time.Time
}

// devicesMsg carries the directory response.
type devicesMsg struct {
	entities []telemetry.Entity
	err      error
}

// themeSavedMsg reports the outcome of persisting the theme.
type themeSavedMsg struct {
	theme string
	err   error
}

// Model is the Bubble Tea model for the dashboard. Selection changes go to
// the SelectionController, whose listener drives the synchronizer; frames
// come back through the ChannelSink.
type Model struct {
	selection *telemetry.SelectionController
	refresher Refresher
	directory Directory
	sink      *ChannelSink

	onThemeChange func(string) error
	loadTimeout   time.Duration
	now           func() time.Time

	preselect     string
	devicesLoaded bool
	loadErr       error
	cursor        int

	frame    telemetry.RenderEvent
	hasFrame bool
	notice   string

	theme   string
	styles  Styles
	spinner spinner.Model

	width    int
	height   int
	showHelp bool
	quitting bool
}

// NewModel wires the dashboard to its collaborators.
func NewModel(selection *telemetry.SelectionController, refresher Refresher, directory Directory, sink *ChannelSink, opts Options) Model {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	theme := ResolveTheme(opts.Theme)
	styles := NewStyles(PaletteFor(theme))

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"◐", "◓", "◑", "◒"},
		FPS:    time.Second / 8,
	}
	sp.Style = styles.Label

	return Model{
		selection:     selection,
		refresher:     refresher,
		directory:     directory,
		sink:          sink,
		onThemeChange: opts.OnThemeChange,
		loadTimeout:   opts.LoadTimeout,
		now:           opts.Now,
		preselect:     opts.Device,
		theme:         theme,
		styles:        styles,
		spinner:       sp,
	}
}

// Init loads the directory and starts listening for frames.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadDevicesCmd(),
		m.sink.Wait(),
		m.spinner.Tick,
	)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case devicesMsg:
		m.applyDevices(msg)

	case frameMsg:
		m.frame = telemetry.RenderEvent(msg)
		m.hasFrame = true
		return m, m.sink.Wait()

	case themeSavedMsg:
		if msg.err != nil {
			m.notice = "Couldn't save theme: " + errors.Summary(msg.err)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

func (m Model) loadDevicesCmd() tea.Cmd {
	directory, timeout := m.directory, m.loadTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		entities, err := directory.ListEntities(ctx)
		return devicesMsg{entities: entities, err: err}
	}
}

func (m *Model) applyDevices(msg devicesMsg) {
	if msg.err != nil {
		m.loadErr = msg.err
		return
	}
	m.loadErr = nil
	m.devicesLoaded = true
	m.selection.SetEntities(msg.entities)

	if m.preselect != "" {
		m.setNotice(m.selection.SelectEntity(m.preselect))
		m.preselect = ""
	}
	m.cursor = m.selectedIndex()
}

// selectedIndex is the list position of the active device, or 0.
func (m Model) selectedIndex() int {
	active := m.selection.Current().EntityID
	for i, e := range m.selection.Entities() {
		if e.ID == active {
			return i
		}
	}
	return 0
}

// toggleTheme flips between dark and light and persists the choice.
func (m *Model) toggleTheme() tea.Cmd {
	m.theme = ToggleTheme(m.theme)
	m.styles = NewStyles(PaletteFor(m.theme))
	m.spinner.Style = m.styles.Label

	if m.onThemeChange == nil {
		return nil
	}
	save, theme := m.onThemeChange, m.theme
	return func() tea.Msg {
		return themeSavedMsg{theme: theme, err: save(theme)}
	}
}

// Theme returns the active resolved theme.
func (m Model) Theme() string {
	return m.theme
}

// Frame returns the most recent render frame, if any.
func (m Model) Frame() (telemetry.RenderEvent, bool) {
	return m.frame, m.hasFrame
}

// Cursor returns the highlighted position in the device list.
func (m Model) Cursor() int {
	return m.cursor
}
