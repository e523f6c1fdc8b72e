package telemetry

import (
	"fmt"
	"sync"

	"github.com/rileyhilliard/netwatch/internal/errors"
)

// DefaultWindowMinutes is the trailing window used until the user picks one.
const DefaultWindowMinutes = 30

// WindowPresets are the windows offered by the dashboard, in minutes.
var WindowPresets = []int{5, 15, 30, 60, 180, 360, 1440}

// NextWindow returns the preset after current, wrapping around. A current
// value that is not a preset moves to the first preset above it.
func NextWindow(current int) int {
	for _, w := range WindowPresets {
		if w > current {
			return w
		}
	}
	return WindowPresets[0]
}

// PrevWindow returns the preset before current, wrapping around.
func PrevWindow(current int) int {
	for i := len(WindowPresets) - 1; i >= 0; i-- {
		if WindowPresets[i] < current {
			return WindowPresets[i]
		}
	}
	return WindowPresets[len(WindowPresets)-1]
}

// ValidateWindow rejects windows shorter than one minute.
func ValidateWindow(minutes int) error {
	if minutes <= 0 {
		return errors.New(errors.ErrSelection,
			fmt.Sprintf("Invalid window: %d minutes", minutes),
			"The window must be at least 1 minute")
	}
	return nil
}

// FormatWindow renders a window length for display ("30m", "6h", "1d").
func FormatWindow(minutes int) string {
	switch {
	case minutes >= 1440 && minutes%1440 == 0:
		return fmt.Sprintf("%dd", minutes/1440)
	case minutes >= 60 && minutes%60 == 0:
		return fmt.Sprintf("%dh", minutes/60)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// SelectionListener is notified after the selection changes.
type SelectionListener interface {
	SelectionChanged(sel Selection)
}

// SelectionListenerFunc adapts a function to SelectionListener.
type SelectionListenerFunc func(sel Selection)

// SelectionChanged calls f.
func (f SelectionListenerFunc) SelectionChanged(sel Selection) { f(sel) }

// SelectionController tracks the active entity and window and tells one
// listener about every change. Invalid input is rejected with a SELECTION
// error and leaves the selection untouched.
type SelectionController struct {
	mu       sync.Mutex
	entities []Entity
	byID     map[string]Entity
	sel      Selection
	listener SelectionListener
}

// NewSelectionController creates a controller with no entity selected.
// A non-positive window falls back to DefaultWindowMinutes.
func NewSelectionController(windowMinutes int) *SelectionController {
	if windowMinutes <= 0 {
		windowMinutes = DefaultWindowMinutes
	}
	return &SelectionController{
		byID: make(map[string]Entity),
		sel:  Selection{WindowMinutes: windowMinutes},
	}
}

// SetEntities loads the entity directory. Entities with an empty ID are
// skipped.
func (c *SelectionController) SetEntities(entities []Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entities = c.entities[:0]
	c.byID = make(map[string]Entity, len(entities))
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		if _, dup := c.byID[e.ID]; dup {
			continue
		}
		c.entities = append(c.entities, e)
		c.byID[e.ID] = e
	}
}

// Entities returns the directory in load order.
func (c *SelectionController) Entities() []Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entity, len(c.entities))
	copy(out, c.entities)
	return out
}

// Entity looks up a directory entry.
func (c *SelectionController) Entity(id string) (Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[id]
	return e, ok
}

// SetListener registers the listener, replacing any previous one.
func (c *SelectionController) SetListener(l SelectionListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

// Current returns the current selection.
func (c *SelectionController) Current() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel
}

// SelectEntity makes id the active entity.
func (c *SelectionController) SelectEntity(id string) error {
	c.mu.Lock()
	if id == "" {
		c.mu.Unlock()
		return errors.New(errors.ErrSelection,
			"No device given",
			"Pick a device from the list, or pass --device <id>")
	}
	if _, ok := c.byID[id]; !ok {
		c.mu.Unlock()
		return errors.New(errors.ErrSelection,
			fmt.Sprintf("Unknown device '%s'", id),
			"Run 'netwatch devices' to see the available device IDs")
	}

	next := c.sel
	next.EntityID = id
	return c.apply(next)
}

// SetWindow changes the trailing window.
func (c *SelectionController) SetWindow(minutes int) error {
	if err := ValidateWindow(minutes); err != nil {
		return err
	}

	c.mu.Lock()
	next := c.sel
	next.WindowMinutes = minutes
	return c.apply(next)
}

// apply stores next and notifies the listener outside the lock.
// Must be called with c.mu held; releases it.
func (c *SelectionController) apply(next Selection) error {
	c.sel = next
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener.SelectionChanged(next)
	}
	return nil
}
