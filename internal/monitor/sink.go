package monitor

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

// frameMsg carries a render frame into the Bubble Tea loop.
type frameMsg telemetry.RenderEvent

// ChannelSink hands render frames to the Bubble Tea loop. It holds at most
// one pending frame: a newer frame replaces one the UI hasn't picked up yet,
// so the synchronizer never blocks on a slow terminal.
type ChannelSink struct {
	frames chan telemetry.RenderEvent
	done   chan struct{}
	once   sync.Once
}

// NewChannelSink creates an empty sink.
func NewChannelSink() *ChannelSink {
	return &ChannelSink{
		frames: make(chan telemetry.RenderEvent, 1),
		done:   make(chan struct{}),
	}
}

// Render implements telemetry.RenderSink.
func (s *ChannelSink) Render(ev telemetry.RenderEvent) {
	for {
		select {
		case <-s.done:
			return
		case s.frames <- ev:
			return
		default:
		}
		// Full: drop the stale frame and try again.
		select {
		case <-s.frames:
		default:
		}
	}
}

// Close stops delivery. Pending Wait commands return nil.
func (s *ChannelSink) Close() {
	s.once.Do(func() { close(s.done) })
}

// Wait returns a command that blocks until the next frame.
func (s *ChannelSink) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-s.frames:
			return frameMsg(ev)
		case <-s.done:
			return nil
		}
	}
}
