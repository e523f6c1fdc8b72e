package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

func TestChannelSink_KeepsNewestFrame(t *testing.T) {
	s := NewChannelSink()
	defer s.Close()

	for i := 1; i <= 3; i++ {
		s.Render(telemetry.RenderEvent{WindowMinutes: i})
	}

	msg := s.Wait()()
	assert.Equal(t, 3, telemetry.RenderEvent(msg.(frameMsg)).WindowMinutes)
}

func TestChannelSink_WaitBlocksUntilFrame(t *testing.T) {
	s := NewChannelSink()
	defer s.Close()

	got := make(chan any, 1)
	go func() { got <- s.Wait()() }()

	select {
	case <-got:
		t.Fatal("Wait returned before a frame was rendered")
	case <-time.After(20 * time.Millisecond):
	}

	s.Render(telemetry.RenderEvent{EntityID: "7"})
	select {
	case msg := <-got:
		assert.Equal(t, "7", telemetry.RenderEvent(msg.(frameMsg)).EntityID)
	case <-time.After(time.Second):
		t.Fatal("Wait never returned")
	}
}

func TestChannelSink_Close(t *testing.T) {
	s := NewChannelSink()
	s.Close()
	s.Close()

	assert.Nil(t, s.Wait()())

	done := make(chan struct{})
	go func() {
		s.Render(telemetry.RenderEvent{})
		s.Render(telemetry.RenderEvent{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Render blocked after Close")
	}
}
