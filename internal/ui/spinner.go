package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Spinner animation frames
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Spinner shows an animated one-line status while a CLI command waits.
type Spinner struct {
	mu       sync.Mutex
	out      io.Writer
	label    string
	frame    int
	started  time.Time
	running  bool
	stop     chan struct{}
	done     chan struct{}
	lastLine int
}

// NewSpinner creates a spinner that draws to out.
func NewSpinner(label string, out io.Writer) *Spinner {
	return &Spinner{label: label, out: out}
}

// Start begins the animation. Calling Start twice is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.started = time.Now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.render()
	go s.animate()
}

// Success stops the spinner with a check mark.
func (s *Spinner) Success() { s.finish(SymbolSuccess, ColorSuccess) }

// Fail stops the spinner with a cross.
func (s *Spinner) Fail() { s.finish(SymbolFail, ColorError) }

func (s *Spinner) finish(symbol string, color lipgloss.Color) {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()
	if running {
		close(s.stop)
		<-s.done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	elapsed := time.Since(s.started)
	timing := lipgloss.NewStyle().Foreground(ColorMuted).Render(fmt.Sprintf("%.1fs", elapsed.Seconds()))
	fmt.Fprintf(s.out, "%s %s %s\n", lipgloss.NewStyle().Foreground(color).Render(symbol), s.label, timing)
}

func (s *Spinner) animate() {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(spinnerFrames)
			s.mu.Unlock()
			s.render()
		}
	}
}

func (s *Spinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	color := GradientColors[(s.frame/2)%len(GradientColors)]
	line := lipgloss.NewStyle().Foreground(color).Render(spinnerFrames[s.frame]) + " " + s.label + "..."
	s.clear()
	fmt.Fprint(s.out, line)
	s.lastLine = lipgloss.Width(line)
}

// clear blanks the previously drawn line. Callers hold mu.
func (s *Spinner) clear() {
	if s.lastLine == 0 {
		return
	}
	fmt.Fprint(s.out, "\r"+strings.Repeat(" ", s.lastLine)+"\r")
	s.lastLine = 0
}
