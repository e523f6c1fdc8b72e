package telemetry

import (
	"context"
	"time"
)

// Push channel event and command names, as they appear on the wire.
const (
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
	EventTelemetryUpdate = "telemetry_update"
	CommandRequestUpdate = "request_update"
)

// Fetcher is the metrics history service: full history for one entity.
type Fetcher interface {
	FetchMetrics(ctx context.Context, entityID string) (Snapshot, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, entityID string) (Snapshot, error)

// FetchMetrics calls f.
func (f FetcherFunc) FetchMetrics(ctx context.Context, entityID string) (Snapshot, error) {
	return f(ctx, entityID)
}

// UpdateRequester sends the request_update command on the push channel.
type UpdateRequester interface {
	RequestUpdate(ctx context.Context, entityID string) error
}

// PushHandler receives push channel events. Implementations must not block
// for long; the push client calls them from its read goroutine.
type PushHandler interface {
	Connected()
	Disconnected(err error)
	Update(entityID string, points map[string]Point)
}

// RenderStatus is the status flag that accompanies each render.
type RenderStatus int

const (
	RenderOK RenderStatus = iota
	RenderLoading
	RenderError
)

// String returns a short label for the status.
func (s RenderStatus) String() string {
	switch s {
	case RenderOK:
		return "ok"
	case RenderLoading:
		return "loading"
	case RenderError:
		return "error"
	default:
		return "unknown"
	}
}

// RenderEvent is one frame for the render sink: the filtered series for the
// active entity and window plus status. Series is owned by the receiver.
type RenderEvent struct {
	EntityID      string
	WindowMinutes int
	Series        Snapshot
	Status        RenderStatus
	Err           error
	State         State
	Connected     bool
	UpdatedAt     time.Time
	At            time.Time
}

// RenderSink draws frames. Render is called from the synchronizer loop and
// should hand off quickly.
type RenderSink interface {
	Render(ev RenderEvent)
}

// RenderSinkFunc adapts a function to RenderSink.
type RenderSinkFunc func(ev RenderEvent)

// Render calls f.
func (f RenderSinkFunc) Render(ev RenderEvent) { f(ev) }
