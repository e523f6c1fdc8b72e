package push

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

// Path is where the backend serves the push channel.
const Path = "/ws"

// Envelope is one frame on the push channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RequestUpdate is the payload of a request_update command.
type RequestUpdate struct {
	DeviceID string `json:"device_id"`
}

// Update is the payload of a telemetry_update event: device id to the newest
// point per channel.
type Update map[string]map[string]telemetry.Point

// NewEnvelope encodes data under the given event name.
func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// DeriveURL turns the backend's HTTP URL into the push channel URL:
// http becomes ws, https becomes wss, and the path is set to /ws.
func DeriveURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL %q: scheme must be http or https", serverURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", serverURL)
	}

	u.Path = strings.TrimRight(u.Path, "/") + Path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
