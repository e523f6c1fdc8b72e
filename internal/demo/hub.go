package demo

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rileyhilliard/netwatch/internal/logger"
	"github.com/rileyhilliard/netwatch/internal/push"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

const (
	sendBuffer     = 32
	writeWait      = 5 * time.Second
	maxInboundSize = 64 << 10
)

// hub fans telemetry_update frames out to every connected push client.
type hub struct {
	upgrader websocket.Upgrader
	latest   func(ctx context.Context, deviceID string) (map[string]telemetry.Point, bool)
	log      logger.Logger

	mu      sync.Mutex
	clients map[*peer]struct{}
}

// peer is one WebSocket connection with its own writer goroutine.
type peer struct {
	conn *websocket.Conn
	send chan push.Envelope
	once sync.Once
	done chan struct{}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

func newHub(latest func(ctx context.Context, deviceID string) (map[string]telemetry.Point, bool), log logger.Logger) *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			// The dashboard is not a browser; any origin is fine.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		latest:  latest,
		log:     log,
		clients: make(map[*peer]struct{}),
	}
}

// ServeHTTP upgrades the request and runs the peer until it disconnects.
func (h *hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("serve: websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	conn.SetReadLimit(maxInboundSize)

	p := &peer{conn: conn, send: make(chan push.Envelope, sendBuffer), done: make(chan struct{})}
	h.add(p)
	h.log.Info("serve: push client %s connected", r.RemoteAddr)

	go h.writeLoop(p)
	h.readLoop(r.Context(), p)

	h.remove(p)
	p.close()
	h.log.Info("serve: push client %s disconnected", r.RemoteAddr)
}

func (h *hub) add(p *peer) {
	h.mu.Lock()
	h.clients[p] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(p *peer) {
	h.mu.Lock()
	delete(h.clients, p)
	h.mu.Unlock()
}

// count returns the number of connected peers.
func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast queues env for every peer. A peer whose buffer is full misses
// the frame.
func (h *hub) broadcast(env push.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.clients {
		h.enqueue(p, env)
	}
}

func (h *hub) enqueue(p *peer, env push.Envelope) {
	select {
	case p.send <- env:
	case <-p.done:
	default:
		h.log.Warn("serve: push client %s is slow, dropping %s", p.conn.RemoteAddr(), env.Event)
	}
}

// closeAll disconnects every peer.
func (h *hub) closeAll() {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.clients))
	for p := range h.clients {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		p.close()
	}
}

func (h *hub) writeLoop(p *peer) {
	for {
		select {
		case <-p.done:
			return
		case env := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(env); err != nil {
				h.log.Debug("serve: write to %s failed: %v", p.conn.RemoteAddr(), err)
				p.close()
				return
			}
		}
	}
}

func (h *hub) readLoop(ctx context.Context, p *peer) {
	for {
		var env push.Envelope
		if err := p.conn.ReadJSON(&env); err != nil {
			return
		}

		switch env.Event {
		case telemetry.CommandRequestUpdate:
			var req push.RequestUpdate
			if err := json.Unmarshal(env.Data, &req); err != nil || req.DeviceID == "" {
				h.log.Warn("serve: bad request_update from %s", p.conn.RemoteAddr())
				continue
			}
			h.answer(ctx, p, req.DeviceID)
		default:
			h.log.Debug("serve: ignoring %q from %s", env.Event, p.conn.RemoteAddr())
		}
	}
}

// answer sends the device's newest points to p alone.
func (h *hub) answer(ctx context.Context, p *peer, deviceID string) {
	points, ok := h.latest(ctx, deviceID)
	if !ok {
		h.log.Debug("serve: request_update for unknown device %s", deviceID)
		return
	}
	env, err := push.NewEnvelope(telemetry.EventTelemetryUpdate, push.Update{deviceID: points})
	if err != nil {
		h.log.Error("serve: %v", err)
		return
	}
	h.enqueue(p, env)
}
