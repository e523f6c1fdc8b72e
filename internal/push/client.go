// Package push is the WebSocket client for the backend's push channel. It
// turns frames into telemetry.PushHandler calls and reconnects with backoff
// when the connection drops.
package push

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/logger"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

const (
	DefaultReconnectMin = time.Second
	DefaultReconnectMax = 30 * time.Second

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	maxMessageSize   = 1 << 20
)

// Client maintains one push channel connection.
type Client struct {
	url     string
	handler telemetry.PushHandler
	dialer  *websocket.Dialer
	log     logger.Logger

	reconnectMin time.Duration
	reconnectMax time.Duration

	mu   sync.Mutex // guards conn and serializes writes
	conn *websocket.Conn
}

// Option configures a Client.
type Option func(*Client)

// WithReconnect sets the backoff bounds between connection attempts.
func WithReconnect(lo, hi time.Duration) Option {
	return func(c *Client) {
		if lo > 0 {
			c.reconnectMin = lo
		}
		if hi > 0 {
			c.reconnectMax = hi
		}
		if c.reconnectMax < c.reconnectMin {
			c.reconnectMax = c.reconnectMin
		}
	}
}

// WithNetDialContext routes the connection through dial, e.g. an SSH tunnel.
func WithNetDialContext(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(c *Client) {
		c.dialer.NetDialContext = dial
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a client for the ws:// or wss:// URL. Events go to
// handler.
func NewClient(url string, handler telemetry.PushHandler, opts ...Option) *Client {
	c := &Client{
		url:     url,
		handler: handler,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
		log:          logger.Default(),
		reconnectMin: DefaultReconnectMin,
		reconnectMax: DefaultReconnectMax,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the push channel URL.
func (c *Client) URL() string {
	return c.url
}

// Probe opens one connection and closes it straight away. It does not call
// the handler.
func (c *Client) Probe(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrPush,
			"Couldn't connect to the push channel at "+c.url,
			"Check push.url, or that the backend serves "+Path)
	}
	return conn.Close()
}

// Run connects and keeps reconnecting until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.reconnectMin
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = c.reconnectMin
		}
		if err != nil {
			c.log.Debug("push: %s; retrying in %s", errors.Summary(err), backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		backoff *= 2
		if backoff > c.reconnectMax {
			backoff = c.reconnectMax
		}
	}
}

// session runs one connection until it fails. connected reports whether the
// dial succeeded, so the caller can reset its backoff.
func (c *Client) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, errors.WrapWithCode(err, errors.ErrPush,
			"Couldn't connect to the push channel", "Live updates are paused; metrics still refresh on demand")
	}
	conn.SetReadLimit(maxMessageSize)

	c.setConn(conn)
	c.log.Debug("push: connected to %s", c.url)
	c.handler.Connected()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	err = c.readLoop(conn)

	c.setConn(nil)
	_ = conn.Close()

	if ctx.Err() != nil {
		c.handler.Disconnected(nil)
		return true, nil
	}
	err = errors.WrapWithCode(err, errors.ErrPush, "Push channel closed", "")
	c.handler.Disconnected(err)
	return true, err
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	switch env.Event {
	case telemetry.EventTelemetryUpdate:
		var update Update
		if err := json.Unmarshal(env.Data, &update); err != nil {
			c.log.Warn("push: dropping malformed %s: %v", env.Event, err)
			return
		}
		for id, points := range update {
			c.handler.Update(id, points)
		}
	default:
		c.log.Debug("push: ignoring event %q", env.Event)
	}
}

// RequestUpdate asks the backend to push the latest point for a device right
// away. It implements telemetry.UpdateRequester.
func (c *Client) RequestUpdate(ctx context.Context, entityID string) error {
	env, err := NewEnvelope(telemetry.CommandRequestUpdate, RequestUpdate{DeviceID: entityID})
	if err != nil {
		return err
	}
	return c.send(ctx, env)
}

func (c *Client) send(ctx context.Context, env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.New(errors.ErrPush, "Push channel is not connected", "")
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(env); err != nil {
		return errors.WrapWithCode(err, errors.ErrPush, "Couldn't send "+env.Event, "")
	}
	return nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}
