// Package api is the HTTP client for the monitoring backend's directory,
// metrics history and site status endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/logger"
	"github.com/rileyhilliard/netwatch/internal/netstatus"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

// Endpoint paths served by the backend.
const (
	DevicesPath = "/api/devices"
	MetricsPath = "/api/metrics/"
	HealthPath  = "/health"
	StatusPath  = "/api/status"
	TablesPath  = "/api/tables/"
)

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is quoted back.
const maxErrorBody = 512

// DialContextFunc matches net.Dialer.DialContext.
type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Client is a thin HTTP client for the backend API.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithDialContext routes connections through dial, e.g. an SSH tunnel.
func WithDialContext(dial DialContextFunc) Option {
	return func(c *Client) {
		if dial == nil {
			return
		}
		c.http.Transport = &http.Transport{
			DialContext:         dial,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		}
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

// NewClient creates a client for the given base URL (e.g. http://host:port).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: DefaultTimeout,
		},
		log: logger.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListEntities loads the device directory.
func (c *Client) ListEntities(ctx context.Context) ([]telemetry.Entity, error) {
	var entities []telemetry.Entity
	if err := c.getJSON(ctx, DevicesPath, &entities); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrFetch,
			"Couldn't load the device list",
			fmt.Sprintf("Check that the backend at %s is running, or set server.url in .netwatch.yaml", c.baseURL))
	}
	return entities, nil
}

// FetchMetrics loads the full metric history for one device. It implements
// telemetry.Fetcher.
func (c *Client) FetchMetrics(ctx context.Context, entityID string) (telemetry.Snapshot, error) {
	var snap telemetry.Snapshot
	start := time.Now()
	if err := c.getJSON(ctx, MetricsPath+url.PathEscape(entityID), &snap); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrFetch,
			fmt.Sprintf("Couldn't load metrics for device %s", entityID),
			"Press r to retry")
	}
	if snap == nil {
		snap = telemetry.Snapshot{}
	}
	c.log.Debug("fetched %d points for %s in %s", snap.Len(), entityID, time.Since(start).Round(time.Millisecond))
	return snap, nil
}

// Health checks that the backend answers.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]any
	return c.getJSON(ctx, HealthPath, &out)
}

// SiteStatus loads the per-area status derived from the backend's intrusion
// log.
func (c *Client) SiteStatus(ctx context.Context) ([]netstatus.Area, error) {
	var areas []netstatus.Area
	if err := c.getJSON(ctx, StatusPath, &areas); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrFetch,
			"Couldn't load the network status",
			fmt.Sprintf("Check that the backend at %s is running", c.baseURL))
	}
	return areas, nil
}

// Table loads one of the backend's site data tables by name.
func (c *Client) Table(ctx context.Context, name string) (netstatus.Table, error) {
	var t netstatus.Table
	if err := c.getJSON(ctx, TablesPath+url.PathEscape(name), &t); err != nil {
		return netstatus.Table{}, errors.WrapWithCode(err, errors.ErrFetch,
			fmt.Sprintf("Couldn't load the %s table", name),
			"Known tables: "+strings.Join(netstatus.TableNames(), ", "))
	}
	return t, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return fmt.Errorf("request failed: %s: %s", res.Status, msg)
		}
		return fmt.Errorf("request failed: %s", res.Status)
	}

	decoder := json.NewDecoder(res.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", path, err)
	}
	return nil
}
