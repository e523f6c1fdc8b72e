package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"

	"github.com/rileyhilliard/netwatch/internal/config"
	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

// ConfigCheck reports which config file is in use and whether it validates.
type ConfigCheck struct {
	Path string // from config.LoadOrDefault; empty means defaults
	Err  error  // the load or validation error, if any
}

func (c *ConfigCheck) Name() string     { return "config" }
func (c *ConfigCheck) Category() string { return "CONFIG" }

func (c *ConfigCheck) Run(context.Context) CheckResult {
	if c.Err != nil {
		return failure(c.Err, "Fix the config file, then run 'netwatch doctor' again.")
	}
	if c.Path == "" {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "No config file, using defaults",
			Suggestion: fmt.Sprintf("Create %s or %s to point at your backend.", config.ConfigFileName, config.GlobalPath()),
		}
	}
	return CheckResult{Status: StatusPass, Message: "Config file: " + filepath.Base(c.Path)}
}

// Dialer is what TunnelCheck exercises: the SSH jump host dialer.
type Dialer interface {
	Host() string
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// TunnelCheck opens a TCP connection to the backend through the jump host.
type TunnelCheck struct {
	Dialer    Dialer // nil when server.tunnel is unset
	ServerURL string
}

func (c *TunnelCheck) Name() string     { return "tunnel" }
func (c *TunnelCheck) Category() string { return "BACKEND" }

func (c *TunnelCheck) Run(ctx context.Context) CheckResult {
	if c.Dialer == nil {
		return CheckResult{Status: StatusSkip, Message: "No SSH tunnel configured"}
	}

	addr, err := hostPort(c.ServerURL)
	if err != nil {
		return failure(err, "Fix server.url.")
	}
	conn, err := c.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return failure(err, "Check server.tunnel and that the jump host can reach "+addr+".")
	}
	_ = conn.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("Reached %s through %s", addr, c.Dialer.Host())}
}

// HealthChecker is the part of the API client HealthCheck uses.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthCheck calls the backend's health endpoint.
type HealthCheck struct {
	Client    HealthChecker
	ServerURL string
}

func (c *HealthCheck) Name() string     { return "health" }
func (c *HealthCheck) Category() string { return "BACKEND" }

func (c *HealthCheck) Run(ctx context.Context) CheckResult {
	if err := c.Client.Health(ctx); err != nil {
		return failure(err, fmt.Sprintf("Check the backend at %s is running (try 'netwatch serve' for a local one).", c.ServerURL))
	}
	return CheckResult{Status: StatusPass, Message: "Backend is up at " + c.ServerURL}
}

// DirectoryLister is the part of the API client DirectoryCheck uses.
type DirectoryLister interface {
	ListEntities(ctx context.Context) ([]telemetry.Entity, error)
}

// DirectoryCheck loads the device list.
type DirectoryCheck struct {
	Client DirectoryLister
}

func (c *DirectoryCheck) Name() string     { return "devices" }
func (c *DirectoryCheck) Category() string { return "BACKEND" }

func (c *DirectoryCheck) Run(ctx context.Context) CheckResult {
	devices, err := c.Client.ListEntities(ctx)
	if err != nil {
		return failure(err, "")
	}
	if len(devices) == 0 {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "The backend reports no devices",
			Suggestion: "Nothing to watch until the backend collects from a device.",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%d devices", len(devices))}
}

// Prober opens and closes one push channel connection.
type Prober interface {
	Probe(ctx context.Context) error
	URL() string
}

// PushCheck verifies the WebSocket push channel accepts connections.
type PushCheck struct {
	Client Prober // nil when push is disabled
}

func (c *PushCheck) Name() string     { return "push" }
func (c *PushCheck) Category() string { return "PUSH" }

func (c *PushCheck) Run(ctx context.Context) CheckResult {
	if c.Client == nil {
		return CheckResult{Status: StatusSkip, Message: "Push channel disabled (push.enabled: false)"}
	}
	if err := c.Client.Probe(ctx); err != nil {
		// The dashboard still works by pulling, so this is only a warning.
		r := failure(err, "Live updates will be off; the dashboard falls back to pull refreshes.")
		r.Status = StatusWarn
		return r
	}
	return CheckResult{Status: StatusPass, Message: "Push channel open at " + c.Client.URL()}
}

// failure turns err into a failed result, keeping a structured error's
// suggestion when fallback is empty.
func failure(err error, fallback string) CheckResult {
	r := CheckResult{Status: StatusFail, Message: errors.Summary(err), Suggestion: fallback}
	if r.Suggestion == "" {
		var e *errors.Error
		if stderrors.As(err, &e) {
			r.Suggestion = e.Suggestion
		}
	}
	return r
}

func hostPort(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("server.url %q isn't a valid URL", raw)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
