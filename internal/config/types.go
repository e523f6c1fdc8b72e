package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Theme names accepted in the config and by 'netwatch theme'.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Config represents the complete .netwatch.yaml configuration file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Theme is the dashboard palette: "dark", "light", or "auto" (detect
	// from the terminal background).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// LogFile receives log output while the dashboard owns the terminal.
	// Supports ~ and ${HOME}.
	LogFile string `yaml:"log_file" mapstructure:"log_file"`

	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Push      PushConfig      `yaml:"push" mapstructure:"push"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
	Serve     ServeConfig     `yaml:"serve" mapstructure:"serve"`
}

// ServerConfig locates the monitoring backend.
type ServerConfig struct {
	// URL is the backend's base URL, e.g. http://localhost:5000.
	URL string `yaml:"url" mapstructure:"url"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Tunnel is an SSH jump host (alias or user@host:port) to reach the
	// backend through. Empty dials directly.
	Tunnel string `yaml:"tunnel" mapstructure:"tunnel"`

	// TunnelInsecure skips known_hosts verification for the jump host.
	TunnelInsecure bool `yaml:"tunnel_insecure" mapstructure:"tunnel_insecure"`
}

// PushConfig controls the live update channel.
type PushConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// URL overrides the WebSocket URL derived from server.url.
	URL string `yaml:"url" mapstructure:"url"`

	ReconnectMin time.Duration `yaml:"reconnect_min" mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max" mapstructure:"reconnect_max"`
}

// DashboardConfig controls the live view.
type DashboardConfig struct {
	// Device is selected as soon as the device list loads.
	Device string `yaml:"device" mapstructure:"device"`

	// Window is the trailing window in minutes.
	Window int `yaml:"window" mapstructure:"window"`

	FetchTimeout time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`

	// PollInterval refreshes by pull while the push channel is down.
	// Zero disables polling.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// RefreshOnPush issues a full pull after every push update.
	RefreshOnPush bool `yaml:"refresh_on_push" mapstructure:"refresh_on_push"`

	// MaxPoints caps points kept per channel. Zero means unbounded.
	MaxPoints int `yaml:"max_points" mapstructure:"max_points"`
}

// ServeConfig configures the reference backend.
type ServeConfig struct {
	Listen string `yaml:"listen" mapstructure:"listen"`

	// Devices is how many synthetic devices to simulate.
	Devices int `yaml:"devices" mapstructure:"devices"`

	// Interval between generated samples.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// Retention is how many samples to keep per channel.
	Retention int `yaml:"retention" mapstructure:"retention"`

	// Redis is host:port of a Redis server for history. Empty keeps history
	// in memory.
	Redis string `yaml:"redis" mapstructure:"redis"`

	// DataDir holds attack_log.txt and the site CSV tables. Supports ~.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Theme:   ThemeAuto,
		Server: ServerConfig{
			URL:     "http://localhost:5000",
			Timeout: 10 * time.Second,
		},
		Push: PushConfig{
			Enabled:      true,
			ReconnectMin: time.Second,
			ReconnectMax: 30 * time.Second,
		},
		Dashboard: DashboardConfig{
			Window:        30,
			FetchTimeout:  15 * time.Second,
			RefreshOnPush: true,
			MaxPoints:     5000,
		},
		Serve: ServeConfig{
			Listen:    ":5000",
			Devices:   4,
			Interval:  2 * time.Second,
			Retention: 1800,
		},
	}
}
