package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/rileyhilliard/netwatch/internal/errors"
)

// ValidThemes lists the accepted theme names.
var ValidThemes = []string{ThemeAuto, ThemeDark, ThemeLight}

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but netwatch only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade netwatch, or lower 'version' in the config file.")
	}

	if err := ValidateTheme(cfg.Theme); err != nil {
		return err
	}

	checks := []struct {
		section string
		check   func() error
	}{
		{"server", func() error { return validateServer(cfg.Server) }},
		{"push", func() error { return validatePush(cfg.Push) }},
		{"dashboard", func() error { return validateDashboard(cfg.Dashboard) }},
		{"serve", func() error { return validateServe(cfg.Serve) }},
	}
	for _, c := range checks {
		if err := c.check(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
				fmt.Sprintf("Check the '%s' section in your %s.", c.section, ConfigFileName))
		}
	}

	return nil
}

// ValidateTheme checks a theme name.
func ValidateTheme(theme string) error {
	for _, t := range ValidThemes {
		if theme == t {
			return nil
		}
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown theme '%s'", theme),
		fmt.Sprintf("Use one of: %s", strings.Join(ValidThemes, ", ")))
}

func validateServer(s ServerConfig) error {
	if err := validateURL("server.url", s.URL, "http", "https"); err != nil {
		return err
	}
	if s.Timeout < 0 {
		return fmt.Errorf("server.timeout can't be negative (got %s)", s.Timeout)
	}
	if strings.ContainsAny(s.Tunnel, " \t/") {
		return fmt.Errorf("server.tunnel '%s' should be an ssh alias or user@host[:port]", s.Tunnel)
	}
	return nil
}

func validatePush(p PushConfig) error {
	if p.URL != "" {
		if err := validateURL("push.url", p.URL, "ws", "wss"); err != nil {
			return err
		}
	}
	if p.ReconnectMin <= 0 {
		return fmt.Errorf("push.reconnect_min must be positive (got %s)", p.ReconnectMin)
	}
	if p.ReconnectMax < p.ReconnectMin {
		return fmt.Errorf("push.reconnect_max (%s) is less than push.reconnect_min (%s)", p.ReconnectMax, p.ReconnectMin)
	}
	return nil
}

func validateDashboard(d DashboardConfig) error {
	if d.Window <= 0 {
		return fmt.Errorf("dashboard.window must be at least 1 minute (got %d)", d.Window)
	}
	if d.FetchTimeout < 0 {
		return fmt.Errorf("dashboard.fetch_timeout can't be negative (got %s)", d.FetchTimeout)
	}
	if d.PollInterval < 0 {
		return fmt.Errorf("dashboard.poll_interval can't be negative (got %s)", d.PollInterval)
	}
	if d.MaxPoints < 0 {
		return fmt.Errorf("dashboard.max_points can't be negative (got %d)", d.MaxPoints)
	}
	return nil
}

func validateServe(s ServeConfig) error {
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		return fmt.Errorf("serve.listen '%s' should look like ':5000' or '127.0.0.1:5000'", s.Listen)
	}
	if s.Devices <= 0 {
		return fmt.Errorf("serve.devices must be positive (got %d)", s.Devices)
	}
	if s.Interval <= 0 {
		return fmt.Errorf("serve.interval must be positive (got %s)", s.Interval)
	}
	if s.Retention <= 0 {
		return fmt.Errorf("serve.retention must be positive (got %d)", s.Retention)
	}
	if s.DataDir != "" {
		info, err := os.Stat(s.DataDir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("serve.data_dir '%s' is not a directory", s.DataDir)
		}
	}
	if s.Redis != "" {
		if _, _, err := net.SplitHostPort(s.Redis); err != nil {
			return fmt.Errorf("serve.redis '%s' should be host:port", s.Redis)
		}
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s '%s' isn't a valid URL", field, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s '%s' must use %s", field, raw, strings.Join(schemes, " or "))
}
