package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/rileyhilliard/netwatch/internal/errors"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".netwatch.yaml"
	// GlobalConfigDir is the directory for global config, relative to home.
	GlobalConfigDir = ".config/netwatch"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. NETWATCH_SERVER_URL.
	EnvPrefix = "NETWATCH"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Create "+ConfigFileName+" or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .netwatch.yaml in current directory
// 3. .netwatch.yaml in parent directories (stops at git root or home)
// 4. ~/.config/netwatch/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	if local := filepath.Join(cwd, ConfigFileName); fileExists(local) {
		return local, nil
	}

	home, _ := os.UserHomeDir()
	dir := cwd
	for {
		if fileExists(filepath.Join(dir, ".git")) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir || (home != "" && parent == home) {
			break
		}
		dir = parent

		if candidate := filepath.Join(dir, ConfigFileName); fileExists(candidate) {
			return candidate, nil
		}
	}

	if global := GlobalPath(); global != "" && fileExists(global) {
		return global, nil
	}

	return "", nil
}

// GlobalPath returns ~/.config/netwatch/config.yaml, or "" without a home
// directory.
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// LoadOrDefault loads config from the found path, or returns defaults (with
// environment overrides applied) if there is no config file. The returned
// path is empty in the latter case.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "environment")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

// newViper returns a viper instance with defaults and env overrides set up.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, source string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+source)
	}

	cfg.LogFile = ExpandPath(cfg.LogFile)
	cfg.Serve.DataDir = ExpandPath(cfg.Serve.DataDir)
	cfg.Theme = strings.ToLower(strings.TrimSpace(cfg.Theme))
	return cfg, nil
}

// setDefaults registers every key so env overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("theme", d.Theme)
	v.SetDefault("log_file", d.LogFile)

	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.timeout", d.Server.Timeout.String())
	v.SetDefault("server.tunnel", d.Server.Tunnel)
	v.SetDefault("server.tunnel_insecure", d.Server.TunnelInsecure)

	v.SetDefault("push.enabled", d.Push.Enabled)
	v.SetDefault("push.url", d.Push.URL)
	v.SetDefault("push.reconnect_min", d.Push.ReconnectMin.String())
	v.SetDefault("push.reconnect_max", d.Push.ReconnectMax.String())

	v.SetDefault("dashboard.device", d.Dashboard.Device)
	v.SetDefault("dashboard.window", d.Dashboard.Window)
	v.SetDefault("dashboard.fetch_timeout", d.Dashboard.FetchTimeout.String())
	v.SetDefault("dashboard.poll_interval", d.Dashboard.PollInterval.String())
	v.SetDefault("dashboard.refresh_on_push", d.Dashboard.RefreshOnPush)
	v.SetDefault("dashboard.max_points", d.Dashboard.MaxPoints)

	v.SetDefault("serve.listen", d.Serve.Listen)
	v.SetDefault("serve.devices", d.Serve.Devices)
	v.SetDefault("serve.interval", d.Serve.Interval.String())
	v.SetDefault("serve.retention", d.Serve.Retention)
	v.SetDefault("serve.redis", d.Serve.Redis)
	v.SetDefault("serve.data_dir", d.Serve.DataDir)
}

// ExpandPath expands a leading ~ and ${HOME}/${USER} in a local path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	home, _ := os.UserHomeDir()
	if home != "" {
		if path == "~" {
			return home
		}
		if strings.HasPrefix(path, "~/") {
			path = filepath.Join(home, path[2:])
		}
		path = strings.ReplaceAll(path, "${HOME}", home)
	}
	if strings.Contains(path, "${USER}") {
		path = strings.ReplaceAll(path, "${USER}", os.Getenv("USER"))
	}
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
