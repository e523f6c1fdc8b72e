package tunnel

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// Settings are the resolved connection parameters for a jump host.
type Settings struct {
	Alias        string // what the user wrote, e.g. "bastion" or "ops@10.0.0.1:2222"
	HostName     string
	Port         string
	User         string
	IdentityFile string

	// MatchLine is the line of the first Match block in ~/.ssh/config, or 0.
	// Entries after it are not visible to the parser.
	MatchLine int
	// FromConfig reports whether ~/.ssh/config had an entry for the alias.
	FromConfig bool
}

// Address returns host:port for dialing.
func (s Settings) Address() string {
	return net.JoinHostPort(s.HostName, s.Port)
}

// ResolveSettings parses host ([user@]host[:port] or an ssh config alias)
// and fills in the rest from ~/.ssh/config.
func ResolveSettings(host string) Settings {
	s := Settings{
		Alias: host,
		Port:  "22",
		User:  currentUser(),
	}

	if at := strings.Index(host, "@"); at != -1 {
		s.User = host[:at]
		host = host[at+1:]
	}
	if colon := strings.LastIndex(host, ":"); colon != -1 && isDigits(host[colon+1:]) {
		s.Port = host[colon+1:]
		host = host[:colon]
	}
	s.HostName = host

	content, matchLine, err := readSSHConfig(filepath.Join(homeDir(), ".ssh", "config"))
	if err != nil {
		return s
	}
	s.MatchLine = matchLine

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return s
	}

	if v, _ := cfg.Get(host, "HostName"); v != "" {
		s.HostName = v
		s.FromConfig = true
	}
	if v, _ := cfg.Get(host, "Port"); v != "" {
		s.Port = v
		s.FromConfig = true
	}
	if v, _ := cfg.Get(host, "User"); v != "" && !strings.Contains(s.Alias, "@") {
		s.User = v
		s.FromConfig = true
	}
	if v, _ := cfg.Get(host, "IdentityFile"); v != "" {
		s.IdentityFile = expandHome(v)
		s.FromConfig = true
	}
	return s
}

// MatchWarning describes why an alias may not have resolved, or "" when
// there is nothing to say.
func (s Settings) MatchWarning() string {
	if s.MatchLine == 0 || s.FromConfig {
		return ""
	}
	return fmt.Sprintf(
		"host '%s' not found in ~/.ssh/config before the Match block at line %d; entries after it are ignored",
		s.Alias, s.MatchLine)
}

// readSSHConfig returns the config up to the first Match directive, which
// ssh_config cannot parse, plus that directive's 1-based line number.
func readSSHConfig(path string) ([]byte, int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			return []byte(strings.Join(lines[:i], "\n")), i + 1, nil
		}
	}
	return content, 0, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
