package tunnel

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/rileyhilliard/netwatch/internal/errors"
)

var (
	agentOnce   sync.Once
	agentConn   net.Conn
	agentClient agent.ExtendedAgent
)

// clientConfig builds the SSH client config for s. With strict set, host
// keys are checked against ~/.ssh/known_hosts.
func clientConfig(s Settings, strict bool, timeout time.Duration) (*ssh.ClientConfig, error) {
	var methods []ssh.AuthMethod
	var encrypted []string

	if a := agentAuth(); a != nil {
		methods = append(methods, a)
	}

	tried := make(map[string]bool)
	tryKey := func(path string) {
		if path == "" || tried[path] {
			return
		}
		tried[path] = true
		m, err := keyFileAuth(path)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				encrypted = append(encrypted, path)
			}
			return
		}
		methods = append(methods, m)
	}

	tryKey(s.IdentityFile)
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		tryKey(filepath.Join(homeDir(), ".ssh", name))
	}

	if len(methods) == 0 {
		if len(encrypted) > 0 {
			return nil, errors.New(errors.ErrTunnel,
				fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(encrypted, ", ")),
				"Add them to the agent first: ssh-add <key>")
		}
		return nil, errors.New(errors.ErrTunnel,
			"No SSH auth methods available for the tunnel",
			"Check your keys are loaded: ssh-add -l")
	}

	hostKey := ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in via server.tunnel_insecure
	if strict {
		var err error
		hostKey, err = hostKeyCallback(filepath.Join(homeDir(), ".ssh", "known_hosts"))
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrTunnel,
				"Couldn't load known_hosts", "Check the permissions on ~/.ssh/known_hosts")
		}
	}

	return &ssh.ClientConfig{
		User:            s.User,
		Auth:            methods,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

// agentAuth uses SSH_AUTH_SOCK when the agent holds at least one key.
func agentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})
	if agentClient == nil {
		return nil
	}

	// An empty agent placed first makes servers give up before trying files.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent releases the shared agent connection.
func CloseAgent() {
	if agentConn != nil {
		_ = agentConn.Close()
	}
}

func keyFileAuth(path string) (ssh.AuthMethod, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || bytes.Contains(data, []byte("ENCRYPTED")) {
			return nil, &EncryptedKeyError{Path: path}
		}
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

// EncryptedKeyError is returned for a key that needs a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is passphrase protected", e.Path)
}

// HostKeyMismatchError is returned when the jump host's key is not the one
// recorded in known_hosts.
type HostKeyMismatchError struct {
	Hostname   string
	Received   string
	KnownHosts string
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.Received)
}

// Suggestion tells the user how to repair known_hosts.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return fmt.Sprintf("If the host was rebuilt, remove the old entry: ssh-keygen -R %s -f %s", host, e.KnownHosts)
}

func hostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			return nil, err
		}
	}

	check, err := knownhosts.New(path)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{Hostname: hostname, Received: key.Type(), KnownHosts: path}
		}
		return err
	}, nil
}
