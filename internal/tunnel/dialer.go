// Package tunnel dials the monitoring backend through an SSH jump host, for
// backends that only listen on a management network. The HTTP and push
// clients take its DialContext in place of net.Dialer's.
package tunnel

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/logger"
)

// DefaultTimeout bounds the TCP connect and SSH handshake to the jump host.
const DefaultTimeout = 10 * time.Second

// Dialer opens connections through one SSH jump host. The SSH connection is
// made on first use and re-established if it dies.
type Dialer struct {
	host    string
	timeout time.Duration
	strict  bool
	log     logger.Logger

	mu     sync.Mutex
	client *ssh.Client
}

// Option configures a Dialer.
type Option func(*Dialer)

// WithTimeout sets the connect timeout for the jump host.
func WithTimeout(d time.Duration) Option {
	return func(t *Dialer) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithInsecureHostKey skips known_hosts verification.
func WithInsecureHostKey(insecure bool) Option {
	return func(t *Dialer) {
		t.strict = !insecure
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Dialer) {
		if l != nil {
			t.log = l
		}
	}
}

// New creates a dialer for host, which may be an ssh config alias or
// [user@]host[:port].
func New(host string, opts ...Option) *Dialer {
	d := &Dialer{
		host:    host,
		timeout: DefaultTimeout,
		strict:  true,
		log:     logger.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Host returns the jump host as configured.
func (d *Dialer) Host() string {
	return d.host
}

// DialContext connects to addr from the jump host.
func (d *Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	client, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := client.Dial(network, addr)
	if err == nil {
		return conn, nil
	}

	// The SSH connection may have gone stale; reconnect once.
	d.log.Debug("tunnel: dial %s via %s failed (%v), reconnecting", addr, d.host, err)
	d.drop(client)
	client, err = d.connect(ctx)
	if err != nil {
		return nil, err
	}
	conn, err = client.Dial(network, addr)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTunnel,
			fmt.Sprintf("Jump host '%s' couldn't reach %s", d.host, addr),
			"Check server.url is reachable from the jump host")
	}
	return conn, nil
}

// Close shuts down the SSH connection.
func (d *Dialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

func (d *Dialer) connect(ctx context.Context) (*ssh.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil {
		return d.client, nil
	}

	settings := ResolveSettings(d.host)
	if w := settings.MatchWarning(); w != "" {
		d.log.Warn("tunnel: %s", w)
	}

	cfg, err := clientConfig(settings, d.strict, d.timeout)
	if err != nil {
		return nil, err
	}

	address := settings.Address()
	dialer := net.Dialer{Timeout: d.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTunnel,
			fmt.Sprintf("Can't reach jump host '%s' at %s", d.host, address),
			"Make sure the host is reachable: ssh "+d.host)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, cfg)
	if err != nil {
		_ = conn.Close()
		var mismatch *HostKeyMismatchError
		if stderrors.As(err, &mismatch) {
			return nil, errors.New(errors.ErrTunnel, mismatch.Error(), mismatch.Suggestion())
		}
		return nil, errors.WrapWithCode(err, errors.ErrTunnel,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", d.host),
			"Try connecting manually first: ssh "+d.host)
	}

	d.log.Debug("tunnel: connected to %s as %s", address, settings.User)
	d.client = ssh.NewClient(sshConn, chans, reqs)
	return d.client, nil
}

func (d *Dialer) drop(client *ssh.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == client {
		_ = d.client.Close()
		d.client = nil
	}
}
