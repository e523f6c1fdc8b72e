package tunnel

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/logger"
)

// fakeHome points HOME at a temp dir with an empty .ssh and no agent.
func fakeHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SSH_AUTH_SOCK", "")
	t.Setenv("USER", "tester")
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0o700))
	return home
}

func writeSSHConfig(t *testing.T, home, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "config"), []byte(content), 0o600))
}

func TestResolveSettings_Direct(t *testing.T) {
	fakeHome(t)

	tests := []struct {
		host string
		want Settings
	}{
		{host: "10.0.0.1", want: Settings{HostName: "10.0.0.1", Port: "22", User: "tester"}},
		{host: "ops@10.0.0.1", want: Settings{HostName: "10.0.0.1", Port: "22", User: "ops"}},
		{host: "ops@bastion:2222", want: Settings{HostName: "bastion", Port: "2222", User: "ops"}},
		{host: "bastion:ssh", want: Settings{HostName: "bastion:ssh", Port: "22", User: "tester"}},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			tt.want.Alias = tt.host
			assert.Equal(t, tt.want, ResolveSettings(tt.host))
		})
	}
}

func TestResolveSettings_FromSSHConfig(t *testing.T) {
	home := fakeHome(t)
	writeSSHConfig(t, home, `
Host bastion
    HostName 203.0.113.10
    Port 2200
    User jump
    IdentityFile ~/.ssh/jump_key
`)

	s := ResolveSettings("bastion")

	assert.Equal(t, "203.0.113.10", s.HostName)
	assert.Equal(t, "2200", s.Port)
	assert.Equal(t, "jump", s.User)
	assert.Equal(t, filepath.Join(home, ".ssh", "jump_key"), s.IdentityFile)
	assert.True(t, s.FromConfig)
	assert.Equal(t, "203.0.113.10:2200", s.Address())
}

func TestResolveSettings_ExplicitUserWins(t *testing.T) {
	home := fakeHome(t)
	writeSSHConfig(t, home, "Host bastion\n    User jump\n")

	assert.Equal(t, "me", ResolveSettings("me@bastion").User)
}

func TestResolveSettings_MatchBlockWarning(t *testing.T) {
	home := fakeHome(t)
	writeSSHConfig(t, home, "Host early\n    Port 2022\n\nMatch host *.corp\n    User corp\n\nHost late\n    Port 2200\n")

	early := ResolveSettings("early")
	assert.Equal(t, "2022", early.Port)
	assert.Empty(t, early.MatchWarning())

	late := ResolveSettings("late")
	assert.Equal(t, "22", late.Port)
	assert.Equal(t, 4, late.MatchLine)
	assert.Contains(t, late.MatchWarning(), "line 4")
}

func TestClientConfig_NoKeys(t *testing.T) {
	fakeHome(t)

	_, err := clientConfig(ResolveSettings("bastion"), true, time.Second)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTunnel))
}

func TestClientConfig_EncryptedKey(t *testing.T) {
	home := fakeHome(t)
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("secret"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "id_ed25519"), pem.EncodeToMemory(block), 0o600))

	_, err = clientConfig(ResolveSettings("bastion"), true, time.Second)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTunnel))
	assert.Contains(t, err.Error(), "encrypted")
}

// writeClientKey installs an unencrypted default key and returns its public half.
func writeClientKey(t *testing.T, home string) ssh.PublicKey {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "id_ed25519"), pem.EncodeToMemory(block), 0o600))
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return sshPub
}

// startJumpHost runs a minimal SSH server that accepts clientKey and serves
// direct-tcpip channels. It returns the listen address and host key.
func startJumpHost(t *testing.T, clientKey ssh.PublicKey) (string, ssh.PublicKey) {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == string(clientKey.Marshal()) {
				return nil, nil
			}
			return nil, assert.AnError
		},
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go serveJump(nc, cfg)
		}
	}()

	return ln.Addr().String(), hostSigner.PublicKey()
}

func serveJump(nc net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "direct-tcpip" {
			_ = nch.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		var target struct {
			Host     string
			Port     uint32
			OrigHost string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(nch.ExtraData(), &target); err != nil {
			_ = nch.Reject(ssh.ConnectionFailed, "bad payload")
			continue
		}
		upstream, err := net.Dial("tcp", net.JoinHostPort(target.Host, strconv.Itoa(int(target.Port))))
		if err != nil {
			_ = nch.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		ch, chReqs, err := nch.Accept()
		if err != nil {
			_ = upstream.Close()
			continue
		}
		go ssh.DiscardRequests(chReqs)
		go func() {
			_, _ = io.Copy(ch, upstream)
			_ = ch.CloseWrite()
		}()
		go func() {
			_, _ = io.Copy(upstream, ch)
			_ = upstream.Close()
		}()
	}
}

// startEcho runs a TCP server that echoes one line back.
func startEcho(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				_, _ = io.Copy(c, c)
			}()
		}
	}()
	return ln.Addr().String()
}

func TestDialer_DialsThroughJumpHost(t *testing.T) {
	home := fakeHome(t)
	clientKey := writeClientKey(t, home)
	jumpAddr, hostKey := startJumpHost(t, clientKey)
	line := knownhosts.Line([]string{knownhosts.Normalize(jumpAddr)}, hostKey)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "known_hosts"), []byte(line+"\n"), 0o600))
	echoAddr := startEcho(t)

	d := New(jumpAddr, WithTimeout(2*time.Second), WithLogger(logger.Noop()))
	t.Cleanup(func() { _ = d.Close() })

	conn, err := d.DialContext(context.Background(), "tcp", echoAddr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping\n"))
	require.NoError(t, err)
	buf := make([]byte, 5)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping\n", string(buf))

	// A second dial reuses the SSH connection.
	first := d.client
	conn2, err := d.DialContext(context.Background(), "tcp", echoAddr)
	require.NoError(t, err)
	_ = conn2.Close()
	assert.Same(t, first, d.client)
}

func TestDialer_UnknownHostKeyIsRejected(t *testing.T) {
	home := fakeHome(t)
	clientKey := writeClientKey(t, home)
	jumpAddr, _ := startJumpHost(t, clientKey)

	d := New(jumpAddr, WithTimeout(2*time.Second), WithLogger(logger.Noop()))

	_, err := d.DialContext(context.Background(), "tcp", "127.0.0.1:1")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTunnel))
}

func TestDialer_InsecureSkipsKnownHosts(t *testing.T) {
	home := fakeHome(t)
	clientKey := writeClientKey(t, home)
	jumpAddr, _ := startJumpHost(t, clientKey)
	echoAddr := startEcho(t)

	d := New(jumpAddr, WithInsecureHostKey(true), WithLogger(logger.Noop()))
	t.Cleanup(func() { _ = d.Close() })

	conn, err := d.DialContext(context.Background(), "tcp", echoAddr)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestDialer_UnreachableJumpHost(t *testing.T) {
	home := fakeHome(t)
	writeClientKey(t, home)

	d := New("127.0.0.1:1", WithTimeout(500*time.Millisecond), WithLogger(logger.Noop()))

	_, err := d.DialContext(context.Background(), "tcp", "127.0.0.1:80")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTunnel))
	assert.Contains(t, err.Error(), "Can't reach jump host")
}

func TestHostKeyMismatchError_Suggestion(t *testing.T) {
	e := &HostKeyMismatchError{Hostname: "bastion:22", Received: "ssh-ed25519", KnownHosts: "/h/.ssh/known_hosts"}
	assert.Contains(t, e.Error(), "bastion:22")
	assert.Contains(t, e.Suggestion(), "ssh-keygen -R bastion -f /h/.ssh/known_hosts")
}
