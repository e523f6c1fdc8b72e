package doctor

import (
	"context"
	stderrors "errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

type fakeAPI struct {
	healthErr error
	devices   []telemetry.Entity
	listErr   error
}

func (f *fakeAPI) Health(context.Context) error { return f.healthErr }

func (f *fakeAPI) ListEntities(context.Context) ([]telemetry.Entity, error) {
	return f.devices, f.listErr
}

type fakeProber struct{ err error }

func (f *fakeProber) Probe(context.Context) error { return f.err }
func (f *fakeProber) URL() string                 { return "ws://localhost:5000/ws" }

type fakeDialer struct {
	addrs []string
	err   error
}

func (f *fakeDialer) Host() string { return "jump" }

func (f *fakeDialer) DialContext(_ context.Context, _, addr string) (net.Conn, error) {
	f.addrs = append(f.addrs, addr)
	if f.err != nil {
		return nil, f.err
	}
	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

func TestConfigCheck(t *testing.T) {
	r := (&ConfigCheck{Path: "/home/me/.netwatch.yaml"}).Run(context.Background())
	assert.Equal(t, StatusPass, r.Status)
	assert.Equal(t, "Config file: .netwatch.yaml", r.Message)

	r = (&ConfigCheck{}).Run(context.Background())
	assert.Equal(t, StatusWarn, r.Status)

	bad := errors.New(errors.ErrConfig, "Unknown theme 'neon'", "Use one of: auto, dark, light")
	r = (&ConfigCheck{Err: bad}).Run(context.Background())
	assert.Equal(t, StatusFail, r.Status)
	assert.Equal(t, "Unknown theme 'neon'", r.Message)
}

func TestTunnelCheck(t *testing.T) {
	r := (&TunnelCheck{ServerURL: "http://10.0.0.5:5000"}).Run(context.Background())
	assert.Equal(t, StatusSkip, r.Status)

	d := &fakeDialer{}
	r = (&TunnelCheck{Dialer: d, ServerURL: "https://noc.internal"}).Run(context.Background())
	assert.Equal(t, StatusPass, r.Status)
	assert.Equal(t, []string{"noc.internal:443"}, d.addrs)
	assert.Contains(t, r.Message, "through jump")

	d = &fakeDialer{err: stderrors.New("handshake failed")}
	r = (&TunnelCheck{Dialer: d, ServerURL: "http://10.0.0.5"}).Run(context.Background())
	assert.Equal(t, StatusFail, r.Status)
	assert.Equal(t, []string{"10.0.0.5:80"}, d.addrs)
}

func TestHealthCheck(t *testing.T) {
	r := (&HealthCheck{Client: &fakeAPI{}, ServerURL: "http://x"}).Run(context.Background())
	assert.Equal(t, StatusPass, r.Status)

	r = (&HealthCheck{Client: &fakeAPI{healthErr: stderrors.New("connection refused")}, ServerURL: "http://x"}).Run(context.Background())
	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, r.Suggestion, "netwatch serve")
}

func TestDirectoryCheck(t *testing.T) {
	r := (&DirectoryCheck{Client: &fakeAPI{devices: []telemetry.Entity{{ID: "1"}, {ID: "2"}}}}).Run(context.Background())
	assert.Equal(t, StatusPass, r.Status)
	assert.Equal(t, "2 devices", r.Message)

	r = (&DirectoryCheck{Client: &fakeAPI{}}).Run(context.Background())
	assert.Equal(t, StatusWarn, r.Status)

	listErr := errors.WrapWithCode(stderrors.New("404"), errors.ErrFetch, "Couldn't load the device list", "Check server.url")
	r = (&DirectoryCheck{Client: &fakeAPI{listErr: listErr}}).Run(context.Background())
	assert.Equal(t, StatusFail, r.Status)
	assert.Equal(t, "Check server.url", r.Suggestion)
}

func TestPushCheck(t *testing.T) {
	r := (&PushCheck{}).Run(context.Background())
	assert.Equal(t, StatusSkip, r.Status)

	r = (&PushCheck{Client: &fakeProber{}}).Run(context.Background())
	assert.Equal(t, StatusPass, r.Status)

	r = (&PushCheck{Client: &fakeProber{err: stderrors.New("bad handshake")}}).Run(context.Background())
	assert.Equal(t, StatusWarn, r.Status)
}

type slowCheck struct {
	name  string
	delay time.Duration
}

func (c slowCheck) Name() string     { return c.name }
func (c slowCheck) Category() string { return "TEST" }
func (c slowCheck) Run(context.Context) CheckResult {
	time.Sleep(c.delay)
	return CheckResult{Status: StatusPass}
}

func TestRunAllParallel_KeepsOrderAndFillsNames(t *testing.T) {
	checks := []Check{
		slowCheck{name: "a", delay: 30 * time.Millisecond},
		slowCheck{name: "b"},
	}

	results := RunAllParallel(context.Background(), checks)

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Name)
	assert.Equal(t, "b", results[1].Name)
	assert.Equal(t, "TEST", results[1].Category)
}

func TestSummaries(t *testing.T) {
	results := RunAll(context.Background(), []Check{
		&PushCheck{},
		&HealthCheck{Client: &fakeAPI{healthErr: stderrors.New("down")}},
		&DirectoryCheck{Client: &fakeAPI{devices: []telemetry.Entity{{ID: "1"}}}},
	})

	counts := CountByStatus(results)
	assert.Equal(t, 1, counts[StatusSkip])
	assert.Equal(t, 1, counts[StatusFail])
	assert.Equal(t, 1, counts[StatusPass])
	assert.True(t, HasFailures(results))
	assert.False(t, HasFailures(results[2:]))
}

func TestCheckStatus_MarshalText(t *testing.T) {
	b, err := StatusWarn.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "warn", string(b))
}
