package demo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/netwatch/internal/api"
	"github.com/rileyhilliard/netwatch/internal/logger"
	"github.com/rileyhilliard/netwatch/internal/netstatus"
	"github.com/rileyhilliard/netwatch/internal/push"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

var testNow = time.Date(2025, 4, 14, 15, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, devices int, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	opts = append([]Option{
		WithSeed(42),
		WithClock(func() time.Time { return testNow }),
		WithInterval(time.Second),
		WithLogger(logger.Noop()),
	}, opts...)
	s := NewServer(Devices(devices), opts...)
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.hub.closeAll()
		hs.Close()
	})
	return s, hs
}

func TestDevices(t *testing.T) {
	devices := Devices(8)

	require.Len(t, devices, 8)
	assert.Equal(t, "1", devices[0].ID)
	assert.Equal(t, "core-sw-1", devices[0].Name)
	assert.Equal(t, "10.0.0.1", devices[0].Address)
	assert.Equal(t, "core-sw-2", devices[6].Name)

	seen := map[string]bool{}
	for _, d := range devices {
		assert.False(t, seen[d.ID], "duplicate id %s", d.ID)
		seen[d.ID] = true
	}
}

func TestGenerator_DeterministicAndBounded(t *testing.T) {
	devices := Devices(3)
	a := NewGenerator(devices, 7)
	b := NewGenerator(devices, 7)

	for i := 0; i < 200; i++ {
		at := testNow.Add(time.Duration(i) * time.Second)
		sa, sb := a.Sample(at), b.Sample(at)
		require.Equal(t, sa, sb)

		require.Len(t, sa, 3)
		for _, points := range sa {
			require.Len(t, points, len(channelModels))
			for _, m := range channelModels {
				p := points[m.name]
				assert.Equal(t, at, p.Time)
				assert.GreaterOrEqual(t, p.Value, m.lo)
				assert.LessOrEqual(t, p.Value, m.hi)
			}
		}
	}
}

func TestMemoryHistory_Retention(t *testing.T) {
	h := NewMemoryHistory(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Append(ctx, "1", map[string]telemetry.Point{
			"latency": {Time: testNow.Add(time.Duration(i) * time.Second), Value: float64(i)},
		}))
	}

	snap, err := h.Snapshot(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, snap["latency"].Values())

	empty, err := h.Snapshot(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryHistory_SnapshotIsACopy(t *testing.T) {
	h := NewMemoryHistory(0)
	ctx := context.Background()
	require.NoError(t, h.Append(ctx, "1", map[string]telemetry.Point{"cpu_usage": {Time: testNow, Value: 1}}))

	snap, _ := h.Snapshot(ctx, "1")
	snap["cpu_usage"][0].Value = 99

	again, _ := h.Snapshot(ctx, "1")
	assert.Equal(t, 1.0, again["cpu_usage"][0].Value)
}

func TestServer_DirectoryAndHistory(t *testing.T) {
	s, hs := newTestServer(t, 3)
	require.NoError(t, s.Backfill(context.Background(), 10))

	client := api.NewClient(hs.URL, api.WithLogger(logger.Noop()))
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	devices, err := client.ListEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, Devices(3), devices)

	snap, err := client.FetchMetrics(ctx, "2")
	require.NoError(t, err)
	assert.Len(t, snap.Channels(), len(channelModels))
	series := snap[telemetry.ChannelBandwidth]
	require.Len(t, series, 10)
	assert.True(t, series.Sorted())
	last, _ := series.Last()
	assert.True(t, last.Time.Equal(testNow))
}

func TestServer_SiteStatusAndTables(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, netstatus.AttackLogFile),
		[]byte("NO ATTACK DETECTED AT CC2\nATTACK DETECTED AT CC3. POSSIBLY PORT SCAN ATTACK\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dc_routers_data.csv"),
		[]byte("router,ip\nr1,10.0.0.1\n"), 0o644))
	_, hs := newTestServer(t, 1, WithSiteData(dir))
	client := api.NewClient(hs.URL, api.WithLogger(logger.Noop()))
	ctx := context.Background()

	areas, err := client.SiteStatus(ctx)
	require.NoError(t, err)
	require.Len(t, areas, 3)
	assert.Equal(t, netstatus.LevelNormal, areas[0].Status)
	assert.Equal(t, "No attack detected", areas[1].Message)
	assert.Equal(t, netstatus.LevelDanger, areas[2].Status)
	assert.Equal(t, "Possible PORT SCAN attack detected", areas[2].Message)

	tbl, err := client.Table(ctx, "routers")
	require.NoError(t, err)
	assert.Equal(t, []string{"router", "ip"}, tbl.Columns)
	assert.Equal(t, [][]string{{"r1", "10.0.0.1"}}, tbl.Rows)

	for _, name := range []string{"firewall", "bogus"} {
		res, err := http.Get(hs.URL + api.TablesPath + name)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusNotFound, res.StatusCode, name)
	}
}

func TestServer_SiteStatusWithoutData(t *testing.T) {
	_, hs := newTestServer(t, 1)

	areas, err := api.NewClient(hs.URL).SiteStatus(context.Background())

	require.NoError(t, err)
	assert.Empty(t, netstatus.InDanger(areas))
}

func TestServer_UnknownDevice(t *testing.T) {
	_, hs := newTestServer(t, 2)

	res, err := http.Get(hs.URL + api.MetricsPath + "42")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestServer_EmptyHistoryIsAnEmptyObject(t *testing.T) {
	_, hs := newTestServer(t, 1)

	snap, err := api.NewClient(hs.URL).FetchMetrics(context.Background(), "1")
	require.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Empty(t, snap)
}

type update struct {
	entityID string
	points   map[string]telemetry.Point
}

type pushRecorder struct {
	connected chan struct{}
	updates   chan update
}

func (r *pushRecorder) Connected()         { r.connected <- struct{}{} }
func (r *pushRecorder) Disconnected(error) {}
func (r *pushRecorder) Update(id string, points map[string]telemetry.Point) {
	r.updates <- update{entityID: id, points: points}
}

func waitFor[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

func startPush(t *testing.T, hs *httptest.Server) (*push.Client, *pushRecorder) {
	t.Helper()
	url, err := push.DeriveURL(hs.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "ws://"))

	rec := &pushRecorder{connected: make(chan struct{}, 4), updates: make(chan update, 32)}
	c := push.NewClient(url, rec, push.WithLogger(logger.Noop()), push.WithReconnect(10*time.Millisecond, 50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	waitFor(t, rec.connected, "push connect")
	return c, rec
}

func TestServer_PushBroadcast(t *testing.T) {
	s, hs := newTestServer(t, 2)
	_, rec := startPush(t, hs)

	require.Eventually(t, func() bool { return s.Clients() == 1 }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Tick(context.Background()))

	got := map[string]update{}
	for len(got) < 2 {
		u := waitFor(t, rec.updates, "telemetry_update")
		got[u.entityID] = u
	}
	for _, id := range []string{"1", "2"} {
		require.Contains(t, got, id)
		p := got[id].points[telemetry.ChannelLatency]
		assert.True(t, p.Time.Equal(testNow))
	}
}

func TestServer_RequestUpdateAnswersOnlyTheAsker(t *testing.T) {
	s, hs := newTestServer(t, 2)
	require.NoError(t, s.Backfill(context.Background(), 3))
	c, rec := startPush(t, hs)

	require.NoError(t, c.RequestUpdate(context.Background(), "2"))

	u := waitFor(t, rec.updates, "request_update answer")
	assert.Equal(t, "2", u.entityID)
	assert.Len(t, u.points, len(channelModels))

	snap, err := s.history.Snapshot(context.Background(), "2")
	require.NoError(t, err)
	want, _ := snap.Latest(telemetry.ChannelCPU)
	assert.Equal(t, want.Value, u.points[telemetry.ChannelCPU].Value)
}

func TestServer_RequestUpdateUnknownDeviceIsIgnored(t *testing.T) {
	_, hs := newTestServer(t, 1)
	c, rec := startPush(t, hs)

	require.NoError(t, c.RequestUpdate(context.Background(), "99"))

	select {
	case u := <-rec.updates:
		t.Fatalf("unexpected update for %s", u.entityID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServer_ServeShutsDownOnCancel(t *testing.T) {
	s := NewServer(Devices(1), WithLogger(logger.Noop()), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRedisHistory(t *testing.T) {
	addr := os.Getenv("NETWATCH_TEST_REDIS")
	if addr == "" {
		t.Skip("set NETWATCH_TEST_REDIS=host:port to run against Redis")
	}
	ctx := context.Background()

	h, err := NewRedisHistory(ctx, addr, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	h.prefix = "netwatch-test"
	require.NoError(t, h.Clear(ctx, "1"))
	t.Cleanup(func() { _ = h.Clear(ctx, "1") })

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Append(ctx, "1", map[string]telemetry.Point{
			"latency": {Time: testNow.Add(time.Duration(i) * time.Second), Value: float64(i)},
		}))
	}

	snap, err := h.Snapshot(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, snap["latency"].Values())
}

func TestNewRedisHistory_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisHistory(ctx, "127.0.0.1:1", 10)
	assert.Error(t, err)
}
