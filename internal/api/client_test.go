package api

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/logger"
	"github.com/rileyhilliard/netwatch/internal/netstatus"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(handler)
	t.Cleanup(s.Close)
	return s
}

func TestClient_ListEntities(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DevicesPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "name": "core-sw", "ip_address": "10.0.0.1"},
			{"id": "edge", "name": "Edge", "address": "10.0.0.2"}
		]`))
	})

	c := NewClient(s.URL+"/", WithLogger(logger.Noop()))
	got, err := c.ListEntities(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []telemetry.Entity{
		{ID: "1", Name: "core-sw", Address: "10.0.0.1"},
		{ID: "edge", Name: "Edge", Address: "10.0.0.2"},
	}, got)
}

func TestClient_FetchMetrics(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/metrics/core%20sw", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{
			"bandwidth_usage": [["2025-04-14T15:29:00Z", 10], ["2025-04-14T15:30:00Z", 12]],
			"latency": [["2025-04-14T15:30:00Z", 3.5]]
		}`))
	})

	c := NewClient(s.URL, WithLogger(logger.Noop()))
	snap, err := c.FetchMetrics(context.Background(), "core sw")

	require.NoError(t, err)
	require.Len(t, snap[telemetry.ChannelBandwidth], 2)
	assert.Equal(t, float64(12), snap[telemetry.ChannelBandwidth][1].Value)
	assert.Equal(t, 3.5, snap[telemetry.ChannelLatency][0].Value)
	assert.True(t, time.Date(2025, 4, 14, 15, 30, 0, 0, time.UTC).Equal(snap[telemetry.ChannelLatency][0].Time))
}

func TestClient_FetchMetricsEmptyObject(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})

	snap, err := NewClient(s.URL, WithLogger(logger.Noop())).FetchMetrics(context.Background(), "1")

	require.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Empty(t, snap)
}

func TestClient_ErrorIncludesStatusAndBody(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"device not found"}`))
	})

	_, err := NewClient(s.URL).FetchMetrics(context.Background(), "99")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrFetch))
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "device not found")
	assert.Contains(t, err.Error(), "device 99")
}

func TestClient_MalformedBody(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"latency": [["not a time", 1]]}`))
	})

	_, err := NewClient(s.URL).FetchMetrics(context.Background(), "1")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrFetch))
	assert.Contains(t, err.Error(), "invalid response")
}

func TestClient_ContextCancelAbortsRequest(t *testing.T) {
	release := make(chan struct{})
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := NewClient(s.URL).FetchMetrics(ctx, "1")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_WithDialContext(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	var dials atomic.Int32
	var d net.Dialer
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		dials.Add(1)
		return d.DialContext(ctx, network, addr)
	}

	got, err := NewClient(s.URL, WithDialContext(dial)).ListEntities(context.Background())

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(1), dials.Load())
}

func TestClient_Health(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != HealthPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	assert.NoError(t, NewClient(s.URL).Health(context.Background()))
}

func TestClient_SiteStatus(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, StatusPath, r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"cluster": 1, "name": "Academic Area", "status": "danger", "message": "Possible DDOS attack detected"},
			{"cluster": 2, "name": "Hostel Area", "status": "normal"}
		]`))
	})

	areas, err := NewClient(s.URL).SiteStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []netstatus.Area{
		{Cluster: 1, Name: "Academic Area", Status: netstatus.LevelDanger, Message: "Possible DDOS attack detected"},
		{Cluster: 2, Name: "Hostel Area", Status: netstatus.LevelNormal},
	}, areas)
}

func TestClient_Table(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, TablesPath+"router-rules", r.URL.Path)
		_, _ = w.Write([]byte(`{"name":"router-rules","columns":["src","action"],"rows":[["10.0.0.0/8","allow"]]}`))
	})

	tbl, err := NewClient(s.URL).Table(context.Background(), "router-rules")

	require.NoError(t, err)
	assert.Equal(t, netstatus.Table{
		Name:    "router-rules",
		Columns: []string{"src", "action"},
		Rows:    [][]string{{"10.0.0.0/8", "allow"}},
	}, tbl)
}

func TestClient_TableNotFound(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no data for table sos", http.StatusNotFound)
	})

	_, err := NewClient(s.URL).Table(context.Background(), "sos")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrFetch))
	assert.Contains(t, err.Error(), "sos table")
	assert.Contains(t, err.Error(), "no data for table sos")
}
