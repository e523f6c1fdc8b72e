package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "RFC 3339 UTC",
			raw:  `"2025-04-14T15:30:45Z"`,
			want: time.Date(2025, 4, 14, 15, 30, 45, 0, time.UTC),
		},
		{
			name: "RFC 3339 with offset and fraction",
			raw:  `"2025-04-14T17:30:45.5+02:00"`,
			want: time.Date(2025, 4, 14, 15, 30, 45, 500_000_000, time.UTC),
		},
		{
			name: "naive ISO is local time",
			raw:  `"2025-04-14T15:30:45.123456"`,
			want: time.Date(2025, 4, 14, 15, 30, 45, 123_456_000, time.Local),
		},
		{
			name: "naive with space separator",
			raw:  `"2025-04-14 15:30:45"`,
			want: time.Date(2025, 4, 14, 15, 30, 45, 0, time.Local),
		},
		{
			name: "epoch milliseconds",
			raw:  `1744644645000`,
			want: time.UnixMilli(1744644645000),
		},
		{
			name: "epoch seconds",
			raw:  `1744644645`,
			want: time.Unix(1744644645, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, raw := range []string{``, `null`, `"yesterday"`, `true`} {
		_, err := ParseTimestamp(json.RawMessage(raw))
		assert.Error(t, err, "input %q", raw)
	}
}

func TestSnapshot_DecodeHistoryResponse(t *testing.T) {
	body := `{
		"bandwidth_usage": [["2025-04-14T15:29:00Z", 10], ["2025-04-14T15:30:00Z", 12.5]],
		"latency": [["2025-04-14T15:30:00Z", 4], ["2025-04-14T15:28:00Z", 3]],
		"packet_loss": []
	}`

	var snap Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snap))

	require.Len(t, snap[ChannelBandwidth], 2)
	assert.Equal(t, 12.5, snap[ChannelBandwidth][1].Value)

	// Out of order input comes back sorted.
	require.Len(t, snap[ChannelLatency], 2)
	assert.Equal(t, float64(3), snap[ChannelLatency][0].Value)
	assert.True(t, snap[ChannelLatency].Sorted())

	assert.Contains(t, snap, ChannelPacketLoss)
	assert.Empty(t, snap[ChannelPacketLoss])
}

func TestPoint_UnmarshalRejectsBadShapes(t *testing.T) {
	for _, raw := range []string{`{}`, `[1]`, `[1, 2, 3]`, `["2025-04-14T15:30:00Z", "high"]`} {
		var p Point
		assert.Error(t, json.Unmarshal([]byte(raw), &p), "input %s", raw)
	}
}

func TestPoint_MarshalJSON(t *testing.T) {
	p := Point{Time: time.Date(2025, 4, 14, 15, 30, 0, 0, time.UTC), Value: 1.5}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `["2025-04-14T15:30:00Z", 1.5]`, string(data))
}

func TestEntity_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Entity
	}{
		{
			name: "numeric id and ip_address",
			raw:  `{"id": 3, "name": "core-sw", "ip_address": "10.0.0.3"}`,
			want: Entity{ID: "3", Name: "core-sw", Address: "10.0.0.3"},
		},
		{
			name: "string id and address",
			raw:  `{"id": "edge-1", "name": "Edge", "address": "192.168.1.1"}`,
			want: Entity{ID: "edge-1", Name: "Edge", Address: "192.168.1.1"},
		},
		{
			name: "address wins over ip_address",
			raw:  `{"id": 1, "address": "a", "ip_address": "b"}`,
			want: Entity{ID: "1", Address: "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Entity
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &e))
			assert.Equal(t, tt.want, e)
		})
	}
}

func TestEntity_UnmarshalJSONMissingID(t *testing.T) {
	var e Entity
	assert.Error(t, json.Unmarshal([]byte(`{"name": "x"}`), &e))
	assert.Error(t, json.Unmarshal([]byte(`{"id": true}`), &e))
}

func TestEntity_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Entity{ID: "7", Name: "lab", Address: "10.1.1.1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"7","name":"lab","address":"10.1.1.1","ip_address":"10.1.1.1"}`, string(data))
}
