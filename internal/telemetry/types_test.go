package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntity_DisplayName(t *testing.T) {
	assert.Equal(t, "core-sw (10.0.0.1)", Entity{ID: "1", Name: "core-sw", Address: "10.0.0.1"}.DisplayName())
	assert.Equal(t, "core-sw", Entity{ID: "1", Name: "core-sw"}.DisplayName())
	assert.Equal(t, "7 (10.0.0.7)", Entity{ID: "7", Address: "10.0.0.7"}.DisplayName())
}

func TestLookupChannel(t *testing.T) {
	info := LookupChannel(ChannelLatency)
	assert.Equal(t, "Latency", info.Label)
	assert.Equal(t, "ms", info.Unit)

	unknown := LookupChannel("jitter")
	assert.Equal(t, "jitter", unknown.Label)
	assert.Empty(t, unknown.Unit)
}

func TestSeries_Normalize(t *testing.T) {
	sorted := seriesAt(10, 5, 1)
	assert.Equal(t, sorted, sorted.Normalize())

	shuffled := Series{sorted[2], sorted[0], sorted[1]}
	got := shuffled.Normalize()
	assert.Equal(t, sorted, got)
	// input is left alone
	assert.Equal(t, sorted[2], shuffled[0])
}

func TestSeries_NormalizeIsStable(t *testing.T) {
	at := testNow
	s := Series{{Time: at.Add(time.Second), Value: 3}, {Time: at, Value: 1}, {Time: at, Value: 2}}

	got := s.Normalize()

	assert.Equal(t, []float64{1, 2, 3}, got.Values())
}

func TestSeries_Last(t *testing.T) {
	_, ok := Series{}.Last()
	assert.False(t, ok)

	p, ok := seriesAt(3, 1).Last()
	assert.True(t, ok)
	assert.Equal(t, float64(1), p.Value)
}

func TestSnapshot_Channels(t *testing.T) {
	snap := Snapshot{
		"zeta":            nil,
		ChannelMemory:     nil,
		"alpha":           nil,
		ChannelBandwidth:  nil,
		ChannelPacketLoss: nil,
	}

	assert.Equal(t,
		[]string{ChannelBandwidth, ChannelPacketLoss, ChannelMemory, "alpha", "zeta"},
		snap.Channels())
}

func TestSnapshot_LatestAndLen(t *testing.T) {
	snap := Snapshot{ChannelCPU: seriesAt(5, 2), ChannelMemory: seriesAt(1)}

	p, ok := snap.Latest(ChannelCPU)
	assert.True(t, ok)
	assert.Equal(t, float64(2), p.Value)

	_, ok = snap.Latest(ChannelLatency)
	assert.False(t, ok)

	assert.Equal(t, 3, snap.Len())
}

func TestSelection_Window(t *testing.T) {
	sel := Selection{EntityID: "1", WindowMinutes: 15}
	assert.True(t, sel.HasEntity())
	assert.Equal(t, 15*time.Minute, sel.Window())
	assert.False(t, Selection{}.HasEntity())
}
