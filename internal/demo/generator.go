// Package demo is a reference monitoring backend. It simulates a handful of
// network devices, keeps their recent history, and serves the same HTTP and
// WebSocket protocol the dashboard consumes.
package demo

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

// channelModel bounds a random walk for one channel.
type channelModel struct {
	name     string
	lo, hi   float64
	step     float64
	decimals int
}

var channelModels = []channelModel{
	{name: telemetry.ChannelBandwidth, lo: 5, hi: 950, step: 40, decimals: 1},
	{name: telemetry.ChannelPacketLoss, lo: 0, hi: 8, step: 0.6, decimals: 2},
	{name: telemetry.ChannelLatency, lo: 0.5, hi: 150, step: 6, decimals: 1},
	{name: telemetry.ChannelCPU, lo: 2, hi: 100, step: 5, decimals: 1},
	{name: telemetry.ChannelMemory, lo: 10, hi: 98, step: 2, decimals: 1},
	{name: telemetry.ChannelErrorRate, lo: 0, hi: 25, step: 1.5, decimals: 2},
}

var deviceKinds = []string{"core-sw", "edge-rtr", "fw", "dist-sw", "ap", "wan-rtr"}

// Devices returns n synthetic devices with ids "1".."n".
func Devices(n int) []telemetry.Entity {
	out := make([]telemetry.Entity, 0, n)
	for i := 0; i < n; i++ {
		kind := deviceKinds[i%len(deviceKinds)]
		out = append(out, telemetry.Entity{
			ID:      strconv.Itoa(i + 1),
			Name:    fmt.Sprintf("%s-%d", kind, i/len(deviceKinds)+1),
			Address: fmt.Sprintf("10.0.%d.%d", i/250, i%250+1),
		})
	}
	return out
}

// Generator produces random-walk samples for every device and channel.
// Safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	devices []telemetry.Entity
	values  map[string]map[string]float64
}

// NewGenerator seeds a generator for devices. The same seed yields the same
// sequence.
func NewGenerator(devices []telemetry.Entity, seed uint64) *Generator {
	g := &Generator{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		devices: devices,
		values:  make(map[string]map[string]float64, len(devices)),
	}
	for _, d := range devices {
		vals := make(map[string]float64, len(channelModels))
		for _, m := range channelModels {
			vals[m.name] = m.lo + (m.hi-m.lo)*(0.2+0.4*g.rng.Float64())
		}
		g.values[d.ID] = vals
	}
	return g
}

// Sample advances every walk one step and returns the new points stamped at.
func (g *Generator) Sample(at time.Time) map[string]map[string]telemetry.Point {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]map[string]telemetry.Point, len(g.devices))
	for _, d := range g.devices {
		vals := g.values[d.ID]
		points := make(map[string]telemetry.Point, len(channelModels))
		for _, m := range channelModels {
			v := vals[m.name] + (g.rng.Float64()*2-1)*m.step
			v = clamp(v, m.lo, m.hi)
			vals[m.name] = v
			points[m.name] = telemetry.Point{Time: at, Value: round(v, m.decimals)}
		}
		out[d.ID] = points
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64, decimals int) float64 {
	p := 1.0
	for i := 0; i < decimals; i++ {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}
