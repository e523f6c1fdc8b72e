package telemetry

import (
	"sort"
	"time"
)

// Well-known metric channels reported by the monitoring backend.
const (
	ChannelBandwidth  = "bandwidth_usage"
	ChannelPacketLoss = "packet_loss"
	ChannelLatency    = "latency"
	ChannelCPU        = "cpu_usage"
	ChannelMemory     = "memory_usage"
	ChannelErrorRate  = "error_rate"
)

// ChannelInfo describes how a channel is labelled on screen.
type ChannelInfo struct {
	Name    string
	Label   string
	Unit    string
	Percent bool // values are 0-100 and can be threshold-colored
}

// KnownChannels lists the standard channels in display order.
var KnownChannels = []ChannelInfo{
	{Name: ChannelBandwidth, Label: "Bandwidth", Unit: "Mbps"},
	{Name: ChannelPacketLoss, Label: "Packet Loss", Unit: "%"},
	{Name: ChannelLatency, Label: "Latency", Unit: "ms"},
	{Name: ChannelCPU, Label: "CPU", Unit: "%", Percent: true},
	{Name: ChannelMemory, Label: "Memory", Unit: "%", Percent: true},
	{Name: ChannelErrorRate, Label: "Error Rate", Unit: "err/s"},
}

// LookupChannel returns display info for a channel. Unknown channels get
// their raw name as label.
func LookupChannel(name string) ChannelInfo {
	for _, c := range KnownChannels {
		if c.Name == name {
			return c
		}
	}
	return ChannelInfo{Name: name, Label: name}
}

// Entity is a monitored network device. Loaded once from the directory
// service and immutable for the session.
type Entity struct {
	ID      string
	Name    string
	Address string
}

// DisplayName returns "name (address)", falling back to the ID.
func (e Entity) DisplayName() string {
	name := e.Name
	if name == "" {
		name = e.ID
	}
	if e.Address == "" {
		return name
	}
	return name + " (" + e.Address + ")"
}

// Point is a single timestamped sample.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is an ordered run of points for one channel, ascending by time.
type Series []Point

// Values returns the sample values in order.
func (s Series) Values() []float64 {
	if len(s) == 0 {
		return nil
	}
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Last returns the newest point.
func (s Series) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// Clone returns an independent copy.
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Sorted reports whether timestamps are non-decreasing.
func (s Series) Sorted() bool {
	return sort.SliceIsSorted(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
}

// Normalize returns the series in non-decreasing time order. Already sorted
// input is returned as is.
func (s Series) Normalize() Series {
	if s.Sorted() {
		return s
	}
	out := s.Clone()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Snapshot maps channel name to series for a single entity.
type Snapshot map[string]Series

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for ch, series := range s {
		out[ch] = series.Clone()
	}
	return out
}

// Channels returns channel names with known channels first in display
// order, then the rest alphabetically.
func (s Snapshot) Channels() []string {
	var known, extra []string
	seen := make(map[string]bool, len(s))
	for _, c := range KnownChannels {
		if _, ok := s[c.Name]; ok {
			known = append(known, c.Name)
			seen[c.Name] = true
		}
	}
	for ch := range s {
		if !seen[ch] {
			extra = append(extra, ch)
		}
	}
	sort.Strings(extra)
	return append(known, extra...)
}

// Latest returns the newest point on a channel.
func (s Snapshot) Latest(channel string) (Point, bool) {
	return s[channel].Last()
}

// Len returns the total number of points across channels.
func (s Snapshot) Len() int {
	n := 0
	for _, series := range s {
		n += len(series)
	}
	return n
}

// Selection is the active entity and trailing window. An empty EntityID
// means nothing is selected yet.
type Selection struct {
	EntityID      string
	WindowMinutes int
}

// HasEntity reports whether an entity is selected.
func (s Selection) HasEntity() bool {
	return s.EntityID != ""
}

// Window returns the window length as a duration.
func (s Selection) Window() time.Duration {
	return time.Duration(s.WindowMinutes) * time.Minute
}
