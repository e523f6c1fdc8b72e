package telemetry

import (
	"sort"
	"time"
)

// FilterWindow returns the points of series with timestamp >= now minus
// windowMinutes. The series must be in time order, so the result is always a
// contiguous suffix. The returned slice never aliases the input.
func FilterWindow(series Series, windowMinutes int, now time.Time) Series {
	if len(series) == 0 {
		return Series{}
	}

	cutoff := now.Add(-time.Duration(windowMinutes) * time.Minute)
	start := sort.Search(len(series), func(i int) bool {
		return !series[i].Time.Before(cutoff)
	})

	out := make(Series, len(series)-start)
	copy(out, series[start:])
	return out
}

// FilterSnapshot applies FilterWindow to every channel. Channels keep their
// key even when nothing falls inside the window.
func FilterSnapshot(snap Snapshot, windowMinutes int, now time.Time) Snapshot {
	out := make(Snapshot, len(snap))
	for ch, series := range snap {
		out[ch] = FilterWindow(series, windowMinutes, now)
	}
	return out
}
