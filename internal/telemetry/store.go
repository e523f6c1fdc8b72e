package telemetry

import (
	"sort"
	"sync"
	"time"
)

// Store holds the metrics snapshot for the single active entity. Selecting
// another entity discards the previous snapshot entirely.
//
// Every write names the entity it belongs to and is dropped unless that
// entity is the active one. This is what keeps a slow response for a device
// the user already navigated away from off the screen.
type Store struct {
	mu        sync.RWMutex
	active    string
	hasActive bool
	snapshot  Snapshot
	updatedAt time.Time
	maxPoints int
	now       func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxPoints caps each channel at n points, evicting the oldest.
// Zero or negative means unbounded.
func WithMaxPoints(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxPoints = n
		}
	}
}

// WithStoreClock overrides the clock used for UpdatedAt.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store with no active entity.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		snapshot: make(Snapshot),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reset makes entityID the active entity with an empty snapshot.
func (s *Store) Reset(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = entityID
	s.hasActive = true
	s.snapshot = make(Snapshot)
	s.updatedAt = time.Time{}
}

// ReplaceAll swaps in a full snapshot from a pull refresh. It returns false
// and changes nothing when entityID is not the active entity.
func (s *Store) ReplaceAll(entityID string, snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isActive(entityID) {
		return false
	}

	next := make(Snapshot, len(snap))
	for ch, series := range snap {
		next[ch] = s.trim(series.Normalize().Clone())
	}
	s.snapshot = next
	s.updatedAt = s.now()
	return true
}

// AppendLatest merges one pushed point into a channel. The point is placed in
// time order; a point with the same timestamp as an existing one replaces it,
// so re-delivery is idempotent. Returns false when entityID is not active.
func (s *Store) AppendLatest(entityID, channel string, p Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isActive(entityID) {
		return false
	}

	series := s.snapshot[channel]

	// Fast path: pushes almost always carry the newest point.
	if n := len(series); n == 0 || series[n-1].Time.Before(p.Time) {
		series = append(series, p)
	} else {
		idx := sort.Search(n, func(i int) bool { return series[i].Time.After(p.Time) })
		if idx > 0 && series[idx-1].Time.Equal(p.Time) {
			series[idx-1] = p
		} else {
			series = append(series, Point{})
			copy(series[idx+1:], series[idx:])
			series[idx] = p
		}
	}

	s.snapshot[channel] = s.trim(series)
	s.updatedAt = s.now()
	return true
}

// Read returns a copy of the snapshot for entityID, or an empty snapshot if
// entityID is not active.
func (s *Store) Read(entityID string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isActive(entityID) {
		return Snapshot{}
	}
	return s.snapshot.Clone()
}

// Active returns the active entity, if any.
func (s *Store) Active() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.hasActive
}

// UpdatedAt returns when the active snapshot last changed. Zero after Reset.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// isActive must be called with s.mu held.
func (s *Store) isActive(entityID string) bool {
	return s.hasActive && entityID == s.active
}

// trim drops the oldest points beyond maxPoints.
func (s *Store) trim(series Series) Series {
	if s.maxPoints <= 0 || len(series) <= s.maxPoints {
		return series
	}
	out := make(Series, s.maxPoints)
	copy(out, series[len(series)-s.maxPoints:])
	return out
}
