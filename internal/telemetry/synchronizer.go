package telemetry

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/logger"
)

// State is the synchronizer's refresh state.
type State int32

const (
	StateIdle State = iota
	StateRefreshing
	StateReady
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// DefaultFetchTimeout bounds a single pull refresh.
const DefaultFetchTimeout = 15 * time.Second

const eventBuffer = 64

// Events processed by the loop.
type (
	selectionEvent  struct{ sel Selection }
	refreshEvent    struct{}
	connectEvent    struct{}
	disconnectEvent struct{ err error }
	updateEvent     struct {
		entityID string
		points   map[string]Point
	}
	fetchResult struct {
		seq      uint64
		entityID string
		snap     Snapshot
		err      error
	}
	pollEvent struct{}
)

// Synchronizer keeps the store and the render sink in step with the
// selection, the push channel and pull refreshes.
//
// All state is owned by the goroutine running Run. The exported methods only
// post events to it, so they are safe to call from any goroutine, including
// the push client's read loop and the selection listener.
type Synchronizer struct {
	store     *Store
	fetcher   Fetcher
	requester UpdateRequester
	sink      RenderSink
	log       logger.Logger
	now       func() time.Time

	fetchTimeout  time.Duration
	pollInterval  time.Duration
	refreshOnPush bool

	events chan any
	done   chan struct{}

	// loop-owned
	ctx       context.Context
	sel       Selection
	state     State
	connected bool
	seq       uint64
	cancel    context.CancelFunc
	lastErr   error

	// Points pushed while a pull is in flight. The pull may have been served
	// before they existed, so they are re-applied over its snapshot.
	carry map[string]Series
	// A push arrived mid-pull and wants a pull of its own.
	pendingRefresh bool

	stateView     atomic.Int32
	connectedView atomic.Bool
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides time.Now, used as "now" for window filtering.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithFetchTimeout bounds each pull refresh. Zero or negative keeps the
// default.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithPollInterval enables periodic pull refreshes while the push channel is
// disconnected. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithRefreshOnPush controls whether a push update also triggers a pull
// refresh. Defaults to true.
func WithRefreshOnPush(enabled bool) Option {
	return func(s *Synchronizer) {
		s.refreshOnPush = enabled
	}
}

// WithUpdateRequester sets where request_update commands go. Without one the
// synchronizer never asks the push channel for anything.
func WithUpdateRequester(r UpdateRequester) Option {
	return func(s *Synchronizer) {
		s.requester = r
	}
}

// NewSynchronizer creates a synchronizer. A nil store gets a fresh one.
func NewSynchronizer(store *Store, fetcher Fetcher, sink RenderSink, opts ...Option) *Synchronizer {
	if store == nil {
		store = NewStore()
	}
	s := &Synchronizer{
		store:         store,
		fetcher:       fetcher,
		sink:          sink,
		log:           logger.Default(),
		now:           time.Now,
		fetchTimeout:  DefaultFetchTimeout,
		refreshOnPush: true,
		events:        make(chan any, eventBuffer),
		done:          make(chan struct{}),
		ctx:           context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes events until ctx is cancelled. It must be called once.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.ctx = ctx
	defer close(s.done)
	defer s.cancelFetch()

	var tick <-chan time.Time
	if s.pollInterval > 0 {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			s.handle(ev)
		case <-tick:
			s.handle(pollEvent{})
		}
	}
}

// SelectionChanged implements SelectionListener.
func (s *Synchronizer) SelectionChanged(sel Selection) {
	s.post(selectionEvent{sel: sel})
}

// Refresh requests a pull refresh for the active entity without clearing
// what is already shown.
func (s *Synchronizer) Refresh() {
	s.post(refreshEvent{})
}

// Connected implements PushHandler.
func (s *Synchronizer) Connected() {
	s.post(connectEvent{})
}

// Disconnected implements PushHandler.
func (s *Synchronizer) Disconnected(err error) {
	s.post(disconnectEvent{err: err})
}

// Update implements PushHandler.
func (s *Synchronizer) Update(entityID string, points map[string]Point) {
	s.post(updateEvent{entityID: entityID, points: points})
}

// State returns the current state. Safe from any goroutine.
func (s *Synchronizer) State() State {
	return State(s.stateView.Load())
}

// IsConnected reports whether the push channel is up.
func (s *Synchronizer) IsConnected() bool {
	return s.connectedView.Load()
}

func (s *Synchronizer) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Synchronizer) handle(ev any) {
	switch e := ev.(type) {
	case selectionEvent:
		s.onSelection(e.sel)
	case refreshEvent:
		s.onRefresh()
	case connectEvent:
		s.onConnect()
	case disconnectEvent:
		s.onDisconnect(e.err)
	case updateEvent:
		s.onUpdate(e.entityID, e.points)
	case fetchResult:
		s.onFetchResult(e)
	case pollEvent:
		s.onPoll()
	default:
		s.log.Warn("unknown event %T", ev)
	}
}

func (s *Synchronizer) onSelection(sel Selection) {
	prev := s.sel
	s.sel = sel

	// Any selection, including re-selecting the current one, invalidates the
	// in-flight pull and everything shown.
	s.cancelFetch()
	s.lastErr = nil
	s.carry = nil
	s.pendingRefresh = false
	s.setState(StateIdle)

	if !sel.HasEntity() {
		s.render()
		return
	}

	s.log.Debug("selection: device=%s window=%dm", sel.EntityID, sel.WindowMinutes)
	s.store.Reset(sel.EntityID)
	s.render()
	s.startRefresh()
	if sel.EntityID != prev.EntityID || sel == prev {
		s.requestUpdate()
	}
}

func (s *Synchronizer) onRefresh() {
	if !s.sel.HasEntity() {
		s.log.Debug("refresh ignored: no device selected")
		return
	}
	s.startRefresh()
	s.render()
	s.requestUpdate()
}

func (s *Synchronizer) onConnect() {
	s.connected = true
	s.connectedView.Store(true)
	s.log.Info("push channel connected")
	s.render()
	s.requestUpdate()
}

func (s *Synchronizer) onDisconnect(err error) {
	s.connected = false
	s.connectedView.Store(false)
	if err != nil {
		s.log.Warn("push channel disconnected: %v", err)
	} else {
		s.log.Info("push channel disconnected")
	}
	s.render()
}

func (s *Synchronizer) onUpdate(entityID string, points map[string]Point) {
	if !s.sel.HasEntity() || entityID != s.sel.EntityID {
		return
	}

	refreshing := s.state == StateRefreshing
	applied := 0
	for ch, p := range points {
		if !s.store.AppendLatest(entityID, ch, p) {
			continue
		}
		applied++
		if refreshing {
			if s.carry == nil {
				s.carry = make(map[string]Series)
			}
			s.carry[ch] = append(s.carry[ch], p)
		}
	}
	if applied == 0 {
		return
	}
	s.render()

	if !s.refreshOnPush {
		return
	}
	if refreshing {
		s.pendingRefresh = true
		return
	}
	s.startRefresh()
}

func (s *Synchronizer) onPoll() {
	if s.connected || !s.sel.HasEntity() || s.state == StateRefreshing {
		return
	}
	s.log.Debug("poll refresh for %s", s.sel.EntityID)
	s.startRefresh()
}

func (s *Synchronizer) onFetchResult(r fetchResult) {
	if !s.sel.HasEntity() || r.entityID != s.sel.EntityID {
		s.log.Debug("%s", errors.New(errors.ErrStale,
			fmt.Sprintf("discarded metrics for %s, active device is %q", r.entityID, s.sel.EntityID), "").Short())
		return
	}
	current := r.seq == s.seq

	if r.err != nil {
		if !current {
			s.log.Debug("superseded fetch %d for %s failed: %v", r.seq, r.entityID, r.err)
			return
		}
		s.cancelFetch()
		s.carry = nil
		s.pendingRefresh = false
		s.lastErr = fetchError(r.entityID, r.err)
		s.log.Warn("%s", errors.Summary(s.lastErr))
		s.setState(StateError)
		s.render()
		return
	}

	if !s.store.ReplaceAll(r.entityID, r.snap) {
		s.log.Debug("store rejected metrics for %s", r.entityID)
		return
	}
	for ch, series := range s.carry {
		for _, p := range series {
			s.store.AppendLatest(r.entityID, ch, p)
		}
	}
	if !current {
		s.render()
		return
	}

	s.cancelFetch()
	s.carry = nil
	s.lastErr = nil
	s.setState(StateReady)
	s.render()

	if s.pendingRefresh {
		s.pendingRefresh = false
		s.startRefresh()
	}
}

func (s *Synchronizer) startRefresh() {
	s.cancelFetch()
	s.seq++
	seq, id := s.seq, s.sel.EntityID

	ctx, cancel := context.WithTimeout(s.ctx, s.fetchTimeout)
	s.cancel = cancel
	s.setState(StateRefreshing)

	go func() {
		defer cancel()
		snap, err := s.fetcher.FetchMetrics(ctx, id)
		s.post(fetchResult{seq: seq, entityID: id, snap: snap, err: err})
	}()
}

func (s *Synchronizer) cancelFetch() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Synchronizer) requestUpdate() {
	if s.requester == nil || !s.connected || !s.sel.HasEntity() {
		return
	}
	ctx, id := s.ctx, s.sel.EntityID
	go func() {
		if err := s.requester.RequestUpdate(ctx, id); err != nil {
			s.log.Warn("request_update for %s failed: %v", id, err)
		}
	}()
}

func (s *Synchronizer) setState(st State) {
	s.state = st
	s.stateView.Store(int32(st))
}

func (s *Synchronizer) render() {
	if s.sink == nil {
		return
	}

	now := s.now()
	ev := RenderEvent{
		EntityID:      s.sel.EntityID,
		WindowMinutes: s.sel.WindowMinutes,
		Series:        Snapshot{},
		State:         s.state,
		Connected:     s.connected,
		At:            now,
	}
	if s.sel.HasEntity() {
		ev.Series = FilterSnapshot(s.store.Read(s.sel.EntityID), s.sel.WindowMinutes, now)
		ev.UpdatedAt = s.store.UpdatedAt()
	}

	switch s.state {
	case StateReady:
		ev.Status = RenderOK
	case StateError:
		ev.Status = RenderError
		ev.Err = s.lastErr
	default:
		ev.Status = RenderLoading
	}

	s.sink.Render(ev)
}

func fetchError(entityID string, err error) error {
	if errors.IsCode(err, errors.ErrFetch) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.WrapWithCode(err, errors.ErrFetch,
			fmt.Sprintf("Timed out loading metrics for device %s", entityID),
			"The backend is slow or unreachable. Press r to retry")
	}
	return errors.WrapWithCode(err, errors.ErrFetch,
		fmt.Sprintf("Couldn't load metrics for device %s", entityID),
		"Check that the backend is running. Press r to retry")
}
