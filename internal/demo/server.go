package demo

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rileyhilliard/netwatch/internal/api"
	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/logger"
	"github.com/rileyhilliard/netwatch/internal/netstatus"
	"github.com/rileyhilliard/netwatch/internal/push"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

// DefaultInterval is the time between generated samples.
const DefaultInterval = 2 * time.Second

// Server is the reference backend.
type Server struct {
	devices  []telemetry.Entity
	known    map[string]bool
	history  History
	gen      *Generator
	interval time.Duration
	now      func() time.Time
	log      logger.Logger
	hub      *hub
	site     *netstatus.Source
}

// Option configures a Server.
type Option func(*Server)

// WithHistory replaces the default in-memory history.
func WithHistory(h History) Option {
	return func(s *Server) {
		if h != nil {
			s.history = h
		}
	}
}

// WithInterval sets the sample interval.
func WithInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSeed makes the generated data reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Server) {
		s.gen = NewGenerator(s.devices, seed)
	}
}

// WithClock sets the time source for generated samples.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSiteData serves the status and tables found in dir.
func WithSiteData(dir string) Option {
	return func(s *Server) {
		s.site = netstatus.NewSource(dir)
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer simulates the given devices.
func NewServer(devices []telemetry.Entity, opts ...Option) *Server {
	s := &Server{
		devices:  devices,
		known:    make(map[string]bool, len(devices)),
		history:  NewMemoryHistory(0),
		gen:      NewGenerator(devices, uint64(time.Now().UnixNano())),
		interval: DefaultInterval,
		now:      time.Now,
		log:      logger.Default(),
		site:     netstatus.NewSource(""),
	}
	for _, d := range devices {
		s.known[d.ID] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.latest, s.log)
	return s
}

// Handler returns the HTTP routes:
//
//	GET /api/devices        device directory
//	GET /api/metrics/{id}   retained history for one device
//	GET /api/status         per-area status from the attack log
//	GET /api/tables/{name}  one site data table
//	GET /health             liveness
//	GET /ws                 push channel
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+api.HealthPath, s.handleHealth)
	mux.HandleFunc("GET "+api.DevicesPath, s.handleDevices)
	mux.HandleFunc("GET "+api.MetricsPath+"{id}", s.handleMetrics)
	mux.HandleFunc("GET "+api.StatusPath, s.handleStatus)
	mux.HandleFunc("GET "+api.TablesPath+"{name}", s.handleTable)
	mux.Handle("GET "+push.Path, s.hub)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]any{"status": "ok", "devices": len(s.devices), "push_clients": s.hub.count()})
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.devices)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.known[id] {
		http.Error(w, fmt.Sprintf("unknown device %q", id), http.StatusNotFound)
		return
	}

	snap, err := s.history.Snapshot(r.Context(), id)
	if err != nil {
		s.log.Error("serve: reading history for %s: %v", id, err)
		http.Error(w, fmt.Sprintf("Error retrieving metrics: %v", err), http.StatusInternalServerError)
		return
	}
	if snap == nil {
		snap = telemetry.Snapshot{}
	}
	s.writeJSON(w, snap)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	areas, err := s.site.Areas()
	if err != nil {
		s.log.Error("serve: reading attack log: %v", err)
		http.Error(w, fmt.Sprintf("Error reading network status: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, areas)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	t, err := s.site.Table(r.PathValue("name"))
	switch {
	case stderrors.Is(err, netstatus.ErrUnknownTable), stderrors.Is(err, netstatus.ErrNoData):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		s.log.Error("serve: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, t)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("serve: encoding response: %v", err)
	}
}

// latest returns the newest point per channel for a device.
func (s *Server) latest(ctx context.Context, deviceID string) (map[string]telemetry.Point, bool) {
	if !s.known[deviceID] {
		return nil, false
	}
	snap, err := s.history.Snapshot(ctx, deviceID)
	if err != nil {
		s.log.Warn("serve: reading history for %s: %v", deviceID, err)
		return nil, false
	}
	points := make(map[string]telemetry.Point, len(snap))
	for ch := range snap {
		if p, ok := snap.Latest(ch); ok {
			points[ch] = p
		}
	}
	return points, len(points) > 0
}

// Backfill records count samples ending now so the first fetch has history
// to show.
func (s *Server) Backfill(ctx context.Context, count int) error {
	start := s.now().Add(-time.Duration(count) * s.interval)
	for i := 1; i <= count; i++ {
		if err := s.record(ctx, s.gen.Sample(start.Add(time.Duration(i)*s.interval))); err != nil {
			return err
		}
	}
	return nil
}

// Tick generates one sample for every device, stores it, and broadcasts it.
func (s *Server) Tick(ctx context.Context) error {
	sample := s.gen.Sample(s.now())
	if err := s.record(ctx, sample); err != nil {
		return err
	}

	env, err := push.NewEnvelope(telemetry.EventTelemetryUpdate, push.Update(sample))
	if err != nil {
		return err
	}
	s.hub.broadcast(env)
	return nil
}

func (s *Server) record(ctx context.Context, sample map[string]map[string]telemetry.Point) error {
	for id, points := range sample {
		if err := s.history.Append(ctx, id, points); err != nil {
			return errors.WrapWithCode(err, errors.ErrServe,
				fmt.Sprintf("Couldn't store samples for device %s", id),
				"Check the history store (serve.redis) is reachable")
		}
	}
	return nil
}

// Run ticks until ctx is cancelled. A failed tick is logged and the next
// one proceeds.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.log.Warn("serve: %s", errors.Summary(err))
			}
		}
	}
}

// Clients returns the number of connected push clients.
func (s *Server) Clients() int {
	return s.hub.count()
}

// ListenAndServe serves on addr and runs the generator until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrServe,
			fmt.Sprintf("Can't listen on %s", addr),
			"Pick a free port with serve.listen or --listen")
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = s.Run(runCtx) }()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("serve: listening on %s with %d devices", ln.Addr(), len(s.devices))

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.WrapWithCode(err, errors.ErrServe, "Server stopped unexpectedly", "")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	s.hub.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.WrapWithCode(err, errors.ErrServe, "Server didn't shut down cleanly", "")
	}
	return nil
}
