package cli

import (
	"context"
	"sync"

	"github.com/rileyhilliard/netwatch/internal/api"
	"github.com/rileyhilliard/netwatch/internal/config"
	"github.com/rileyhilliard/netwatch/internal/logger"
	"github.com/rileyhilliard/netwatch/internal/push"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
	"github.com/rileyhilliard/netwatch/internal/tunnel"
)

// loadConfig finds and loads the config, applies --server, and validates.
// The returned path is empty when running on defaults.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, "", err
	}
	if serverFlag != "" {
		cfg.Server.URL = serverFlag
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// themeConfigPath is where a toggled theme is saved: the loaded config file,
// or the global one when running on defaults.
func themeConfigPath(loaded string) string {
	if loaded != "" {
		return loaded
	}
	return config.GlobalPath()
}

// backend holds the clients for one server.
type backend struct {
	cfg     *config.Config
	log     logger.Logger
	api     *api.Client
	pushURL string
	tunnel  *tunnel.Dialer
}

func newBackend(cfg *config.Config, log logger.Logger) (*backend, error) {
	b := &backend{cfg: cfg, log: log}

	opts := []api.Option{
		api.WithTimeout(cfg.Server.Timeout),
		api.WithLogger(logger.WithPrefix(log, "[api]")),
	}
	if cfg.Server.Tunnel != "" {
		b.tunnel = tunnel.New(cfg.Server.Tunnel,
			tunnel.WithTimeout(cfg.Server.Timeout),
			tunnel.WithInsecureHostKey(cfg.Server.TunnelInsecure),
			tunnel.WithLogger(logger.WithPrefix(log, "[tunnel]")),
		)
		opts = append(opts, api.WithDialContext(b.tunnel.DialContext))
	}
	b.api = api.NewClient(cfg.Server.URL, opts...)

	b.pushURL = cfg.Push.URL
	if b.pushURL == "" {
		u, err := push.DeriveURL(cfg.Server.URL)
		if err != nil {
			return nil, err
		}
		b.pushURL = u
	}
	return b, nil
}

// Close releases the SSH tunnel, if any.
func (b *backend) Close() {
	if b.tunnel != nil {
		_ = b.tunnel.Close()
	}
}

// session is a running selection → synchronizer → push pipeline.
type session struct {
	selection *telemetry.SelectionController
	sync      *telemetry.Synchronizer
	push      *push.Client
	done      chan struct{}
}

// pushRequester lets the synchronizer be built before the push client that
// feeds it.
type pushRequester struct {
	client *push.Client
}

func (r *pushRequester) RequestUpdate(ctx context.Context, entityID string) error {
	return r.client.RequestUpdate(ctx, entityID)
}

// startSession wires the pipeline and starts its goroutines. They stop when
// ctx is cancelled; done closes once they have.
func (b *backend) startSession(ctx context.Context, sink telemetry.RenderSink, window int) *session {
	d := b.cfg.Dashboard
	store := telemetry.NewStore(telemetry.WithMaxPoints(d.MaxPoints))

	requester := &pushRequester{}
	opts := []telemetry.Option{
		telemetry.WithLogger(logger.WithPrefix(b.log, "[sync]")),
		telemetry.WithFetchTimeout(d.FetchTimeout),
		telemetry.WithPollInterval(d.PollInterval),
		telemetry.WithRefreshOnPush(d.RefreshOnPush),
	}
	if b.cfg.Push.Enabled {
		opts = append(opts, telemetry.WithUpdateRequester(requester))
	}

	s := &session{
		selection: telemetry.NewSelectionController(window),
		sync:      telemetry.NewSynchronizer(store, b.api, sink, opts...),
		done:      make(chan struct{}),
	}
	s.selection.SetListener(s.sync)

	if b.cfg.Push.Enabled {
		popts := []push.Option{
			push.WithReconnect(b.cfg.Push.ReconnectMin, b.cfg.Push.ReconnectMax),
			push.WithLogger(logger.WithPrefix(b.log, "[push]")),
		}
		if b.tunnel != nil {
			popts = append(popts, push.WithNetDialContext(b.tunnel.DialContext))
		}
		s.push = push.NewClient(b.pushURL, s.sync, popts...)
		requester.client = s.push
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.sync.Run(ctx)
	}()
	if s.push != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.push.Run(ctx)
		}()
	}
	go func() {
		wg.Wait()
		close(s.done)
	}()
	return s
}
