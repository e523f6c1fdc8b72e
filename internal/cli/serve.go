package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/netwatch/internal/config"
	"github.com/rileyhilliard/netwatch/internal/demo"
	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/logger"
)

var (
	serveListenFlag  string
	serveDevicesFlag int
	serveRedisFlag   string
	serveSeedFlag    uint64
	serveDataDirFlag string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local backend with synthetic devices",
	Long: `Start a reference backend that speaks the same API and push protocol as a
real one, with generated telemetry for a handful of devices. History is
kept in memory, or in Redis with --redis.

With --data-dir the backend also serves the network status parsed from
attack_log.txt and the site CSV tables found in that directory.

Examples:
  netwatch serve
  netwatch serve --listen 127.0.0.1:8080 --devices 10
  netwatch serve --redis localhost:6379
  netwatch serve --data-dir ./network`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCommand(cmd)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListenFlag, "listen", "", "address to listen on (default serve.listen)")
	serveCmd.Flags().IntVar(&serveDevicesFlag, "devices", 0, "number of synthetic devices (default serve.devices)")
	serveCmd.Flags().StringVar(&serveRedisFlag, "redis", "", "host:port of Redis for history (default serve.redis)")
	serveCmd.Flags().Uint64Var(&serveSeedFlag, "seed", 0, "random seed for generated data (0 picks one)")
	serveCmd.Flags().StringVar(&serveDataDirFlag, "data-dir", "", "directory with attack_log.txt and site CSV tables (default serve.data_dir)")
	rootCmd.AddCommand(serveCmd)
}

func serveCommand(cmd *cobra.Command) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, &cfg.Serve)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	log := logger.NewWriterLogger("netwatch", os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := openHistory(ctx, cfg.Serve)
	if err != nil {
		return err
	}
	defer history.Close()

	opts := []demo.Option{
		demo.WithHistory(history),
		demo.WithInterval(cfg.Serve.Interval),
		demo.WithLogger(log),
		demo.WithSiteData(cfg.Serve.DataDir),
	}
	if serveSeedFlag != 0 {
		opts = append(opts, demo.WithSeed(serveSeedFlag))
	}
	srv := demo.NewServer(demo.Devices(cfg.Serve.Devices), opts...)

	// An hour of history, or less if retention is shorter.
	backfill := int(3600 / cfg.Serve.Interval.Seconds())
	if backfill > cfg.Serve.Retention {
		backfill = cfg.Serve.Retention
	}
	if err := srv.Backfill(ctx, backfill); err != nil {
		return err
	}

	return srv.ListenAndServe(ctx, cfg.Serve.Listen)
}

// applyServeFlags overrides the serve section with flags the user set.
func applyServeFlags(cmd *cobra.Command, s *config.ServeConfig) {
	if cmd.Flags().Changed("listen") {
		s.Listen = serveListenFlag
	}
	if cmd.Flags().Changed("devices") {
		s.Devices = serveDevicesFlag
	}
	if cmd.Flags().Changed("redis") {
		s.Redis = serveRedisFlag
	}
	if cmd.Flags().Changed("data-dir") {
		s.DataDir = config.ExpandPath(serveDataDirFlag)
	}
}

func openHistory(ctx context.Context, s config.ServeConfig) (demo.History, error) {
	if s.Redis == "" {
		return demo.NewMemoryHistory(s.Retention), nil
	}
	h, err := demo.NewRedisHistory(ctx, s.Redis, s.Retention)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrServe,
			"Can't reach Redis at "+s.Redis,
			"Start Redis, or drop --redis / serve.redis to keep history in memory.")
	}
	return h, nil
}
