package cli

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/netwatch/internal/config"
	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/logger"
	"github.com/rileyhilliard/netwatch/internal/monitor"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
	"github.com/rileyhilliard/netwatch/internal/ui"
)

var (
	dashboardDeviceFlag string
	dashboardWindowFlag int
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"dash"},
	Short:   "Live telemetry dashboard",
	Long: `Open the interactive dashboard: the device list on the left, the latest
value and a chart per metric channel on the right.

Without --device (or dashboard.device in the config) you're asked to pick
one first.

Keyboard shortcuts:
  up/k, down/j  Move through devices
  Enter         Watch the highlighted device
  w / W         Longer / shorter time window
  r             Refresh now
  t             Toggle dark/light theme (saved to your config)
  ?             Help
  q / Ctrl+C    Quit

Examples:
  netwatch dashboard
  netwatch dashboard --device 3 --window 60
  netwatch dashboard --server http://noc.example.com:5000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboardCommand(dashboardDeviceFlag, dashboardWindowFlag)
	},
}

func init() {
	dashboardCmd.Flags().StringVarP(&dashboardDeviceFlag, "device", "d", "", "device id to watch")
	dashboardCmd.Flags().IntVarP(&dashboardWindowFlag, "window", "w", 0, "time window in minutes (default from config)")
	rootCmd.AddCommand(dashboardCmd)
}

func dashboardCommand(device string, window int) error {
	if !ui.IsTerminal(os.Stdin) || !ui.IsTerminal(os.Stdout) {
		return errors.New(errors.ErrConfig,
			"The dashboard needs an interactive terminal",
			"Use 'netwatch watch --device <id>' for pipes and CI.")
	}

	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}
	if device == "" {
		device = cfg.Dashboard.Device
	}
	if window == 0 {
		window = cfg.Dashboard.Window
	}
	if err := telemetry.ValidateWindow(window); err != nil {
		return err
	}

	// The TUI owns the terminal, so logs go to log_file or nowhere.
	log := logger.Noop()
	if cfg.LogFile != "" {
		f, err := logger.OpenFile(cfg.LogFile)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Can't open the log file "+cfg.LogFile,
				"Fix log_file in your config or leave it empty.")
		}
		defer f.Close()
		log = logger.NewWriterLogger("netwatch", f)
	}
	logger.SetDefault(log)

	b, err := newBackend(cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	if device == "" {
		device, err = pickDevice(b)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)

	sink := monitor.NewChannelSink()
	s := b.startSession(ctx, sink, window)

	model := monitor.NewModel(s.selection, s.sync, b.api, sink, monitor.Options{
		Theme:       cfg.Theme,
		Device:      device,
		LoadTimeout: cfg.Server.Timeout,
		OnThemeChange: func(theme string) error {
			return config.SetTheme(themeConfigPath(cfgPath), theme)
		},
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()

	cancel()
	sink.Close()
	<-s.done

	if stderrors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// pickDevice offers the directory in a picker. If the directory can't be
// loaded the dashboard opens anyway and shows the error with a retry.
func pickDevice(b *backend) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Server.Timeout)
	devices, err := b.api.ListEntities(ctx)
	cancel()
	if err != nil {
		b.log.Warn("device picker skipped: %s", errors.Summary(err))
		return "", nil
	}
	if len(devices) == 0 {
		return "", nil
	}

	id, err := ui.PickDevice(devices)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New(errors.ErrSelection,
			"No device picked",
			"Pass --device to skip the picker.")
	}
	return id, nil
}
