package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/logger"
	"github.com/rileyhilliard/netwatch/internal/monitor"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
	"github.com/rileyhilliard/netwatch/internal/ui"
)

var (
	watchDeviceFlag string
	watchWindowFlag int
	watchCountFlag  int
)

// sparkWidth is how many recent samples each channel's sparkline shows.
const sparkWidth = 20

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print live telemetry for one device as plain lines",
	Long: `Follow one device without the full-screen dashboard. Each time the data
changes a line is printed with the newest value and a sparkline per channel.

Suited to pipes, logs and CI. Logs go to stderr; set NETWATCH_DEBUG=1 for
more detail.

Examples:
  netwatch watch --device 2
  netwatch watch --device 2 --window 5 --count 3`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchCommand(cmd.OutOrStdout(), watchDeviceFlag, watchWindowFlag, watchCountFlag)
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchDeviceFlag, "device", "d", "", "device id to watch (default dashboard.device)")
	watchCmd.Flags().IntVarP(&watchWindowFlag, "window", "w", 0, "time window in minutes (default from config)")
	watchCmd.Flags().IntVarP(&watchCountFlag, "count", "n", 0, "exit after this many data frames (0 runs until interrupted)")
	rootCmd.AddCommand(watchCmd)
}

func watchCommand(out io.Writer, device string, window, count int) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if device == "" {
		device = cfg.Dashboard.Device
	}
	if device == "" {
		return errors.New(errors.ErrSelection,
			"No device to watch",
			"Pass --device, or run 'netwatch devices' to see what's available.")
	}
	if window == 0 {
		window = cfg.Dashboard.Window
	}
	if err := telemetry.ValidateWindow(window); err != nil {
		return err
	}

	log := logger.NewWriterLogger("netwatch", os.Stderr)
	b, err := newBackend(cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadCtx, cancelLoad := context.WithTimeout(ctx, cfg.Server.Timeout)
	devices, err := b.api.ListEntities(loadCtx)
	cancelLoad()
	if err != nil {
		return err
	}

	return followDevice(ctx, b, out, devices, device, window, count)
}

// followDevice selects device and prints frames until ctx ends or count
// data frames have been printed.
func followDevice(ctx context.Context, b *backend, out io.Writer, devices []telemetry.Entity, device string, window, count int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so the synchronizer never waits on a slow pipe for long.
	frames := make(chan telemetry.RenderEvent, 16)
	sink := telemetry.RenderSinkFunc(func(ev telemetry.RenderEvent) {
		select {
		case frames <- ev:
		case <-ctx.Done():
		}
	})

	s := b.startSession(ctx, sink, window)
	defer func() {
		cancel()
		<-s.done
	}()

	s.selection.SetEntities(devices)
	if err := s.selection.SelectEntity(device); err != nil {
		return err
	}
	entity, _ := s.selection.Entity(device)

	printed := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-frames:
			if ev.Status == telemetry.RenderLoading {
				continue
			}
			fmt.Fprintln(out, formatFrame(entity, ev))
			printed++
			if count > 0 && printed >= count {
				return nil
			}
		}
	}
}

// formatFrame renders one frame as a single line:
//
//	15:04:05 core-sw-1 30m push Bandwidth=512.0 Mbps ▁▃█ CPU=41.0% ▂▂▅ ...
func formatFrame(entity telemetry.Entity, ev telemetry.RenderEvent) string {
	muted := lipgloss.NewStyle().Foreground(ui.ColorMuted)

	link := "pull"
	if ev.Connected {
		link = "push"
	}
	parts := []string{
		muted.Render(ev.At.Local().Format("15:04:05")),
		entity.DisplayName(),
		telemetry.FormatWindow(ev.WindowMinutes),
		muted.Render(link),
	}

	if ev.Status == telemetry.RenderError {
		fail := lipgloss.NewStyle().Foreground(ui.ColorError)
		parts = append(parts, fail.Render(ui.SymbolFail+" "+errors.Summary(ev.Err)))
	}

	for _, ch := range ev.Series.Channels() {
		info := telemetry.LookupChannel(ch)
		series := ev.Series[ch]
		last, ok := series.Last()
		if !ok {
			parts = append(parts, info.Label+"=--")
			continue
		}
		parts = append(parts, info.Label+"="+monitor.FormatValue(info, last.Value))
		parts = append(parts, ui.RenderSparkline(series.Values(), sparkWidth, info.Percent))
	}
	return strings.Join(parts, " ")
}
