package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/netwatch/internal/doctor"
	"github.com/rileyhilliard/netwatch/internal/logger"
	"github.com/rileyhilliard/netwatch/internal/push"
	"github.com/rileyhilliard/netwatch/internal/ui"
)

var doctorJSONFlag bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose config and backend connectivity",
	Long: `Run diagnostic checks to find out why the dashboard can't show data.

Checks:
  - Config file and validation
  - SSH tunnel (when server.tunnel is set)
  - Backend health and device directory
  - WebSocket push channel

Examples:
  netwatch doctor
  netwatch doctor --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.Context(), cmd.OutOrStdout(), doctorJSONFlag)
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSONFlag, "json", false, "print results as JSON")
	rootCmd.AddCommand(doctorCmd)
}

func doctorCommand(ctx context.Context, out io.Writer, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	checks, cleanup := doctorChecks()
	defer cleanup()

	results := doctor.RunAll(ctx, checks)
	failed := doctor.CountByStatus(results)[doctor.StatusFail]

	if asJSON {
		env := JSONEnvelope{Success: failed == 0, Data: results}
		if err := writeJSONEnvelope(out, env); err != nil {
			return err
		}
	} else {
		rows := make([]ui.CheckRow, len(results))
		for i, r := range results {
			rows[i] = ui.CheckRow{Status: r.Status.String(), Category: r.Category, Message: r.Message, Suggestion: r.Suggestion}
		}
		fmt.Fprint(out, ui.RenderCheckList(rows))
	}

	if failed > 0 {
		return fmt.Errorf("doctor found %d failing check(s)", failed)
	}
	return nil
}

// doctorChecks builds the checks for the current config. Backend checks are
// left out when the config itself doesn't load.
func doctorChecks() ([]doctor.Check, func()) {
	cfg, path, err := loadConfig()
	checks := []doctor.Check{&doctor.ConfigCheck{Path: path, Err: err}}
	if err != nil {
		return checks, func() {}
	}

	b, err := newBackend(cfg, logger.Noop())
	if err != nil {
		checks[0] = &doctor.ConfigCheck{Path: path, Err: err}
		return checks, func() {}
	}

	tunnel := &doctor.TunnelCheck{ServerURL: cfg.Server.URL}
	if b.tunnel != nil {
		tunnel.Dialer = b.tunnel
	}

	pushCheck := &doctor.PushCheck{}
	if cfg.Push.Enabled {
		opts := []push.Option{push.WithLogger(logger.Noop())}
		if b.tunnel != nil {
			opts = append(opts, push.WithNetDialContext(b.tunnel.DialContext))
		}
		pushCheck.Client = push.NewClient(b.pushURL, nil, opts...)
	}

	checks = append(checks,
		tunnel,
		&doctor.HealthCheck{Client: b.api, ServerURL: cfg.Server.URL},
		&doctor.DirectoryCheck{Client: b.api},
		pushCheck,
	)
	return checks, b.Close
}
