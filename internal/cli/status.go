package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/netwatch/internal/logger"
	"github.com/rileyhilliard/netwatch/internal/netstatus"
	"github.com/rileyhilliard/netwatch/internal/ui"
)

var (
	statusJSONFlag bool
	tableJSONFlag  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether each network area is under attack",
	Long: `Ask the backend for the status of each cluster area, as derived from its
intrusion log, and print one line per area.

Examples:
  netwatch status
  netwatch status --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusCommand(cmd.OutOrStdout(), statusJSONFlag)
	},
}

var tableCmd = &cobra.Command{
	Use:   "table <name>",
	Short: "Print one of the backend's site data tables",
	Long: `Fetch a site data table from the backend and print it.

Tables: ` + strings.Join(netstatus.TableNames(), ", ") + `

Examples:
  netwatch table sos
  netwatch table firewall --json`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: netstatus.TableNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tableCommand(cmd.OutOrStdout(), args[0], tableJSONFlag)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSONFlag, "json", false, "print JSON instead of text")
	tableCmd.Flags().BoolVar(&tableJSONFlag, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(statusCmd, tableCmd)
}

// withBackend loads config, connects a backend and runs fn under the
// configured request timeout.
func withBackend(fn func(ctx context.Context, b *backend) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := newBackend(cfg, logger.NewWriterLogger("netwatch", os.Stderr))
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()
	return fn(ctx, b)
}

func statusCommand(out io.Writer, asJSON bool) error {
	var areas []netstatus.Area
	err := withBackend(func(ctx context.Context, b *backend) error {
		var err error
		areas, err = b.api.SiteStatus(ctx)
		return err
	})
	if err != nil {
		if asJSON {
			return writeJSONError(out, err)
		}
		return err
	}

	if asJSON {
		return writeJSONSuccess(out, areas)
	}
	fmt.Fprint(out, renderAreaStatus(areas))
	return nil
}

func renderAreaStatus(areas []netstatus.Area) string {
	if len(areas) == 0 {
		return "No areas reported by the backend\n"
	}
	rows := make([]ui.CheckRow, len(areas))
	for i, a := range areas {
		msg := a.Message
		if msg == "" {
			msg = string(a.Status)
		}
		row := ui.CheckRow{
			Status:   "pass",
			Category: "Network status",
			Message:  fmt.Sprintf("%s: %s", a.Name, msg),
		}
		if a.Status == netstatus.LevelDanger {
			row.Status = "fail"
			row.Suggestion = "Run 'netwatch table sos' for emergency contacts."
		}
		rows[i] = row
	}
	return ui.RenderCheckList(rows)
}

func tableCommand(out io.Writer, name string, asJSON bool) error {
	var tbl netstatus.Table
	err := withBackend(func(ctx context.Context, b *backend) error {
		var err error
		tbl, err = b.api.Table(ctx, name)
		return err
	})
	if err != nil {
		if asJSON {
			return writeJSONError(out, err)
		}
		return err
	}

	if asJSON {
		return writeJSONSuccess(out, tbl)
	}
	fmt.Fprint(out, renderDataTable(tbl))
	return nil
}

func renderDataTable(t netstatus.Table) string {
	if len(t.Rows) == 0 {
		return fmt.Sprintf("Table %s is empty\n", t.Name)
	}
	cols := make([]ui.TableColumn, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = ui.TableColumn{Title: strings.ToUpper(c)}
	}
	return ui.RenderTable(cols, t.Rows) + "\n"
}
