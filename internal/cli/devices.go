package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/netwatch/internal/logger"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
	"github.com/rileyhilliard/netwatch/internal/ui"
)

var devicesJSONFlag bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices the backend monitors",
	Long: `Fetch the device directory and print it as a table.

Examples:
  netwatch devices
  netwatch devices --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return devicesCommand(cmd.OutOrStdout(), devicesJSONFlag)
	},
}

func init() {
	devicesCmd.Flags().BoolVar(&devicesJSONFlag, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(devicesCmd)
}

func devicesCommand(out io.Writer, asJSON bool) error {
	cfg, _, err := loadConfig()
	if err != nil {
		if asJSON {
			return writeJSONError(out, err)
		}
		return err
	}

	b, err := newBackend(cfg, logger.NewWriterLogger("netwatch", os.Stderr))
	if err != nil {
		return err
	}
	defer b.Close()

	var spinner *ui.Spinner
	if !asJSON && ui.IsTerminal(os.Stderr) {
		spinner = ui.NewSpinner("Loading devices from "+cfg.Server.URL, os.Stderr)
		spinner.Start()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()
	devices, err := b.api.ListEntities(ctx)

	if spinner != nil {
		if err != nil {
			spinner.Fail()
		} else {
			spinner.Success()
		}
	}
	if err != nil {
		if asJSON {
			return writeJSONError(out, err)
		}
		return err
	}

	if asJSON {
		return writeJSONSuccess(out, devices)
	}
	fmt.Fprint(out, renderDeviceTable(devices))
	return nil
}

func renderDeviceTable(devices []telemetry.Entity) string {
	if len(devices) == 0 {
		return "No devices reported by the backend\n"
	}
	rows := make([][]string, len(devices))
	for i, d := range devices {
		rows[i] = []string{d.ID, d.Name, d.Address}
	}
	return ui.RenderTable([]ui.TableColumn{
		{Title: "ID"},
		{Title: "NAME"},
		{Title: "ADDRESS"},
	}, rows) + "\n"
}
