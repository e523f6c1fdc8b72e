package cli

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/netwatch/internal/ui"
)

// Global flags
var (
	cfgFile    string
	serverFlag string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "netwatch",
	Short: "Live network device telemetry in your terminal",
	Long: `netwatch shows live bandwidth, packet loss, latency and health metrics for
the devices a monitoring backend knows about.

It pulls each device's recent history over HTTP and keeps it current with
pushed samples over a WebSocket, falling back to pull refreshes when the push
channel drops.

Run 'netwatch serve' for a local backend with synthetic devices.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || os.Getenv("NO_COLOR") != "" {
			ui.DisableColors()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .netwatch.yaml, then ~/.config/netwatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "backend URL, overrides server.url")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, err)
	if isUnknownCommandError(err) {
		if name := extractUnknownCommand(err); name != "" {
			fmt.Fprintf(os.Stderr, "\n'%s' isn't a netwatch command. Run 'netwatch --help' to see what is.\n", name)
		}
	}
	return 1
}

// isUnknownCommandError reports whether cobra rejected the command line
// itself rather than a command failing.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

var unknownCommandRe = regexp.MustCompile(`unknown command "([^"]+)"`)

// extractUnknownCommand pulls the command name out of cobra's error.
func extractUnknownCommand(err error) string {
	m := unknownCommandRe.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
