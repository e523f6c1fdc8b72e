package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/netwatch/internal/config"
	"github.com/rileyhilliard/netwatch/internal/monitor"
)

var themeCmd = &cobra.Command{
	Use:   "theme [dark|light|auto]",
	Short: "Show or set the dashboard theme",
	Long: `Without an argument, print the configured theme and what it resolves to in
this terminal. With one, save it to the config file in use (or the global
config at ~/.config/netwatch/config.yaml).

Examples:
  netwatch theme
  netwatch theme light`,
	ValidArgs: config.ValidThemes,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		theme := ""
		if len(args) == 1 {
			theme = args[0]
		}
		return themeCommand(cmd.OutOrStdout(), theme)
	},
}

func init() {
	rootCmd.AddCommand(themeCmd)
}

func themeCommand(out io.Writer, theme string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	if theme == "" {
		fmt.Fprintf(out, "%s (%s)\n", cfg.Theme, monitor.ResolveTheme(cfg.Theme))
		return nil
	}

	target := themeConfigPath(path)
	if err := config.SetTheme(target, theme); err != nil {
		return err
	}
	fmt.Fprintf(out, "Theme set to %s in %s\n", theme, target)
	return nil
}
