// Command netwatch is a terminal dashboard for network device telemetry.
package main

import (
	"os"

	"github.com/rileyhilliard/netwatch/internal/cli"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	os.Exit(cli.Execute())
}
