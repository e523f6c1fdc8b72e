// Package cli implements the netwatch command-line interface.
//
// Each cobra command loads the config, applies its flags on top, and hands
// off to the packages that do the work:
//
//	netwatch dashboard   - live TUI for one device (monitor + telemetry)
//	netwatch watch       - the same frames as plain lines, for pipes and CI
//	netwatch devices     - the backend's device directory
//	netwatch theme       - show or persist the dashboard theme
//	netwatch serve       - reference backend with synthetic devices (demo)
//
// # Flag Handling
//
// Global flags (--config, --server, --no-color) are defined on the root
// command. --server overrides server.url after the config file and
// NETWATCH_* environment variables are applied.
//
// # Sessions
//
// dashboard and watch share startSession, which builds the selection
// controller, metrics store and synchronizer, starts the push client when
// enabled, and routes both through the SSH tunnel when server.tunnel is set.
package cli
