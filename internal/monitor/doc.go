// Package monitor is the terminal dashboard for a single network device.
//
// It is a Bubble Tea program (Model-Update-View) that sits at the edge of
// the telemetry pipeline:
//
//   - Key presses change the selection through a telemetry.SelectionController.
//     Its listener is the synchronizer, which fetches and filters data.
//   - The synchronizer renders into a ChannelSink. The sink keeps only the
//     newest undelivered frame and the model picks it up as a frameMsg.
//   - View draws the device list, a card per channel with the newest value,
//     and a braille chart per channel for the active window.
//
// Themes are dark or light; "auto" follows the terminal background. Toggling
// the theme calls Options.OnThemeChange so the choice can be saved.
package monitor
