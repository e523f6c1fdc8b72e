// Package telemetry keeps a dashboard's view of one device's metrics in sync
// with the backend.
//
// Two sources feed the view. Pull refreshes fetch the full history for the
// selected device. The push channel delivers the newest point per channel as
// it is produced. The Synchronizer merges both into a Store, filters the
// result to the selected trailing window, and hands each frame to a
// RenderSink.
//
// The pieces, leaves first:
//
//   - FilterWindow: pure window filter over a time-ordered Series.
//   - Store: the snapshot for the single active device. Writes for any other
//     device are dropped, which is how late responses are kept off screen.
//   - Synchronizer: a single event loop owning the refresh state machine
//     (idle, refreshing, ready, error).
//   - SelectionController: validates device and window changes and notifies
//     the Synchronizer.
//
// Collaborators are interfaces (Fetcher, UpdateRequester, PushHandler,
// RenderSink) so the HTTP client, the WebSocket client and the terminal UI
// stay outside this package.
package telemetry
