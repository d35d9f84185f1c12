// Package poller implements the fallback poller component.
//
// The fallback poller:
//   - Runs only while the live channel is reconnecting or disconnected
//   - Toggles itself by listening to connection status changes
//   - Fetches snapshots from the dashboard API on a fixed interval
//   - Feeds resulting envelopes through the coordinator's cursor gate, so
//     state already applied live is never delivered twice
//   - Swallows and logs per-tick fetch failures; polling and the live
//     channel are independent failure domains
package poller
