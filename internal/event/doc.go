// Package event defines the typed envelope exchanged between the dashboard
// backend and the sync layer, over both the live channel and the polling
// fallback.
//
// Conventions:
//   - Timestamps: int64 microseconds since Unix epoch
//   - Sequence numbers: monotonically non-decreasing per logical connection
package event
