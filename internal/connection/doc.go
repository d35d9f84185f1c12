// Package connection implements the connection manager component.
//
// The connection manager:
//   - Owns the single logical channel a dashboard instance holds
//   - Drives the lifecycle state machine (idle → connecting → connected →
//     reconnecting → disconnected, closed terminal)
//   - Decodes inbound messages and forwards them to the dispatch sink
//   - Handles reconnection with policy-governed exponential backoff
//   - Emits synchronous status-change notifications for the UI banner and
//     the fallback poller
package connection
