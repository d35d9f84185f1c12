// Package backoff implements the reconnect policy: a pure, deterministic
// mapping from attempt count to retry delay, plus the retry cutoff that
// drives the reconnecting→disconnected transition.
package backoff
