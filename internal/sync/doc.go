// Package sync implements the sync coordinator: the single object a
// dashboard instance holds to keep its view of server-side state current.
//
// The coordinator composes the connection manager, fallback poller, and
// event router, and owns the dedup cursor both delivery paths share. It is
// constructed once per dashboard mount and torn down on unmount; nothing
// else holds subsystem state.
package sync
