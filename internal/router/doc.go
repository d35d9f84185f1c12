// Package router implements the event router: a registry mapping event
// types to subscriber handlers, with fan-out dispatch in registration order.
// The router is transport-independent; both the live channel and the
// polling fallback feed it through the coordinator's cursor gate.
package router
