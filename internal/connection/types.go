package connection

import (
	"context"
	"errors"
	"time"

	"github.com/pulseboard/dashsync/internal/backoff"
	"github.com/pulseboard/dashsync/internal/event"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAuthRejected    = errors.New("handshake rejected: bad credentials")
	ErrAlreadyStarted  = errors.New("manager already started")
	ErrAlreadyClosed   = errors.New("already closed")
)

// State is the connection lifecycle state. Mutated only by the manager's run
// loop and Stop; everyone else reads snapshots.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
	StateClosed       State = "closed"
)

// Transport opens logical connections. The manager treats it as an opaque
// capability: ordered, reliable, message-oriented, with explicit close and
// error signals. Open must return an error wrapping ErrAuthRejected when the
// handshake is refused specifically for credentials.
type Transport interface {
	Open(ctx context.Context, url, token string) (Conn, error)
}

// Conn is one open connection produced by a Transport.
type Conn interface {
	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Messages returns a channel of raw inbound messages. It is closed when
	// the connection dies.
	Messages() <-chan []byte

	// Errors returns a channel of connection errors.
	Errors() <-chan error

	// Close releases the connection.
	Close() error
}

// TokenSupplier returns the current bearer token, or "" when the dashboard
// session is unauthenticated. Called on every connect attempt, so a rotated
// token is picked up on the next reconnect without disturbing a healthy
// connection.
type TokenSupplier func() string

// Sink receives decoded envelopes from the live channel, in arrival order.
// The coordinator's cursor gate implements it.
type Sink interface {
	Apply(env event.Envelope) bool
}

// StatusListener observes state transitions. Invoked synchronously on each
// transition; listeners must be fast.
type StatusListener func(State)

// ClientConfig configures the websocket transport.
type ClientConfig struct {
	HandshakeTimeout time.Duration // dial deadline
	PingTimeout      time.Duration // max time without ping before the conn is stale
	WriteTimeout     time.Duration // write deadline for sends
	BufferSize       int           // inbound message channel buffer
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the connection manager.
type ManagerConfig struct {
	URL    string         // channel endpoint (e.g. wss://dash.example.com/api/v1/sync/ws)
	Policy backoff.Policy // reconnect delay/cutoff policy
}
