package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pulseboard/dashsync/internal/event"
)

// Manager owns one logical connection and drives its lifecycle state
// machine. Decoded envelopes flow to the sink in arrival order; every state
// transition is announced synchronously to registered listeners.
type Manager struct {
	cfg       ManagerConfig
	transport Transport
	tokens    TokenSupplier
	sink      Sink
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     State
	attempts  int
	conn      Conn
	started   bool
	listeners []StatusListener
}

// NewManager creates a connection manager in the idle state.
func NewManager(cfg ManagerConfig, transport Transport, tokens TokenSupplier, sink Sink, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		transport: transport,
		tokens:    tokens,
		sink:      sink,
		logger:    logger,
		state:     StateIdle,
	}
}

// OnStatusChange registers a listener for state transitions. Listeners must
// be registered before Start; they are invoked synchronously on each
// transition, in registration order.
func (m *Manager) OnStatusChange(fn StatusListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Status returns a snapshot of the current state.
func (m *Manager) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the current reconnect attempt count. Reset to zero on
// every successful connect.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Start begins the connection attempt: idle → connecting. It returns
// immediately; progress is observable via status listeners.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	return nil
}

// Stop tears the manager down: any state → closed. Pending retry timers are
// cancelled and the transport released. Idempotent.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}
	if conn != nil {
		conn.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout waiting for run loop")
	}

	m.setState(StateClosed)
	m.logger.Info("connection manager stopped")
	return nil
}

// setState applies a transition and notifies listeners. closed is terminal:
// once reached, no other state can overwrite it.
func (m *Manager) setState(next State) {
	m.mu.Lock()
	if m.state == next || m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	prev := m.state
	m.state = next
	listeners := make([]StatusListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	m.logger.Debug("connection state changed", "from", prev, "to", next)

	for _, fn := range listeners {
		fn(next)
	}
}

// run is the lifecycle loop: connect, read until drop, back off, repeat.
func (m *Manager) run() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		m.setState(StateConnecting)

		token := m.tokens()
		if token == "" {
			// Retrying without credentials cannot succeed; wait for a
			// manual restart once the session is authenticated.
			m.logger.Warn("no auth token available, not connecting")
			m.setState(StateDisconnected)
			return
		}

		conn, err := m.transport.Open(m.ctx, m.cfg.URL, token)
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrAuthRejected) {
				m.logger.Warn("handshake rejected for credentials, not retrying", "error", err)
				m.setState(StateDisconnected)
				return
			}
			m.logger.Warn("connect failed", "error", err)
			if !m.backOff() {
				return
			}
			continue
		}

		m.mu.Lock()
		m.conn = conn
		m.attempts = 0
		m.mu.Unlock()
		m.setState(StateConnected)
		m.logger.Info("connected", "url", m.cfg.URL)

		err = m.readLoop(conn)
		if m.ctx.Err() != nil {
			conn.Close()
			return
		}

		m.logger.Warn("connection dropped", "error", err)
		conn.Close()
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()

		if !m.backOff() {
			return
		}
	}
}

// backOff increments the attempt counter and waits out the policy delay in
// the reconnecting state. Returns false when retries are exhausted or the
// manager is stopping.
func (m *Manager) backOff() bool {
	m.mu.Lock()
	m.attempts++
	attempts := m.attempts
	m.mu.Unlock()

	m.setState(StateReconnecting)

	if !m.cfg.Policy.ShouldRetry(attempts) {
		m.logger.Error("reconnect attempts exhausted",
			"attempts", attempts,
			"max", m.cfg.Policy.MaxAttempts,
		)
		m.setState(StateDisconnected)
		return false
	}

	delay := m.cfg.Policy.NextDelay(attempts)
	m.logger.Info("scheduling reconnect", "attempt", attempts, "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-m.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// readLoop decodes inbound messages and forwards them to the sink until the
// connection dies. Decode failures drop the message and leave the
// connection up.
func (m *Manager) readLoop(conn Conn) error {
	for {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()

		case err := <-conn.Errors():
			return err

		case data, ok := <-conn.Messages():
			if !ok {
				return ErrNotConnected
			}

			env, err := event.Decode(data)
			if err != nil {
				m.logger.Warn("dropping undecodable message", "error", err)
				continue
			}

			m.sink.Apply(env)
		}
	}
}
