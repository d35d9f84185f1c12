package sync

import (
	"context"
	"errors"
	"log/slog"
	stdsync "sync"
	"sync/atomic"

	"github.com/pulseboard/dashsync/internal/backoff"
	"github.com/pulseboard/dashsync/internal/connection"
	"github.com/pulseboard/dashsync/internal/event"
	"github.com/pulseboard/dashsync/internal/poller"
	"github.com/pulseboard/dashsync/internal/router"
)

// Errors
var (
	ErrAlreadyRunning = errors.New("coordinator already running")
)

// Config holds the coordinator configuration surface.
type Config struct {
	URL    string         // live channel endpoint
	Policy backoff.Policy // reconnect policy
	Poll   poller.Config  // fallback polling cadence
}

// Coordinator wires the connection manager, fallback poller, and event
// router together behind the contract the dashboard UI consumes:
// Start, Stop, Subscribe, Unsubscribe, Status.
type Coordinator struct {
	cfg       Config
	transport connection.Transport
	fetch     poller.FetchFunc
	logger    *slog.Logger

	router  *router.Router
	running atomic.Bool

	// cursorMu serializes the compare → dispatch → advance turn shared by
	// the live and polled delivery paths. Held during handler invocation;
	// handlers must not call Apply. The cursor itself is published through
	// an atomic pointer so Cursor and LastSequence stay safe to call from
	// inside a handler.
	cursorMu stdsync.Mutex
	cursor   atomic.Pointer[Cursor]

	mu        stdsync.Mutex
	manager   *connection.Manager
	poller    *poller.Poller
	listeners []connection.StatusListener
}

// New creates a Coordinator. Subscriptions may be registered before Start
// and survive Stop/Start cycles; manager and poller are built fresh on each
// Start so a manual restart begins from idle.
func New(cfg Config, transport connection.Transport, fetch poller.FetchFunc, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		cfg:       cfg,
		transport: transport,
		fetch:     fetch,
		logger:    logger,
		router:    router.New(logger.With("component", "router")),
	}
	c.cursor.Store(&Cursor{})
	return c
}

// Subscribe registers a handler for the given event types.
func (c *Coordinator) Subscribe(types []event.Type, h router.Handler) (router.Handle, error) {
	return c.router.Register(types, h)
}

// Unsubscribe removes a subscription. Unknown handles are a no-op.
func (c *Coordinator) Unsubscribe(h router.Handle) {
	c.router.Unregister(h)
}

// OnStatusChange registers a status listener (the UI connection banner).
// Listeners registered before Start are wired into every manager the
// coordinator builds.
func (c *Coordinator) OnStatusChange(fn connection.StatusListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Status returns the connection state snapshot; safe to poll from render
// logic. idle before the first Start, closed after Stop.
func (c *Coordinator) Status() connection.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.manager == nil {
		return connection.StateIdle
	}
	return c.manager.Status()
}

// Cursor returns a snapshot of the dedup cursor. Lock-free, so handlers may
// call it during dispatch; mid-dispatch it reports the pre-advance cursor.
func (c *Coordinator) Cursor() Cursor {
	return *c.cursor.Load()
}

// LastSequence implements the poller sink's cursor accessor.
func (c *Coordinator) LastSequence() int64 {
	return c.cursor.Load().LastAppliedSequence
}

// Apply is the shared dispatch gate for both delivery paths. The sequence
// comparison, dispatch, and cursor advance happen under one lock so the
// live channel and the poller can never observe the same stale cursor and
// double-apply an update. Returns whether the envelope was dispatched.
func (c *Coordinator) Apply(env event.Envelope) bool {
	if !c.running.Load() {
		return false
	}

	c.cursorMu.Lock()
	defer c.cursorMu.Unlock()

	if c.cursor.Load().Behind(env.Sequence) {
		return false
	}

	c.router.Dispatch(env)

	c.cursor.Store(&Cursor{
		LastAppliedSequence:  env.Sequence,
		LastAppliedTimestamp: env.Timestamp,
	})
	return true
}

// Start wires the subsystems together and begins the connection attempt.
// Returns ErrAlreadyRunning if called while running; after an exhausted
// retry cycle the UI resumes with Stop followed by Start.
func (c *Coordinator) Start(ctx context.Context, tokens connection.TokenSupplier) error {
	c.mu.Lock()
	if c.running.Load() {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}

	mgr := connection.NewManager(
		connection.ManagerConfig{URL: c.cfg.URL, Policy: c.cfg.Policy},
		c.transport,
		tokens,
		c,
		c.logger.With("component", "connection"),
	)
	pol := poller.New(
		c.cfg.Poll,
		c.fetch,
		c,
		c.logger.With("component", "poller"),
	)

	mgr.OnStatusChange(pol.HandleStatusChange)
	for _, fn := range c.listeners {
		mgr.OnStatusChange(fn)
	}

	c.manager = mgr
	c.poller = pol
	c.running.Store(true)
	c.mu.Unlock()

	if err := pol.Start(ctx); err != nil {
		return err
	}
	if err := mgr.Start(ctx); err != nil {
		return err
	}

	c.logger.Info("sync coordinator started", "url", c.cfg.URL)
	return nil
}

// Stop tears down the manager and poller, releasing timers and the
// transport. Idempotent; subscriptions and the cursor survive for the next
// Start.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running.Load() {
		c.mu.Unlock()
		return nil
	}
	c.running.Store(false)
	mgr := c.manager
	pol := c.poller
	c.mu.Unlock()

	// Poller first: its generation bump invalidates any in-flight fetch
	// before the manager stops emitting status changes.
	if err := pol.Stop(ctx); err != nil {
		c.logger.Warn("poller stop", "error", err)
	}
	if err := mgr.Stop(ctx); err != nil {
		c.logger.Warn("manager stop", "error", err)
	}

	c.logger.Info("sync coordinator stopped")
	return nil
}
