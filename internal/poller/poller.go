package poller

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pulseboard/dashsync/internal/connection"
	"github.com/pulseboard/dashsync/internal/event"
)

// FetchFunc fetches a snapshot of events newer than sinceSeq. It must be
// safe to call repeatedly; sinceSeq 0 requests a full snapshot.
type FetchFunc func(ctx context.Context, sinceSeq int64) ([]event.Envelope, error)

// Sink applies polled envelopes and exposes the dedup cursor. The
// coordinator implements it; Apply reports whether the envelope was
// actually dispatched (false when at or below the cursor).
type Sink interface {
	Apply(env event.Envelope) bool
	LastSequence() int64
}

// Config holds poller configuration.
type Config struct {
	Interval     time.Duration // poll interval while the channel is down
	FetchTimeout time.Duration // per-fetch timeout
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     10 * time.Second,
		FetchTimeout: 10 * time.Second,
	}
}

// Poller periodically fetches snapshots while the live channel is down.
type Poller struct {
	cfg    Config
	fetch  FetchFunc
	sink   Sink
	logger *slog.Logger

	wg sync.WaitGroup

	mu         sync.Mutex
	baseCtx    context.Context
	loopCancel context.CancelFunc
	running    bool
	stopped    bool
	gen        uint64
}

// New creates a new Poller. It stays dormant until a status change
// activates it.
func New(cfg Config, fetch FetchFunc, sink Sink, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:    cfg,
		fetch:  fetch,
		sink:   sink,
		logger: logger,
	}
}

// Start arms the poller. Polling begins only when HandleStatusChange
// observes a reconnecting or disconnected channel.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baseCtx = ctx
	p.stopped = false
	return nil
}

// Stop deactivates the poller and invalidates any in-flight fetch. The
// fetch itself is not cancelled; its result is discarded on completion via
// the generation counter.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.gen++
	if p.loopCancel != nil {
		p.loopCancel()
		p.loopCancel = nil
	}
	p.running = false
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("fallback poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleStatusChange toggles polling from connection state transitions.
// Register it as a status listener on the connection manager.
func (p *Poller) HandleStatusChange(s connection.State) {
	shouldPoll := s == connection.StateReconnecting || s == connection.StateDisconnected

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || p.baseCtx == nil {
		return
	}

	switch {
	case shouldPoll && !p.running:
		p.gen++
		gen := p.gen
		loopCtx, cancel := context.WithCancel(p.baseCtx)
		p.loopCancel = cancel
		p.running = true

		p.wg.Add(1)
		go p.run(loopCtx, gen)

		p.logger.Info("fallback poller activated",
			"state", s,
			"interval", p.cfg.Interval,
		)

	case !shouldPoll && p.running:
		p.gen++
		p.loopCancel()
		p.loopCancel = nil
		p.running = false

		p.logger.Info("fallback poller deactivated", "state", s)
	}
}

// Active reports whether the polling loop is running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// run is the polling loop for one activation window.
func (p *Poller) run(ctx context.Context, gen uint64) {
	defer p.wg.Done()

	// Poll immediately on activation, then on the ticker.
	p.pollOnce(gen)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(gen)
		}
	}
}

// pollOnce fetches one snapshot and feeds it through the cursor gate. The
// fetch deliberately does not run under the loop context: deactivation must
// not cancel it mid-flight, only discard its result on the generation check.
func (p *Poller) pollOnce(gen uint64) {
	since := p.sink.LastSequence()

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.FetchTimeout)
	defer cancel()

	envs, err := p.fetch(ctx, since)
	if err != nil {
		p.logger.Warn("poll fetch failed, skipping tick",
			"since_seq", since,
			"error", err,
		)
		return
	}

	p.mu.Lock()
	stale := gen != p.gen
	p.mu.Unlock()
	if stale {
		p.logger.Debug("discarding stale poll result",
			"since_seq", since,
			"events", len(envs),
		)
		return
	}

	// Snapshots carry no ordering guarantee; apply in sequence order so the
	// cursor advances monotonically.
	sort.Slice(envs, func(i, j int) bool { return envs[i].Sequence < envs[j].Sequence })

	applied := 0
	for _, env := range envs {
		if p.sink.Apply(env) {
			applied++
		}
	}

	p.logger.Debug("poll cycle complete",
		"since_seq", since,
		"fetched", len(envs),
		"applied", applied,
	)
}
