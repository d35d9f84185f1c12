package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pulseboard/dashsync/internal/connection"
	"github.com/pulseboard/dashsync/internal/event"
)

// fakeSink is a cursor-gating sink for tests.
type fakeSink struct {
	mu      sync.Mutex
	last    int64
	applied []event.Envelope
}

func (s *fakeSink) Apply(env event.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if env.Sequence <= s.last {
		return false
	}
	s.last = env.Sequence
	s.applied = append(s.applied, env)
	return true
}

func (s *fakeSink) LastSequence() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *fakeSink) appliedSeqs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.applied))
	for _, env := range s.applied {
		out = append(out, env.Sequence)
	}
	return out
}

func testConfig() Config {
	return Config{
		Interval:     5 * time.Millisecond,
		FetchTimeout: time.Second,
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPoller_ActivationToggle(t *testing.T) {
	fetch := func(ctx context.Context, sinceSeq int64) ([]event.Envelope, error) {
		return nil, nil
	}
	p := New(testConfig(), fetch, &fakeSink{}, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(ctx)

	if p.Active() {
		t.Error("poller active before any status change")
	}

	p.HandleStatusChange(connection.StateConnecting)
	if p.Active() {
		t.Error("poller active during connecting, want dormant")
	}

	p.HandleStatusChange(connection.StateReconnecting)
	if !p.Active() {
		t.Error("poller dormant during reconnecting, want active")
	}

	p.HandleStatusChange(connection.StateConnected)
	if p.Active() {
		t.Error("poller still active after connected")
	}

	p.HandleStatusChange(connection.StateDisconnected)
	if !p.Active() {
		t.Error("poller dormant during disconnected, want active")
	}
}

func TestPoller_AppliesFetchedEvents(t *testing.T) {
	var mu sync.Mutex
	var sinceSeen []int64

	fetch := func(ctx context.Context, sinceSeq int64) ([]event.Envelope, error) {
		mu.Lock()
		sinceSeen = append(sinceSeen, sinceSeq)
		mu.Unlock()
		if sinceSeq >= 3 {
			return nil, nil
		}
		// Deliberately out of order; the poller must sort by sequence.
		return []event.Envelope{
			{Type: event.TypeAnalytics, Sequence: 3, Timestamp: 300},
			{Type: event.TypeModeration, Sequence: 2, Timestamp: 200},
		}, nil
	}

	sink := &fakeSink{last: 1}
	p := New(testConfig(), fetch, sink, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(ctx)

	p.HandleStatusChange(connection.StateReconnecting)

	waitFor(t, func() bool { return sink.LastSequence() == 3 }, "timeout waiting for events to apply")

	seqs := sink.appliedSeqs()
	if len(seqs) != 2 || seqs[0] != 2 || seqs[1] != 3 {
		t.Errorf("applied sequences = %v, want [2 3]", seqs)
	}

	mu.Lock()
	first := sinceSeen[0]
	mu.Unlock()
	if first != 1 {
		t.Errorf("first fetch sinceSeq = %d, want cursor value 1", first)
	}
}

func TestPoller_FetchErrorSkipsTick(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	fetch := func(ctx context.Context, sinceSeq int64) ([]event.Envelope, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return nil, errors.New("connection refused")
		}
		return []event.Envelope{
			{Type: event.TypeSystem, Sequence: 5, Timestamp: 500},
		}, nil
	}

	sink := &fakeSink{}
	p := New(testConfig(), fetch, sink, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(ctx)

	p.HandleStatusChange(connection.StateDisconnected)

	// The failed first tick is skipped; the next tick succeeds.
	waitFor(t, func() bool { return sink.LastSequence() == 5 }, "timeout waiting for recovery after fetch error")
}

func TestPoller_StaleResultDiscardedOnStop(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	fetch := func(ctx context.Context, sinceSeq int64) ([]event.Envelope, error) {
		close(started)
		<-release
		return []event.Envelope{
			{Type: event.TypeModeration, Sequence: 9, Timestamp: 900},
		}, nil
	}

	sink := &fakeSink{}
	p := New(Config{Interval: time.Minute, FetchTimeout: 5 * time.Second}, fetch, sink, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	p.HandleStatusChange(connection.StateReconnecting)
	<-started

	// Stop while the fetch is in flight, then let it resolve.
	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	stopErr := make(chan error, 1)
	go func() { stopErr <- p.Stop(stopCtx) }()

	time.Sleep(10 * time.Millisecond)
	close(release)

	if err := <-stopErr; err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if seqs := sink.appliedSeqs(); len(seqs) != 0 {
		t.Errorf("applied sequences = %v after Stop, want none (generation mismatch)", seqs)
	}
}

func TestPoller_StaleResultDiscardedOnReconnect(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	fetch := func(ctx context.Context, sinceSeq int64) ([]event.Envelope, error) {
		close(started)
		<-release
		return []event.Envelope{
			{Type: event.TypeAnalytics, Sequence: 4, Timestamp: 400},
		}, nil
	}

	sink := &fakeSink{}
	p := New(Config{Interval: time.Minute, FetchTimeout: 5 * time.Second}, fetch, sink, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(ctx)

	p.HandleStatusChange(connection.StateReconnecting)
	<-started

	// The channel comes back while the fetch is in flight.
	p.HandleStatusChange(connection.StateConnected)
	close(release)

	time.Sleep(20 * time.Millisecond)
	if seqs := sink.appliedSeqs(); len(seqs) != 0 {
		t.Errorf("applied sequences = %v after reconnect, want none", seqs)
	}
}

func TestPoller_CursorGateFiltersOldEntries(t *testing.T) {
	fetch := func(ctx context.Context, sinceSeq int64) ([]event.Envelope, error) {
		// A server returning more than asked for must still not cause
		// re-delivery; the sink's cursor gate filters it.
		return []event.Envelope{
			{Type: event.TypeSystem, Sequence: 1, Timestamp: 100},
			{Type: event.TypeSystem, Sequence: 2, Timestamp: 200},
			{Type: event.TypeSystem, Sequence: 3, Timestamp: 300},
		}, nil
	}

	sink := &fakeSink{last: 2}
	p := New(testConfig(), fetch, sink, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(ctx)

	p.HandleStatusChange(connection.StateDisconnected)

	waitFor(t, func() bool { return sink.LastSequence() == 3 }, "timeout waiting for apply")

	seqs := sink.appliedSeqs()
	if len(seqs) != 1 || seqs[0] != 3 {
		t.Errorf("applied sequences = %v, want only [3]", seqs)
	}
}
