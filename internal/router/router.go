package router

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pulseboard/dashsync/internal/event"
)

// Errors
var (
	ErrNoEventTypes = errors.New("at least one event type is required")
	ErrNilHandler   = errors.New("handler must not be nil")
	ErrUnknownType  = errors.New("unknown event type")
)

// Handler receives dispatched envelopes. Invocation is synchronous; handlers
// doing slow work must offload it themselves.
type Handler interface {
	HandleEvent(env event.Envelope) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(event.Envelope) error

func (f HandlerFunc) HandleEvent(env event.Envelope) error {
	return f(env)
}

// Handle identifies a registration for later removal.
type Handle struct {
	id uuid.UUID
}

// subscription is one registered handler with its type filter.
type subscription struct {
	id      uuid.UUID
	types   map[event.Type]struct{}
	handler Handler
}

// Router dispatches envelopes to registered subscribers. Many subscriptions
// may share an event type; all matching handlers run, in registration order.
type Router struct {
	logger *slog.Logger

	mu    sync.RWMutex
	order []uuid.UUID
	subs  map[uuid.UUID]*subscription
}

// New creates an empty Router.
func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger: logger,
		subs:   make(map[uuid.UUID]*subscription),
	}
}

// Register stores a handler for the given event types and returns a handle
// usable for removal. The type set must be non-empty and known.
func (r *Router) Register(types []event.Type, h Handler) (Handle, error) {
	if len(types) == 0 {
		return Handle{}, ErrNoEventTypes
	}
	if h == nil {
		return Handle{}, ErrNilHandler
	}

	filter := make(map[event.Type]struct{}, len(types))
	for _, t := range types {
		if !t.Valid() {
			return Handle{}, ErrUnknownType
		}
		filter[t] = struct{}{}
	}

	sub := &subscription{
		id:      uuid.New(),
		types:   filter,
		handler: h,
	}

	r.mu.Lock()
	r.subs[sub.id] = sub
	r.order = append(r.order, sub.id)
	r.mu.Unlock()

	return Handle{id: sub.id}, nil
}

// Unregister removes a subscription. Unknown or already-removed handles are
// a no-op.
func (r *Router) Unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[h.id]; !ok {
		return
	}
	delete(r.subs, h.id)
	for i, id := range r.order {
		if id == h.id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of active subscriptions.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Dispatch invokes every matching handler in registration order and returns
// how many succeeded. A handler failure (error or panic) is logged and never
// stops dispatch to the remaining handlers.
func (r *Router) Dispatch(env event.Envelope) int {
	// Snapshot outside handler invocation so handlers may register or
	// unregister without deadlocking.
	r.mu.RLock()
	matched := make([]*subscription, 0, len(r.order))
	for _, id := range r.order {
		sub := r.subs[id]
		if _, ok := sub.types[env.Type]; ok {
			matched = append(matched, sub)
		}
	}
	r.mu.RUnlock()

	applied := 0
	for _, sub := range matched {
		if r.invoke(sub, env) {
			applied++
		}
	}
	return applied
}

// invoke runs a single handler, recovering panics.
func (r *Router) invoke(sub *subscription, env event.Envelope) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("handler panicked",
				"type", env.Type,
				"seq", env.Sequence,
				"panic", p,
			)
			ok = false
		}
	}()

	if err := sub.handler.HandleEvent(env); err != nil {
		r.logger.Warn("handler failed",
			"type", env.Type,
			"seq", env.Sequence,
			"error", err,
		)
		return false
	}
	return true
}
