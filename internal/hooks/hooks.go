// Package hooks implements the lifecycle event bus: named events
// dispatched synchronously, in registration order, to subscribed
// handlers. A handler's error is logged and swallowed; hooks exist for
// side effects, never decisions, so a failing handler must not abort the
// flow. Dispatch iterates a stable snapshot of the handler list, and the
// bus keeps per-event invocation counters.
package hooks

import (
	"context"
	"sort"
	"sync"

	"github.com/flowkit/orchestrator/internal/ports"
)

// Events the engine and registry publish over the bus.
const (
	BeforeFlow      = "before_flow"
	AfterFlow       = "after_flow"
	BeforeNode      = "before_node"
	AfterNode       = "after_node"
	OnCacheHit      = "on_cache_hit"
	OnCacheMiss     = "on_cache_miss"
	OnMethodExecute = "on_method_execute"
	OnFailure       = "on_failure"
)

// Handler processes one event occurrence. Returning an error only causes
// the bus to log a warning; it never stops delivery to the remaining
// handlers nor aborts the flow.
type Handler func(ctx context.Context, event string, payload interface{}) error

// Subscription lets a caller stop receiving events.
type Subscription interface {
	Unsubscribe()
}

type entry struct {
	id      int
	handler Handler
}

// Bus is the process-wide (or per-run, callers' choice) HookBus.
type Bus struct {
	logger ports.Logger
	mu     sync.RWMutex
	subs   map[string][]entry
	counts map[string]int
	nextID int
}

// New creates a HookBus that logs every dispatched event and any handler
// error via logger. Pass logging.NoOpLogger{} to disable logging.
func New(logger ports.Logger) *Bus {
	return &Bus{logger: logger, subs: make(map[string][]entry), counts: make(map[string]int)}
}

// Register adds a handler for event, returning a Subscription that
// removes it again.
func (b *Bus) Register(event string, h Handler) Subscription {
	if h == nil {
		return noopSub{}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], entry{id: id, handler: h})
	b.mu.Unlock()

	return cancelSub{cancel: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		handlers := b.subs[event]
		for i, e := range handlers {
			if e.id == id {
				b.subs[event] = append(handlers[:i], handlers[i+1:]...)
				return
			}
		}
	}}
}

// Unregister removes every handler for event.
func (b *Bus) Unregister(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, event)
}

// Clear removes every handler for every event.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string][]entry)
}

// Fire dispatches event synchronously, in registration order, to every
// subscribed handler; a handler error is logged and swallowed.
func (b *Bus) Fire(ctx context.Context, event string, payload interface{}) {
	b.mu.Lock()
	b.counts[event]++
	handlers := append([]entry(nil), b.subs[event]...)
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Debug(ctx, "hook event", "event", event)
	}

	for _, e := range handlers {
		if err := e.handler(ctx, event, payload); err != nil && b.logger != nil {
			b.logger.Warn(ctx, "hook handler failed", "event", event, "error", err)
		}
	}
}

// Notify implements registry.Notifier, letting the method registry fire
// hook events without importing this package's Handler/Subscription types.
func (b *Bus) Notify(ctx context.Context, event string, payload interface{}) {
	b.Fire(ctx, event, payload)
}

// InvocationCounts returns a snapshot of per-event fire counts.
func (b *Bus) InvocationCounts() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]int, len(b.counts))
	for k, v := range b.counts {
		out[k] = v
	}
	return out
}

// EventsWithHandlers returns every event name with at least one
// registered handler, sorted, for query-by-event introspection.
func (b *Bus) EventsWithHandlers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.subs))
	for event, handlers := range b.subs {
		if len(handlers) > 0 {
			out = append(out, event)
		}
	}
	sort.Strings(out)
	return out
}

type noopSub struct{}

func (noopSub) Unsubscribe() {}

type cancelSub struct{ cancel func() }

func (s cancelSub) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}
