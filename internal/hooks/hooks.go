// Package hooks dispatches lifecycle events of the gateway and the
// conversation graph to registered handlers.
package hooks

import (
	"context"
	"sync"

	"github.com/soyeahso/steve/internal/logging"
)

// Lifecycle events.
const (
	EventGatewayStart = "gateway_start"
	EventGatewayStop  = "gateway_stop"
	EventTurnStart    = "turn_start"
	EventTurnEnd      = "turn_end"
	EventToolInvoked  = "tool_invoked"
	EventTurnError    = "turn_error"
)

// AllEvents lists every event name in emission order of a typical run.
var AllEvents = []string{
	EventGatewayStart,
	EventTurnStart,
	EventToolInvoked,
	EventTurnEnd,
	EventTurnError,
	EventGatewayStop,
}

// Payload is what a handler receives.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler reacts to an event. A returned error is logged and otherwise ignored.
type Handler func(ctx context.Context, p Payload) error

type entry struct {
	name string
	fn   Handler
}

// Manager holds handlers keyed by event. A nil *Manager is valid and drops
// every event.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]entry
	log      *logging.Logger
}

// NewManager creates an empty hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]entry),
		log:      log.Sub("hooks"),
	}
}

// On adds a named handler for event.
func (m *Manager) On(event, name string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], entry{name: name, fn: h})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes every handler registered under name for event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.handlers[event][:0:0]
	for _, e := range m.handlers[event] {
		if e.name != name {
			kept = append(kept, e)
		}
	}
	m.handlers[event] = kept
}

// Count returns the number of handlers for event.
func (m *Manager) Count(event string) int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

func (m *Manager) snapshot(event string) []entry {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]entry(nil), m.handlers[event]...)
}

// Emit runs the handlers for event in registration order and waits for them.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	p := Payload{Event: event, Data: data}
	for _, e := range m.snapshot(event) {
		m.run(ctx, e, p)
	}
}

// EmitAsync starts the handlers for event in the background and returns.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	p := Payload{Event: event, Data: data}
	for _, e := range m.snapshot(event) {
		go m.run(context.WithoutCancel(ctx), e, p)
	}
}

func (m *Manager) run(ctx context.Context, e entry, p Payload) {
	if err := e.fn(ctx, p); err != nil {
		m.log.Warn().Err(err).Str("event", p.Event).Str("handler", e.name).Msg("hook failed")
	}
}
