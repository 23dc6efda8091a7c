// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package event

import (
	"sync"

	"github.com/samber/oops"
)

// Handler receives the arguments of one inbound event delivery.
type Handler func(args ...any)

// Sink receives outbound events forwarded by the bus, typically a bridge to
// the presentation layer.
type Sink func(name Outbound, args []any)

// Source delivers inbound events to registered handlers.
type Source interface {
	Subscribe(name Inbound, h Handler)
}

// Emitter forwards outbound events toward the presentation layer.
type Emitter interface {
	Emit(name Outbound, args ...any) error
}

// Bus is the in-process event bus. It implements both Source and Emitter:
// inbound events injected with Inject are delivered synchronously to every
// subscribed handler, and outbound events are forwarded to every registered
// sink on the caller's goroutine.
//
// Handlers and sinks are registered during start-up and only read afterwards,
// matching the host's single-threaded load phase. The lock exists so tests
// and late host wiring remain safe.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Inbound][]Handler
	sinks    []Sink
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Inbound][]Handler),
	}
}

// Subscribe registers a handler for an inbound event name.
func (b *Bus) Subscribe(name Inbound, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Notify registers a sink for outbound events.
func (b *Bus) Notify(s Sink) {
	if s == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Inject delivers an inbound event to all subscribed handlers, synchronously
// and in subscription order.
func (b *Bus) Inject(name Inbound, args ...any) {
	b.mu.RLock()
	handlers := b.handlers[name]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(args...)
	}
}

// Discard returns an Emitter that validates names and drops everything.
// Useful for tooling that loads addons without a presentation layer.
func Discard() Emitter { return discardEmitter{} }

type discardEmitter struct{}

func (discardEmitter) Emit(name Outbound, _ ...any) error {
	if !name.Valid() {
		return oops.In("event").Code("EVENT_UNKNOWN").With("event", string(name)).New("unknown outbound event")
	}
	return nil
}

// Emit forwards an outbound event to every sink. Names outside the outbound
// vocabulary are rejected.
func (b *Bus) Emit(name Outbound, args ...any) error {
	if !name.Valid() {
		return oops.In("event").Code("EVENT_UNKNOWN").With("event", string(name)).New("unknown outbound event")
	}

	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()

	for _, s := range sinks {
		s(name, args)
	}
	return nil
}
