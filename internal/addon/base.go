// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

// Package addon implements the addon registry: the base contract every
// addon instance satisfies, the loader that turns configuration entries into
// validated instances, and the router that fans inbound events out to addon
// callbacks.
package addon

import (
	"log/slog"
	"maps"

	"github.com/samber/oops"

	"github.com/teleframe/teleframe/internal/event"
	"github.com/teleframe/teleframe/internal/images"
	"github.com/teleframe/teleframe/pkg/errutil"
)

// Callback handles one inbound event delivery. A returned error is logged
// with the addon's identity and never propagates past the router.
type Callback func(args ...any) error

// Addon is satisfied by every loaded addon instance. Compiled-in addons get
// the contract by embedding the *Base handed to their constructor; the
// unexported method doubles as the loader's identity check.
type Addon interface {
	contractBase() *Base
}

// Base is the capability surface shared by every addon: identity, read-only
// access to the image collection, a scoped logger, the normalized per-addon
// configuration, listener registration, and the outbound send path.
type Base struct {
	name    string
	images  images.View
	logger  *slog.Logger
	emitter event.Emitter
	config  map[string]any

	listeners map[event.Inbound][]Callback
	order     []event.Inbound // first-registration order
}

// Compile-time contract check.
var _ Addon = (*Base)(nil)

// newBase is only called by the Registry during the load phase, which keeps
// the construction-order dependency (registry before addon) structural.
// The configuration is normalized here: addon defaults first, persisted
// values on top, the reserved `enabled` bookkeeping key removed.
func newBase(name string, images images.View, logger *slog.Logger, emitter event.Emitter, persisted, defaults map[string]any) *Base {
	cfg := make(map[string]any, len(defaults)+len(persisted))
	maps.Copy(cfg, defaults)
	maps.Copy(cfg, persisted)
	delete(cfg, enabledKey)

	return &Base{
		name:      name,
		images:    images,
		logger:    logger.With("addon", name),
		emitter:   emitter,
		config:    cfg,
		listeners: make(map[event.Inbound][]Callback),
	}
}

func (b *Base) contractBase() *Base { return b }

// Name returns the addon's display name.
func (b *Base) Name() string { return b.name }

// Images returns the shared image collection.
func (b *Base) Images() images.View { return b.images }

// Logger returns the addon-scoped logger.
func (b *Base) Logger() *slog.Logger { return b.logger }

// Config returns a copy of the normalized addon configuration.
func (b *Base) Config() map[string]any {
	out := make(map[string]any, len(b.config))
	maps.Copy(out, b.config)
	return out
}

// ConfigValue returns one configuration value.
func (b *Base) ConfigValue(key string) (any, bool) {
	v, ok := b.config[key]
	return v, ok
}

// RegisterListener appends callbacks to the listener list for an inbound
// event. Names outside the inbound vocabulary are logged and dropped.
func (b *Base) RegisterListener(name event.Inbound, cbs ...Callback) {
	if !name.Valid() {
		b.logger.Warn("ignoring listener for unknown inbound event", "event", string(name))
		return
	}
	for _, cb := range cbs {
		if cb == nil {
			continue
		}
		if _, ok := b.listeners[name]; !ok {
			b.order = append(b.order, name)
		}
		b.listeners[name] = append(b.listeners[name], cb)
	}
}

// RegisterListeners registers the same callbacks for several inbound events.
func (b *Base) RegisterListeners(names []event.Inbound, cbs ...Callback) {
	for _, name := range names {
		b.RegisterListener(name, cbs...)
	}
}

// SendEvent validates an outbound event name and forwards it to the shared
// emitter. Unknown names are logged and dropped; emitter failures are logged
// with the addon's identity. Neither surfaces to the addon.
func (b *Base) SendEvent(name event.Outbound, args ...any) {
	if !name.Valid() {
		b.logger.Warn("dropping unknown outbound event", "event", string(name))
		return
	}
	if err := b.emitter.Emit(name, args...); err != nil {
		errutil.LogError(b.logger, "failed to send event",
			oops.In("addon").Code("ADDON_SEND_FAILED").With("addon", b.name).With("event", string(name)).Wrap(err))
	}
}

// listenerEvents returns the inbound events this addon listens to, in
// first-registration order.
func (b *Base) listenerEvents() []event.Inbound {
	out := make([]event.Inbound, len(b.order))
	copy(out, b.order)
	return out
}

// callbacks returns the callback list for one inbound event.
func (b *Base) callbacks(name event.Inbound) []Callback {
	return b.listeners[name]
}
