// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package addon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/teleframe/teleframe/internal/event"
	"github.com/teleframe/teleframe/internal/images"
	"github.com/teleframe/teleframe/pkg/errutil"
)

// ReservedName cannot be used as an addon name; the registry claims it.
const ReservedName = "registry"

// enabledKey is the reserved bookkeeping key in persisted addon config.
const enabledKey = "enabled"

// ManifestFile is the per-addon manifest filename.
const ManifestFile = "addon.yaml"

// Guard enforces at-most-one Registry per composition root. The host owns
// the guard and passes it to New; a second New against the same guard fails
// while the first registry stays usable. There is no hidden package-level
// registry to look up.
type Guard struct {
	used atomic.Bool
}

// Options carries the shared resources the registry hands to addons.
type Options struct {
	// Images is the shared image collection (referenced, not owned).
	Images images.View
	// Logger is the host logger; per-addon loggers are scoped from it.
	// Defaults to slog.Default().
	Logger *slog.Logger
	// Emitter is the outbound event path (referenced, not owned).
	Emitter event.Emitter
	// Source is the inbound event source handlers are installed on.
	Source event.Source
	// Builtins holds the compiled-in addon factories.
	Builtins *Builtins
	// AddonsDir is where script and binary addon directories live.
	// Empty disables directory resolution.
	AddonsDir string
	// Addons maps configured addon names to their raw persisted
	// configuration entries.
	Addons map[string]any
	// Hosts load script/binary addons, keyed by their manifest type.
	Hosts []Host
	// Metrics is optional router instrumentation.
	Metrics *Metrics
}

// loadedAddon pairs an instance with its base for dispatch bookkeeping.
type loadedAddon struct {
	name string
	inst Addon
	base *Base
}

// Registry loads addons and routes events between them and the host. All
// mutation happens during New; afterwards the registry is read-only and
// event dispatch needs no locking.
type Registry struct {
	opts    Options
	logger  *slog.Logger
	addons  []loadedAddon
	order   []event.Inbound
	subset  map[event.Inbound]struct{}
	hosts   map[Type]Host
	metrics *Metrics
}

// New creates the process's addon registry and synchronously loads every
// configured addon. A second call against the same guard fails with
// ADDON_SINGLETON. Individual addon failures are logged and skipped; they
// never abort construction.
func New(ctx context.Context, guard *Guard, opts Options) (*Registry, error) {
	if guard == nil {
		return nil, oops.In("addon").Code("ADDON_SINGLETON").New("registry guard is required")
	}
	if !guard.used.CompareAndSwap(false, true) {
		return nil, oops.In("addon").Code("ADDON_SINGLETON").New("registry already constructed for this guard")
	}
	if opts.Emitter == nil {
		return nil, oops.In("addon").Code("ADDON_INIT").New("emitter is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := &Registry{
		opts:    opts,
		logger:  opts.Logger.With("component", "addon-registry"),
		subset:  make(map[event.Inbound]struct{}),
		hosts:   make(map[Type]Host, len(opts.Hosts)),
		metrics: opts.Metrics,
	}
	for _, h := range opts.Hosts {
		r.hosts[h.Type()] = h
	}

	r.load(ctx)

	if r.metrics != nil {
		r.metrics.AddonsLoaded.Set(float64(len(r.addons)))
	}

	return r, nil
}

// load walks the configured addon entries in stable name order and loads
// each one, isolating failures per addon.
func (r *Registry) load(ctx context.Context) {
	names := make([]string, 0, len(r.opts.Addons))
	for name := range r.opts.Addons {
		names = append(names, name)
	}
	sort.Strings(names)

	var loaded, skipped int
	for _, raw := range names {
		name := SanitizeName(raw)
		if name != raw {
			r.logger.Warn("sanitized addon name", "configured", raw, "using", name)
		}

		if err := r.loadOne(ctx, name, r.opts.Addons[raw]); err != nil {
			errutil.LogWarn(r.logger, "skipping addon", err)
			skipped++
			continue
		}
		loaded++
	}

	r.logger.Info("addon load complete", "loaded", loaded, "skipped", skipped)
}

// loadOne loads a single configured addon. Every failure path returns an
// error for the caller to log; none of them aborts the load sequence.
func (r *Registry) loadOne(ctx context.Context, name string, rawCfg any) error {
	errb := oops.In("addon").With("addon", name)

	if name == "" {
		return errb.Code("ADDON_DECLARATION").New("addon name is empty after sanitizing")
	}
	if name == ReservedName {
		return errb.Code("ADDON_DECLARATION").New("addon name is reserved")
	}

	cfg, ok := rawCfg.(map[string]any)
	if !ok {
		return errb.Code("ADDON_DECLARATION").New("addon configuration is not a mapping")
	}
	if enabled, present := cfg[enabledKey].(bool); present && !enabled {
		return errb.Code("ADDON_DISABLED").New("addon is disabled")
	}

	// Builtin factories win over directory resolution.
	if r.opts.Builtins != nil {
		if entry, found := r.opts.Builtins.Lookup(name); found {
			return r.loadBuiltin(name, entry, cfg)
		}
	}

	return r.loadFromDir(ctx, name, cfg)
}

// loadBuiltin constructs a compiled-in addon through its declared adapter.
func (r *Registry) loadBuiltin(name string, entry Entry, cfg map[string]any) error {
	base := r.newBase(name, cfg, entry.Defaults)

	inst, err := construct(entry, base)
	if err != nil {
		return err
	}

	r.admit(name, inst, base)
	r.logger.Info("loaded addon", "addon", name, "kind", "builtin", "events", len(base.listenerEvents()))
	return nil
}

// loadFromDir resolves an addon implementation from its conventional
// directory and hands it to the host for its manifest type.
func (r *Registry) loadFromDir(ctx context.Context, name string, cfg map[string]any) error {
	errb := oops.In("addon").With("addon", name)

	if r.opts.AddonsDir == "" {
		return errb.Code("ADDON_DECLARATION").New("no builtin registered and no addons directory configured")
	}

	dir := filepath.Join(r.opts.AddonsDir, name)
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return errb.Code("ADDON_DECLARATION").With("dir", dir).Hint("missing addon.yaml").Wrap(err)
	}

	if err := ValidateSchema(data); err != nil {
		return errb.Code("ADDON_DECLARATION").With("dir", dir).Wrap(err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return errb.Code("ADDON_DECLARATION").With("dir", dir).Wrap(err)
	}
	if err := manifest.CheckAPI(); err != nil {
		return errb.Code("ADDON_DECLARATION").Wrap(err)
	}

	host, ok := r.hosts[manifest.Type]
	if !ok {
		return errb.Code("ADDON_DECLARATION").With("type", string(manifest.Type)).New("no host for addon type")
	}

	base := r.newBase(name, cfg, nil)
	if err := host.Load(ctx, manifest, dir, base); err != nil {
		return errb.Code("ADDON_CONSTRUCTION").Wrap(err)
	}

	r.admit(name, base, base)
	r.logger.Info("loaded addon", "addon", name, "kind", string(manifest.Type), "version", manifest.Version, "events", len(base.listenerEvents()))
	return nil
}

// newBase builds the capability surface for one addon.
func (r *Registry) newBase(name string, cfg, defaults map[string]any) *Base {
	return newBase(name, r.opts.Images, r.opts.Logger, r.opts.Emitter, cfg, defaults)
}

// admit appends a loaded addon and merges its listener interests into the
// subscription set, preserving first-registrant order.
func (r *Registry) admit(name string, inst Addon, base *Base) {
	r.addons = append(r.addons, loadedAddon{name: name, inst: inst, base: base})
	for _, ev := range base.listenerEvents() {
		if _, seen := r.subset[ev]; seen {
			continue
		}
		r.subset[ev] = struct{}{}
		r.order = append(r.order, ev)
	}
}

// Activate installs one handler per subscribed event on the inbound source.
// Events outside the inbound vocabulary are logged and skipped, never
// installed.
func (r *Registry) Activate() error {
	if r.opts.Source == nil {
		return oops.In("addon").Code("ADDON_INIT").New("inbound event source is required")
	}

	for _, name := range r.order {
		if !name.Valid() {
			r.logger.Warn("not subscribing unknown inbound event", "event", string(name))
			continue
		}
		ev := name
		r.opts.Source.Subscribe(ev, func(args ...any) {
			r.ExecuteEventCallbacks(ev, args...)
		})
	}

	r.logger.Info("event routing active", "subscriptions", len(r.order))
	return nil
}

// ExecuteEventCallbacks fans one inbound event out to every addon that
// registered for it, in load order, callbacks in registration order. It is
// a no-op for events nothing subscribed to. Host code may call this
// directly to inject events synchronously. A failing addon never stops
// dispatch to the others.
func (r *Registry) ExecuteEventCallbacks(name event.Inbound, args ...any) {
	if _, subscribed := r.subset[name]; !subscribed {
		return
	}

	if r.metrics != nil {
		r.metrics.EventsDispatched.WithLabelValues(string(name)).Inc()
	}

	for i := range r.addons {
		a := &r.addons[i]
		cbs := a.base.callbacks(name)
		if len(cbs) == 0 {
			continue
		}
		r.dispatchTo(a, name, cbs, args)
	}
}

// dispatchTo runs one addon's callback batch. A panic abandons the rest of
// that addon's batch; an error only skips to the next callback. Either way
// the failure is logged with the addon's identity and dispatch moves on.
func (r *Registry) dispatchTo(a *loadedAddon, name event.Inbound, cbs []Callback, args []any) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.metrics != nil {
				r.metrics.CallbackFailures.WithLabelValues(a.name).Inc()
			}
			r.logger.Error("addon callback panicked",
				"addon", a.name,
				"event", string(name),
				"panic", rec)
		}
	}()

	for _, cb := range cbs {
		if err := cb(args...); err != nil {
			if r.metrics != nil {
				r.metrics.CallbackFailures.WithLabelValues(a.name).Inc()
			}
			errutil.LogError(a.base.logger, "addon callback failed",
				oops.In("addon").Code("ADDON_CALLBACK").With("addon", a.name).With("event", string(name)).Wrap(err))
		}
	}
}

// Addons returns the loaded addon names in load order.
func (r *Registry) Addons() []string {
	names := make([]string, len(r.addons))
	for i, a := range r.addons {
		names[i] = a.name
	}
	return names
}

// Subscriptions returns the subscribed inbound events in first-registrant
// order.
func (r *Registry) Subscriptions() []event.Inbound {
	out := make([]event.Inbound, len(r.order))
	copy(out, r.order)
	return out
}

// Close shuts down every addon host. The registry itself has no teardown;
// it lives for the process lifetime.
func (r *Registry) Close(ctx context.Context) error {
	var errs []error
	for _, h := range r.hosts {
		if err := h.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return oops.In("addon").Code("ADDON_CLOSE").Wrap(errors.Join(errs...))
	}
	return nil
}
