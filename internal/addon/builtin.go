// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package addon

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/oops"
)

// Constructor builds a constructor-style addon around the supplied Base.
// The returned value must wrap that same Base; the loader verifies this.
type Constructor func(base *Base) (Addon, error)

// InitFunc initializes a function-style addon directly on the Base, so the
// addon can call RegisterListener and SendEvent without declaring a type.
type InitFunc func(base *Base) error

// ConfigCtrl customizes the control surface's `config` command for an addon.
// It receives the addon's current persisted configuration, a setter that
// stages a key/value pair, and the raw trailing command arguments. It reports
// whether persisted state changed.
type ConfigCtrl func(cfg map[string]any, set func(key string, value any), args []string) (bool, error)

// Entry declares a compiled-in addon. Exactly one of New or Init must be
// set; this is the discriminated two-style construction contract.
type Entry struct {
	Name       string
	New        Constructor
	Init       InitFunc
	ConfigCtrl ConfigCtrl
	Defaults   map[string]any
}

// validate checks the declaration before registration.
func (e Entry) validate() error {
	if e.Name == "" {
		return oops.In("addon").Code("ADDON_DECLARATION").New("builtin entry has no name")
	}
	if e.Name != SanitizeName(e.Name) {
		return oops.In("addon").Code("ADDON_DECLARATION").With("addon", e.Name).New("builtin name contains reserved characters")
	}
	if (e.New == nil) == (e.Init == nil) {
		return oops.In("addon").Code("ADDON_DECLARATION").With("addon", e.Name).New("builtin entry must set exactly one of New or Init")
	}
	return nil
}

// Builtins is the registry of compiled-in addon factories, keyed by name.
// It is populated by static linkage from the host's composition root.
type Builtins struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewBuiltins creates an empty factory registry.
func NewBuiltins() *Builtins {
	return &Builtins{entries: make(map[string]Entry)}
}

// Register adds a compiled-in addon declaration. Duplicate names and
// malformed entries are declaration errors.
func (r *Builtins) Register(e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.Name]; exists {
		return oops.In("addon").Code("ADDON_DECLARATION").With("addon", e.Name).New("builtin already registered")
	}
	r.entries[e.Name] = e
	return nil
}

// MustRegister is Register that panics on declaration errors. Meant for the
// composition root, where a bad declaration is a programming error.
func (r *Builtins) MustRegister(e Entry) {
	if err := r.Register(e); err != nil {
		panic(fmt.Sprintf("addon: %v", err))
	}
}

// Lookup returns a builtin declaration by name.
func (r *Builtins) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Names returns all registered builtin names, sorted.
func (r *Builtins) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// construct runs one builtin entry's construction path against a Base. The
// entry's shape decides the adapter; panics inside addon code are converted
// to construction failures.
func construct(e Entry, base *Base) (inst Addon, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			inst = nil
			err = oops.In("addon").Code("ADDON_CONSTRUCTION").With("addon", e.Name).Errorf("addon panicked during construction: %v", rec)
		}
	}()

	switch {
	case e.New != nil:
		built, newErr := e.New(base)
		if newErr != nil {
			return nil, oops.In("addon").Code("ADDON_CONSTRUCTION").With("addon", e.Name).Wrap(newErr)
		}
		if built == nil || built.contractBase() != base {
			return nil, oops.In("addon").Code("ADDON_DECLARATION").With("addon", e.Name).New("constructed addon does not wrap its base contract")
		}
		return built, nil
	case e.Init != nil:
		if initErr := e.Init(base); initErr != nil {
			return nil, oops.In("addon").Code("ADDON_CONSTRUCTION").With("addon", e.Name).Wrap(initErr)
		}
		return base, nil
	default:
		return nil, oops.In("addon").Code("ADDON_DECLARATION").With("addon", e.Name).New("builtin entry is not constructible")
	}
}
