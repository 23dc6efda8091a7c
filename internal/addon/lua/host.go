// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package lua

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/teleframe/teleframe/internal/addon"
	"github.com/teleframe/teleframe/internal/event"
)

// Compile-time interface check.
var _ addon.Host = (*Host)(nil)

// scriptAddon is one loaded script with its persistent state. The mutex
// serializes all entries into the state: event callbacks, config_ctrl, and
// shutdown.
type scriptAddon struct {
	mu    sync.Mutex
	state *lua.LState
	base  *addon.Base
}

// Host runs lua-type addons.
type Host struct {
	factory *StateFactory
	mu      sync.RWMutex
	addons  map[string]*scriptAddon
	closed  bool
}

// NewHost creates a Lua addon host.
func NewHost() *Host {
	return &Host{
		factory: NewStateFactory(),
		addons:  make(map[string]*scriptAddon),
	}
}

// Type reports the manifest type this host serves.
func (h *Host) Type() addon.Type { return addon.TypeLua }

// Load reads the addon's entry script, runs it in a fresh sandboxed state,
// and keeps the state alive for event delivery. The script registers its
// interests during this run through the teleframe.* host functions.
func (h *Host) Load(ctx context.Context, manifest *addon.Manifest, dir string, base *addon.Base) error {
	errb := oops.In("lua").With("addon", manifest.Name)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errb.New("host is closed")
	}
	if _, exists := h.addons[manifest.Name]; exists {
		return errb.New("addon already loaded")
	}

	entryPath := filepath.Join(dir, manifest.Lua.Entry)
	code, err := os.ReadFile(filepath.Clean(entryPath))
	if err != nil {
		return errb.With("path", entryPath).Hint("failed to read entry file").Wrap(err)
	}

	state, err := h.factory.NewState(ctx)
	if err != nil {
		return errb.Hint("failed to create state").Wrap(err)
	}

	sa := &scriptAddon{state: state, base: base}
	h.registerHostFunctions(sa)

	if err := state.DoString(string(code)); err != nil {
		state.Close()
		return errb.With("entry", manifest.Lua.Entry).Hint("script failed to run").Wrap(err)
	}

	h.addons[manifest.Name] = sa
	return nil
}

// ConfigCtrl returns an adapter for the script's config_ctrl global, if the
// loaded script defines one.
func (h *Host) ConfigCtrl(manifest *addon.Manifest, _ string) (addon.ConfigCtrl, bool) {
	h.mu.RLock()
	sa, ok := h.addons[manifest.Name]
	h.mu.RUnlock()
	if !ok {
		return nil, false
	}

	sa.mu.Lock()
	fn := sa.state.GetGlobal("config_ctrl")
	sa.mu.Unlock()
	if fn.Type() != lua.LTFunction {
		return nil, false
	}

	return func(cfg map[string]any, set func(key string, value any), args []string) (bool, error) {
		return sa.callConfigCtrl(cfg, set, args)
	}, true
}

// Addons returns the loaded script addon names.
func (h *Host) Addons() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.addons))
	for name := range h.addons {
		names = append(names, name)
	}
	return names
}

// Close shuts down every script state.
func (h *Host) Close(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	for _, sa := range h.addons {
		sa.mu.Lock()
		sa.state.Close()
		sa.mu.Unlock()
	}
	h.addons = nil
	return nil
}

// registerHostFunctions installs the teleframe.* API into the script state.
func (h *Host) registerHostFunctions(sa *scriptAddon) {
	L := sa.state
	mod := L.NewTable()

	L.SetField(mod, "register_listener", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		fn := L.CheckFunction(2)
		sa.base.RegisterListener(event.Inbound(name), sa.callbackFor(fn))
		return 0
	}))

	L.SetField(mod, "send_event", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		args := make([]any, 0, L.GetTop()-1)
		for i := 2; i <= L.GetTop(); i++ {
			args = append(args, luaToGo(L.Get(i)))
		}
		sa.base.SendEvent(event.Outbound(name), args...)
		return 0
	}))

	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		level := L.CheckString(1)
		msg := L.CheckString(2)
		logger := sa.base.Logger()
		switch level {
		case "debug":
			logger.Debug(msg)
		case "warn":
			logger.Warn(msg)
		case "error":
			logger.Error(msg)
		default:
			logger.Info(msg)
		}
		return 0
	}))

	L.SetField(mod, "config", L.NewFunction(func(L *lua.LState) int {
		L.Push(goToLua(L, sa.base.Config()))
		return 1
	}))

	L.SetField(mod, "image_count", L.NewFunction(func(L *lua.LState) int {
		count := 0
		if view := sa.base.Images(); view != nil {
			count = view.Count()
		}
		L.Push(lua.LNumber(count))
		return 1
	}))

	L.SetGlobal("teleframe", mod)
}

// callbackFor wraps a Lua function as an event callback against the
// addon's persistent state.
func (sa *scriptAddon) callbackFor(fn *lua.LFunction) addon.Callback {
	return func(args ...any) error {
		sa.mu.Lock()
		defer sa.mu.Unlock()

		L := sa.state
		lvals := make([]lua.LValue, len(args))
		for i, a := range args {
			lvals[i] = goToLua(L, a)
		}
		if err := L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}, lvals...); err != nil {
			return oops.In("lua").With("addon", sa.base.Name()).Wrap(err)
		}
		return nil
	}
}

// callConfigCtrl invokes the script's config_ctrl(cfg, set, args) function.
// The function returns a truthy value when it changed persisted state.
func (sa *scriptAddon) callConfigCtrl(cfg map[string]any, set func(key string, value any), args []string) (bool, error) {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	L := sa.state
	fn := L.GetGlobal("config_ctrl")
	if fn.Type() != lua.LTFunction {
		return false, errors.New("config_ctrl is not a function")
	}

	setter := L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		set(key, luaToGo(L.Get(2)))
		return 0
	})

	argTable := L.NewTable()
	for _, a := range args {
		argTable.Append(lua.LString(a))
	}

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, goToLua(L, cfg), setter, argTable); err != nil {
		return false, oops.In("lua").With("addon", sa.base.Name()).Hint("config_ctrl failed").Wrap(err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}

// goToLua converts a configuration or event value into a Lua value.
func goToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			L.SetField(t, k, goToLua(L, item))
		}
		return t
	case []any:
		t := L.NewTable()
		for _, item := range val {
			t.Append(goToLua(L, item))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// luaToGo converts a Lua value back into a plain Go value. Tables become
// maps keyed by their string form; sequential tables become slices.
func luaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if val.Len() > 0 {
			out := make([]any, 0, val.Len())
			for i := 1; i <= val.Len(); i++ {
				out = append(out, luaToGo(val.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		val.ForEach(func(k, item lua.LValue) {
			out[k.String()] = luaToGo(item)
		})
		return out
	default:
		return v.String()
	}
}
