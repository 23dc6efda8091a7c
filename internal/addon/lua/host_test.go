// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package lua_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleframe/teleframe/internal/addon"
	addonlua "github.com/teleframe/teleframe/internal/addon/lua"
	"github.com/teleframe/teleframe/internal/event"
)

// scriptEnv loads one lua addon through a registry so the script runs
// against a real base contract.
type scriptEnv struct {
	registry *addon.Registry
	host     *addonlua.Host
	bus      *event.Bus
	emitted  []emitted
	manifest *addon.Manifest
	dir      string
}

type emitted struct {
	name event.Outbound
	args []any
}

func loadScript(t *testing.T, name, script string) *scriptEnv {
	t.Helper()

	dir := t.TempDir()
	addonDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(addonDir, 0o750))

	manifestYAML := "name: " + name + "\nversion: 1.0.0\ntype: lua\nlua:\n  entry: main.lua\n"
	require.NoError(t, os.WriteFile(filepath.Join(addonDir, "addon.yaml"), []byte(manifestYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(addonDir, "main.lua"), []byte(script), 0o600))

	env := &scriptEnv{
		host: addonlua.NewHost(),
		bus:  event.NewBus(),
		dir:  addonDir,
	}
	env.bus.Notify(func(n event.Outbound, args []any) {
		env.emitted = append(env.emitted, emitted{name: n, args: args})
	})

	reg, err := addon.New(context.Background(), &addon.Guard{}, addon.Options{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Emitter:   env.bus,
		Source:    env.bus,
		AddonsDir: dir,
		Hosts:     []addon.Host{env.host},
		Addons:    map[string]any{name: map[string]any{"greeting": "hello"}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	env.registry = reg
	env.manifest = &addon.Manifest{
		Name:    name,
		Version: "1.0.0",
		Type:    addon.TypeLua,
		Lua:     &addon.LuaConfig{Entry: "main.lua"},
	}
	return env
}

func TestHost_LoadAndDispatch(t *testing.T) {
	env := loadScript(t, "echo", `
count = 0
teleframe.register_listener("newImage", function(sender, caption)
  count = count + 1
  teleframe.send_event("messageBox", "from " .. sender, count)
end)
`)

	require.Equal(t, []string{"echo"}, env.registry.Addons())
	assert.Equal(t, []string{"echo"}, env.host.Addons())
	require.Equal(t, []event.Inbound{event.InNewImage}, env.registry.Subscriptions())

	env.registry.ExecuteEventCallbacks(event.InNewImage, "alice", "beach")
	env.registry.ExecuteEventCallbacks(event.InNewImage, "bob", "sunset")

	// Script state persists across deliveries.
	require.Len(t, env.emitted, 2)
	assert.Equal(t, event.OutMessageBox, env.emitted[0].name)
	assert.Equal(t, []any{"from alice", float64(1)}, env.emitted[0].args)
	assert.Equal(t, []any{"from bob", float64(2)}, env.emitted[1].args)
}

func TestHost_ConfigVisibleToScript(t *testing.T) {
	env := loadScript(t, "greeter", `
teleframe.register_listener("renderer-ready", function()
  local cfg = teleframe.config()
  teleframe.send_event("messageBox", cfg.greeting)
end)
`)

	env.registry.ExecuteEventCallbacks(event.InRendererReady)

	require.Len(t, env.emitted, 1)
	assert.Equal(t, []any{"hello"}, env.emitted[0].args)
}

func TestHost_UnknownEventNamesDropped(t *testing.T) {
	env := loadScript(t, "noisy", `
teleframe.register_listener("no-such-inbound", function() end)
teleframe.register_listener("paused", function()
  teleframe.send_event("no-such-outbound")
end)
`)

	// The unknown inbound registration is dropped, the valid one kept.
	require.Equal(t, []event.Inbound{event.InPaused}, env.registry.Subscriptions())

	env.registry.ExecuteEventCallbacks(event.InPaused, true)
	assert.Empty(t, env.emitted, "unknown outbound names never reach the bus")
}

func TestHost_ScriptErrorsIsolated(t *testing.T) {
	env := loadScript(t, "flaky", `
teleframe.register_listener("paused", function()
  error("script bug")
end)
`)

	require.NotPanics(t, func() {
		env.registry.ExecuteEventCallbacks(event.InPaused, true)
	})
}

func TestHost_SandboxBlocksUnsafeLibraries(t *testing.T) {
	dir := t.TempDir()
	addonDir := filepath.Join(dir, "sneaky")
	require.NoError(t, os.MkdirAll(addonDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(addonDir, "main.lua"),
		[]byte(`os.execute("true")`), 0o600))
	manifestYAML := "name: sneaky\nversion: 1.0.0\ntype: lua\nlua:\n  entry: main.lua\n"
	require.NoError(t, os.WriteFile(filepath.Join(addonDir, "addon.yaml"), []byte(manifestYAML), 0o600))

	host := addonlua.NewHost()
	bus := event.NewBus()
	reg, err := addon.New(context.Background(), &addon.Guard{}, addon.Options{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Emitter:   bus,
		AddonsDir: dir,
		Hosts:     []addon.Host{host},
		Addons:    map[string]any{"sneaky": map[string]any{}},
	})
	require.NoError(t, err)

	assert.Empty(t, reg.Addons(), "script touching os must fail to load")
}

func TestHost_ConfigCtrl(t *testing.T) {
	env := loadScript(t, "tunable", `
teleframe.register_listener("paused", function() end)
function config_ctrl(cfg, set, args)
  if args[1] == "interval" then
    set("interval", tonumber(args[2]))
    return true
  end
  return false
end
`)

	ctrl, ok := env.host.ConfigCtrl(env.manifest, env.dir)
	require.True(t, ok)

	staged := map[string]any{}
	changed, err := ctrl(map[string]any{"greeting": "hello"},
		func(key string, value any) { staged[key] = value },
		[]string{"interval", "15"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, map[string]any{"interval": float64(15)}, staged)

	changed, err = ctrl(map[string]any{}, func(string, any) {}, []string{"unknown"})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestHost_ConfigCtrlAbsent(t *testing.T) {
	env := loadScript(t, "plain", `
teleframe.register_listener("paused", function() end)
`)

	_, ok := env.host.ConfigCtrl(env.manifest, env.dir)
	assert.False(t, ok)
}

func TestHost_LoadFailsAfterClose(t *testing.T) {
	host := addonlua.NewHost()
	require.NoError(t, host.Close(context.Background()))

	env := loadScript(t, "late", `teleframe.register_listener("paused", function() end)`)
	err := host.Load(context.Background(), env.manifest, env.dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}
