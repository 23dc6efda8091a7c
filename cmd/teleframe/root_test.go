// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleframe/teleframe/internal/addon"
	addonlua "github.com/teleframe/teleframe/internal/addon/lua"
	"github.com/teleframe/teleframe/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "addon")
	assert.Contains(t, names, "gen-schema")
}

func TestGenSchema_Stdout(t *testing.T) {
	out, err := execute(t, "gen-schema", "--out", "-")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Contains(t, schema, "properties")
}

func TestGenSchema_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas", "addon.schema.json")

	out, err := execute(t, "gen-schema", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Generated")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "$schema")
}

func TestAddonStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teleframe.yaml")
	content := "addons:\n  starlogger:\n    enabled: true\n  weather:\n    enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	out, err := execute(t, "addon", "status", "--config", path)
	require.NoError(t, err)

	assert.Contains(t, out, "starlogger")
	assert.Contains(t, out, "enabled")
	assert.Contains(t, out, "weather")
	assert.Contains(t, out, "disabled")
}

func TestAddonEnableDisable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teleframe.yaml")
	content := "addons:\n  starlogger:\n    enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := execute(t, "addon", "disable", "starlogger", "--config", path)
	require.NoError(t, err)

	out, err := execute(t, "addon", "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "disabled")

	// autoslide is compiled in, so enabling creates its entry.
	_, err = execute(t, "addon", "enable", "autoslide", "--config", path)
	require.NoError(t, err)

	out, err = execute(t, "addon", "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "autoslide")
}

func TestAddonConfig_Builtin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teleframe.yaml")
	content := "addons:\n  starlogger:\n    enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := execute(t, "addon", "config", "starlogger", "announce", "on", "--config", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "announce: true")
}

// closeTrackingHost records whether the wrapped host has been closed.
type closeTrackingHost struct {
	addon.Host
	closed bool
}

func (h *closeTrackingHost) Close(ctx context.Context) error {
	h.closed = true
	return h.Host.Close(ctx)
}

func TestScriptCtrlResolver_ClosesHostAfterHook(t *testing.T) {
	dir := t.TempDir()
	addonsDir := filepath.Join(dir, "addons")
	weatherDir := filepath.Join(addonsDir, "weather")
	require.NoError(t, os.MkdirAll(weatherDir, 0o750))

	manifest := "name: weather\nversion: 1.0.0\ntype: lua\nlua:\n  entry: main.lua\n"
	require.NoError(t, os.WriteFile(filepath.Join(weatherDir, "addon.yaml"), []byte(manifest), 0o600))
	script := `
teleframe.register_listener("paused", function() end)
function config_ctrl(cfg, set, args)
  set(args[1], args[2])
  return true
end
`
	require.NoError(t, os.WriteFile(filepath.Join(weatherDir, "main.lua"), []byte(script), 0o600))

	path := filepath.Join(dir, "teleframe.yaml")
	content := "addonsDir: " + addonsDir + "\naddons:\n  weather:\n    enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	tracked := &closeTrackingHost{Host: addonlua.NewHost()}
	resolver := scriptCtrlResolver(context.Background(), cfg, addon.NewBuiltins(),
		func() addon.Host { return tracked })

	ctrl, ok := resolver("weather")
	require.True(t, ok)
	assert.False(t, tracked.closed, "script runtime must stay alive until the hook runs")

	staged := map[string]any{}
	changed, err := ctrl(map[string]any{}, func(key string, value any) { staged[key] = value },
		[]string{"city", "oslo"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "oslo", staged["city"])
	assert.True(t, tracked.closed, "script runtime must be torn down after the hook")
}

func TestAddonRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teleframe.yaml")
	content := "addons:\n  starlogger:\n    enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := execute(t, "addon", "remove", "starlogger", "--config", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "starlogger")
}
