// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package goaddon_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleframe/teleframe/internal/addon"
	"github.com/teleframe/teleframe/internal/addon/goaddon"
	"github.com/teleframe/teleframe/internal/event"
	"github.com/teleframe/teleframe/pkg/addonsdk"
)

// fakeHandler stands in for a running addon process.
type fakeHandler struct {
	subs       []string
	subsErr    error
	emits      []addonsdk.Emit
	handleErr  error
	deliveries [][]string
}

func (h *fakeHandler) Subscriptions() ([]string, error) {
	return h.subs, h.subsErr
}

func (h *fakeHandler) HandleEvent(name string, args []string) ([]addonsdk.Emit, error) {
	h.deliveries = append(h.deliveries, append([]string{name}, args...))
	return h.emits, h.handleErr
}

type fakeProtocol struct {
	handler     any
	dispenseErr error
}

func (p *fakeProtocol) Close() error { return nil }
func (p *fakeProtocol) Ping() error  { return nil }

func (p *fakeProtocol) Dispense(string) (any, error) {
	if p.dispenseErr != nil {
		return nil, p.dispenseErr
	}
	return p.handler, nil
}

type fakeClient struct {
	proto      hashiplug.ClientProtocol
	connectErr error
	killed     bool
}

func (c *fakeClient) Client() (hashiplug.ClientProtocol, error) {
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	return c.proto, nil
}

func (c *fakeClient) Kill() { c.killed = true }

type fakeFactory struct {
	client *fakeClient
	paths  []string
}

func (f *fakeFactory) NewClient(execPath string) goaddon.PluginClient {
	f.paths = append(f.paths, execPath)
	return f.client
}

// binaryEnv wires a fake addon process through a registry.
type binaryEnv struct {
	registry *addon.Registry
	bus      *event.Bus
	emitted  []event.Outbound
}

func loadBinary(t *testing.T, host *goaddon.Host) *binaryEnv {
	t.Helper()

	dir := t.TempDir()
	addonDir := filepath.Join(dir, "detector")
	require.NoError(t, os.MkdirAll(addonDir, 0o750))
	manifestYAML := "name: detector\nversion: 1.0.0\ntype: binary\nbinary:\n  executable: detector\n"
	require.NoError(t, os.WriteFile(filepath.Join(addonDir, "addon.yaml"), []byte(manifestYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(addonDir, "detector"), []byte("#!/bin/true"), 0o700))

	env := &binaryEnv{bus: event.NewBus()}
	env.bus.Notify(func(n event.Outbound, _ []any) {
		env.emitted = append(env.emitted, n)
	})

	reg, err := addon.New(context.Background(), &addon.Guard{}, addon.Options{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Emitter:   env.bus,
		Source:    env.bus,
		AddonsDir: dir,
		Hosts:     []addon.Host{host},
		Addons:    map[string]any{"detector": map[string]any{}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	env.registry = reg
	return env
}

func TestHost_LoadAndDispatch(t *testing.T) {
	handler := &fakeHandler{
		subs:  []string{"newImage"},
		emits: []addonsdk.Emit{{Event: "star", Args: []string{"3"}}},
	}
	client := &fakeClient{proto: &fakeProtocol{handler: handler}}
	host := goaddon.NewHostWithFactory(&fakeFactory{client: client})

	env := loadBinary(t, host)

	require.Equal(t, []string{"detector"}, env.registry.Addons())
	assert.Equal(t, []string{"detector"}, host.Addons())
	require.Equal(t, []event.Inbound{event.InNewImage}, env.registry.Subscriptions())

	env.registry.ExecuteEventCallbacks(event.InNewImage, "alice", 7)

	require.Len(t, handler.deliveries, 1)
	assert.Equal(t, []string{"newImage", "alice", "7"}, handler.deliveries[0])
	assert.Equal(t, []event.Outbound{event.OutStar}, env.emitted)
}

func TestHost_HandlerErrorIsolated(t *testing.T) {
	handler := &fakeHandler{
		subs:      []string{"paused"},
		handleErr: errors.New("process hiccup"),
	}
	client := &fakeClient{proto: &fakeProtocol{handler: handler}}
	host := goaddon.NewHostWithFactory(&fakeFactory{client: client})

	env := loadBinary(t, host)

	require.NotPanics(t, func() {
		env.registry.ExecuteEventCallbacks(event.InPaused, true)
	})
	assert.Empty(t, env.emitted)
}

func TestHost_LoadFailures(t *testing.T) {
	t.Run("connect failure kills process", func(t *testing.T) {
		client := &fakeClient{connectErr: errors.New("handshake refused")}
		host := goaddon.NewHostWithFactory(&fakeFactory{client: client})

		env := loadBinary(t, host)
		assert.Empty(t, env.registry.Addons())
		assert.True(t, client.killed)
	})

	t.Run("dispense failure kills process", func(t *testing.T) {
		client := &fakeClient{proto: &fakeProtocol{dispenseErr: errors.New("no such plugin")}}
		host := goaddon.NewHostWithFactory(&fakeFactory{client: client})

		env := loadBinary(t, host)
		assert.Empty(t, env.registry.Addons())
		assert.True(t, client.killed)
	})

	t.Run("wrong handler type kills process", func(t *testing.T) {
		client := &fakeClient{proto: &fakeProtocol{handler: "not a handler"}}
		host := goaddon.NewHostWithFactory(&fakeFactory{client: client})

		env := loadBinary(t, host)
		assert.Empty(t, env.registry.Addons())
		assert.True(t, client.killed)
	})

	t.Run("subscriptions failure kills process", func(t *testing.T) {
		handler := &fakeHandler{subsErr: errors.New("rpc gone")}
		client := &fakeClient{proto: &fakeProtocol{handler: handler}}
		host := goaddon.NewHostWithFactory(&fakeFactory{client: client})

		env := loadBinary(t, host)
		assert.Empty(t, env.registry.Addons())
		assert.True(t, client.killed)
	})
}

func TestHost_CloseKillsProcesses(t *testing.T) {
	handler := &fakeHandler{subs: []string{"paused"}}
	client := &fakeClient{proto: &fakeProtocol{handler: handler}}
	host := goaddon.NewHostWithFactory(&fakeFactory{client: client})

	loadBinary(t, host)

	require.NoError(t, host.Close(context.Background()))
	assert.True(t, client.killed)
	assert.Empty(t, host.Addons())
}

func TestHost_NoConfigCtrl(t *testing.T) {
	host := goaddon.NewHost()
	_, ok := host.ConfigCtrl(&addon.Manifest{Name: "detector"}, "")
	assert.False(t, ok)
}

func TestNewHostWithFactory_NilPanics(t *testing.T) {
	assert.Panics(t, func() { goaddon.NewHostWithFactory(nil) })
}
