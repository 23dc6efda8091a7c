// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

// Package goaddon hosts binary addons as separate processes through
// HashiCorp's go-plugin system. The addon executable links
// pkg/addonsdk and declares its event subscriptions at load time; the
// host forwards deliveries over RPC and emits the addon's responses.
package goaddon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"

	"github.com/teleframe/teleframe/internal/addon"
	"github.com/teleframe/teleframe/internal/event"
	"github.com/teleframe/teleframe/pkg/addonsdk"
)

// Compile-time interface check.
var _ addon.Host = (*Host)(nil)

// PluginClient wraps the go-plugin client for testability.
type PluginClient interface {
	Client() (hashiplug.ClientProtocol, error)
	Kill()
}

// ClientFactory creates plugin clients for addon executables.
type ClientFactory interface {
	NewClient(execPath string) PluginClient
}

// DefaultClientFactory launches real addon processes.
type DefaultClientFactory struct{}

// NewClient creates a go-plugin client for an addon executable.
func (f *DefaultClientFactory) NewClient(execPath string) PluginClient {
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig: addonsdk.HandshakeConfig,
		Plugins:         addonsdk.PluginMap(nil),
		Cmd:             exec.Command(execPath), // #nosec G204 -- path resolved from a validated addon manifest
	})
}

// loadedAddon is one running addon process.
type loadedAddon struct {
	client  PluginClient
	handler addonsdk.Handler
}

// Host manages binary addon processes.
type Host struct {
	factory ClientFactory
	mu      sync.Mutex
	addons  map[string]*loadedAddon
	closed  bool
}

// NewHost creates a binary addon host.
func NewHost() *Host {
	return NewHostWithFactory(&DefaultClientFactory{})
}

// NewHostWithFactory creates a host with a custom client factory. Panics if
// factory is nil.
func NewHostWithFactory(factory ClientFactory) *Host {
	if factory == nil {
		panic("goaddon: factory cannot be nil")
	}
	return &Host{
		factory: factory,
		addons:  make(map[string]*loadedAddon),
	}
}

// Type reports the manifest type this host serves.
func (h *Host) Type() addon.Type { return addon.TypeBinary }

// Load launches the addon executable, asks it for its subscriptions, and
// registers one forwarding listener per subscribed event.
func (h *Host) Load(_ context.Context, manifest *addon.Manifest, dir string, base *addon.Base) error {
	errb := oops.In("goaddon").With("addon", manifest.Name)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errb.New("host is closed")
	}
	if _, exists := h.addons[manifest.Name]; exists {
		return errb.New("addon already loaded")
	}

	execPath := filepath.Join(dir, manifest.Binary.Executable)
	if _, err := os.Stat(execPath); err != nil {
		return errb.With("path", execPath).Hint("addon executable not found").Wrap(err)
	}

	client := h.factory.NewClient(execPath)
	proto, err := client.Client()
	if err != nil {
		client.Kill()
		return errb.Hint("failed to connect to addon process").Wrap(err)
	}

	raw, err := proto.Dispense(addonsdk.AddonPluginName)
	if err != nil {
		client.Kill()
		return errb.Hint("failed to dispense addon").Wrap(err)
	}
	handler, ok := raw.(addonsdk.Handler)
	if !ok {
		client.Kill()
		return errb.New("addon does not implement the handler protocol")
	}

	subs, err := handler.Subscriptions()
	if err != nil {
		client.Kill()
		return errb.Hint("failed to read subscriptions").Wrap(err)
	}
	for _, sub := range subs {
		name := event.Inbound(sub)
		base.RegisterListener(name, forwardingCallback(handler, base, name))
	}

	h.addons[manifest.Name] = &loadedAddon{client: client, handler: handler}
	return nil
}

// forwardingCallback delivers one event over RPC and emits whatever the
// addon asked for in response.
func forwardingCallback(handler addonsdk.Handler, base *addon.Base, name event.Inbound) addon.Callback {
	return func(args ...any) error {
		wireArgs := make([]string, len(args))
		for i, a := range args {
			wireArgs[i] = fmt.Sprint(a)
		}

		emits, err := handler.HandleEvent(string(name), wireArgs)
		if err != nil {
			return oops.In("goaddon").With("event", string(name)).Wrap(err)
		}
		for _, e := range emits {
			emitArgs := make([]any, len(e.Args))
			for i, a := range e.Args {
				emitArgs[i] = a
			}
			base.SendEvent(event.Outbound(e.Event), emitArgs...)
		}
		return nil
	}
}

// ConfigCtrl reports no control hook; binary addons configure themselves
// through their persisted configuration only.
func (h *Host) ConfigCtrl(*addon.Manifest, string) (addon.ConfigCtrl, bool) {
	return nil, false
}

// Addons returns the loaded binary addon names.
func (h *Host) Addons() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.addons))
	for name := range h.addons {
		names = append(names, name)
	}
	return names
}

// Close kills every addon process.
func (h *Host) Close(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	for _, a := range h.addons {
		a.client.Kill()
	}
	clear(h.addons)
	return nil
}
