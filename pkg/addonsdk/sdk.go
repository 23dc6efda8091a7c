// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

// Package addonsdk is the public SDK for binary addons. An addon process
// implements Handler and calls Serve from its main; the frame host launches
// the executable and routes events to it over go-plugin's net/rpc protocol.
package addonsdk

import (
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"
)

// HandshakeConfig is shared between host and addon processes. Both sides
// must use this exact configuration.
var HandshakeConfig = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "TELEFRAME_ADDON",
	MagicCookieValue: "teleframe-v1",
}

// AddonPluginName is the key addons are dispensed under.
const AddonPluginName = "addon"

// Emit is an outbound event an addon asks the frame to perform in response
// to a delivery.
type Emit struct {
	Event string
	Args  []string
}

// Handler is implemented by the addon process.
type Handler interface {
	// Subscriptions returns the inbound event names the addon wants
	// delivered. It is called once at load time.
	Subscriptions() ([]string, error)
	// HandleEvent processes one delivery and returns outbound events to
	// emit on the addon's behalf.
	HandleEvent(name string, args []string) ([]Emit, error)
}

// HandleEventRequest is the wire request for one event delivery.
type HandleEventRequest struct {
	Name string
	Args []string
}

// HandleEventResponse is the wire response for one event delivery.
type HandleEventResponse struct {
	Emits []Emit
}

// rpcServer serves a Handler inside the addon process.
type rpcServer struct {
	impl Handler
}

func (s *rpcServer) Subscriptions(_ struct{}, resp *[]string) error {
	subs, err := s.impl.Subscriptions()
	if err != nil {
		return err
	}
	*resp = subs
	return nil
}

func (s *rpcServer) HandleEvent(req HandleEventRequest, resp *HandleEventResponse) error {
	emits, err := s.impl.HandleEvent(req.Name, req.Args)
	if err != nil {
		return err
	}
	resp.Emits = emits
	return nil
}

// rpcClient is the host-side Handler backed by the addon process.
type rpcClient struct {
	client *rpc.Client
}

func (c *rpcClient) Subscriptions() ([]string, error) {
	var resp []string
	if err := c.client.Call("Plugin.Subscriptions", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *rpcClient) HandleEvent(name string, args []string) ([]Emit, error) {
	var resp HandleEventResponse
	if err := c.client.Call("Plugin.HandleEvent", HandleEventRequest{Name: name, Args: args}, &resp); err != nil {
		return nil, err
	}
	return resp.Emits, nil
}

// AddonPlugin adapts a Handler to go-plugin. The host leaves Impl nil and
// only ever uses the client side.
type AddonPlugin struct {
	Impl Handler
}

// Server returns the addon-side RPC server.
func (p *AddonPlugin) Server(*goplugin.MuxBroker) (any, error) {
	return &rpcServer{impl: p.Impl}, nil
}

// Client returns the host-side Handler.
func (p *AddonPlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (any, error) {
	return &rpcClient{client: c}, nil
}

// PluginMap builds the dispense map for a handler. Hosts pass nil.
func PluginMap(h Handler) map[string]goplugin.Plugin {
	return map[string]goplugin.Plugin{
		AddonPluginName: &AddonPlugin{Impl: h},
	}
}

// Serve runs the addon's side of the protocol. It blocks until the host
// disconnects. Call it from the addon executable's main.
func Serve(h Handler) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap(h),
	})
}
