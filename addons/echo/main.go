// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

// Package main implements an example binary addon. It acknowledges every
// new image with an on-screen message, showing the minimal shape of an
// out-of-process addon.
//
// Build and install:
//
//	go build -o echo ./addons/echo
//	mkdir -p ~/.local/share/teleframe/addons/echo
//	cp echo addon.yaml ~/.local/share/teleframe/addons/echo/
package main

import (
	"fmt"

	"github.com/teleframe/teleframe/pkg/addonsdk"
)

type echo struct{}

func (echo) Subscriptions() ([]string, error) {
	return []string{"newImage"}, nil
}

func (echo) HandleEvent(name string, args []string) ([]addonsdk.Emit, error) {
	if name != "newImage" || len(args) == 0 {
		return nil, nil
	}
	return []addonsdk.Emit{
		{Event: "messageBox", Args: []string{fmt.Sprintf("new photo from %s", args[0])}},
	}, nil
}

func main() {
	addonsdk.Serve(echo{})
}
