// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

// Package autoslide is a compiled-in addon that keeps the slideshow moving.
// It demonstrates the function style: no type of its own, all behavior is
// registered directly on the base contract.
package autoslide

import (
	"github.com/teleframe/teleframe/internal/addon"
	"github.com/teleframe/teleframe/internal/event"
)

// Entry declares the addon for the builtin registry.
func Entry() addon.Entry {
	return addon.Entry{
		Name: "autoslide",
		Init: setup,
		Defaults: map[string]any{
			"jumpToNew": true,
		},
	}
}

func setup(base *addon.Base) error {
	base.RegisterListener(event.InTeleFrameReady, func(...any) error {
		base.SendEvent(event.OutPlay)
		return nil
	})

	base.RegisterListener(event.InNewImage, func(args ...any) error {
		if jump, _ := configBool(base, "jumpToNew"); jump {
			base.SendEvent(event.OutNewest)
		}
		return nil
	})

	base.RegisterListener(event.InImagesLoaded, func(...any) error {
		if view := base.Images(); view != nil {
			base.Logger().Info("collection ready", "images", view.Count())
		}
		return nil
	})

	return nil
}

func configBool(base *addon.Base, key string) (bool, bool) {
	v, ok := base.ConfigValue(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
