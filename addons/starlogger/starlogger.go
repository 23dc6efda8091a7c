// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

// Package starlogger is a compiled-in addon that tracks starred images.
// It demonstrates the constructor style: a type wrapping the base contract
// with its own state.
package starlogger

import (
	"fmt"
	"strconv"

	"github.com/teleframe/teleframe/internal/addon"
	"github.com/teleframe/teleframe/internal/event"
)

// Entry declares the addon for the builtin registry.
func Entry() addon.Entry {
	return addon.Entry{
		Name:       "starlogger",
		New:        construct,
		ConfigCtrl: configCtrl,
		Defaults: map[string]any{
			"announce": false,
		},
	}
}

// Addon counts star and unstar events over the frame's lifetime.
type Addon struct {
	*addon.Base
	starred int
}

func construct(base *addon.Base) (addon.Addon, error) {
	a := &Addon{Base: base}
	a.RegisterListener(event.InStarImage, a.onStar)
	a.RegisterListener(event.InUnstarImage, a.onUnstar)
	return a, nil
}

func (a *Addon) onStar(args ...any) error {
	a.starred++
	a.Logger().Info("image starred", "session_total", a.starred, "args", args)
	if a.announce() {
		a.SendEvent(event.OutMessageBox, fmt.Sprintf("%d images starred", a.starred))
	}
	return nil
}

func (a *Addon) onUnstar(args ...any) error {
	if a.starred > 0 {
		a.starred--
	}
	a.Logger().Info("image unstarred", "session_total", a.starred, "args", args)
	return nil
}

func (a *Addon) announce() bool {
	v, ok := a.ConfigValue("announce")
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// configCtrl handles `config starlogger announce on|off`.
func configCtrl(cfg map[string]any, set func(key string, value any), args []string) (bool, error) {
	if len(args) < 2 || args[0] != "announce" {
		return false, fmt.Errorf("usage: announce on|off")
	}

	var want bool
	switch args[1] {
	case "on":
		want = true
	case "off":
		want = false
	default:
		parsed, err := strconv.ParseBool(args[1])
		if err != nil {
			return false, fmt.Errorf("usage: announce on|off")
		}
		want = parsed
	}

	if current, _ := cfg["announce"].(bool); current == want {
		return false, nil
	}
	set("announce", want)
	return true, nil
}
