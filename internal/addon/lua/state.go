// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

// Package lua hosts script addons on a sandboxed Lua runtime. Each addon
// gets one persistent state that lives from load to host shutdown, so
// scripts can keep counters and caches between event deliveries.
package lua

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// safeLibrary is a Lua library allowed inside the sandbox.
type safeLibrary struct {
	name string
	fn   lua.LGFunction
}

// defaultSafeLibraries lists the libraries scripts may use.
// Blocked entirely: os, io, debug, package.
func defaultSafeLibraries() []safeLibrary {
	return []safeLibrary{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// unsafeBaseFunctions are base-library functions removed after load because
// they reach the filesystem.
var unsafeBaseFunctions = []string{"dofile", "loadfile", "loadstring", "load"}

// StateFactory creates sandboxed Lua states.
type StateFactory struct {
	libraries []safeLibrary
}

// NewStateFactory creates a factory with the default sandbox.
func NewStateFactory() *StateFactory {
	return &StateFactory{libraries: defaultSafeLibraries()}
}

// NewState creates a fresh state with only the safe libraries loaded and
// the filesystem-reaching base functions removed.
//
// The ctx parameter is reserved for future cancellation support.
func (f *StateFactory) NewState(_ context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	for _, lib := range f.libraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("failed to open library %s: %w", lib.name, err)
		}
	}

	for _, fn := range unsafeBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}

	return L, nil
}
