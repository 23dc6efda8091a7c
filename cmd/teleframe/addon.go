// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teleframe/teleframe/addons/autoslide"
	"github.com/teleframe/teleframe/addons/starlogger"
	"github.com/teleframe/teleframe/internal/addon"
	addonlua "github.com/teleframe/teleframe/internal/addon/lua"
	"github.com/teleframe/teleframe/internal/config"
	"github.com/teleframe/teleframe/internal/control"
	"github.com/teleframe/teleframe/internal/event"
)

// NewAddonCmd creates the addon management command group.
func NewAddonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addon",
		Short: "Manage addons",
		Long:  `Inspect and change the persisted addon configuration.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "List configured addons and their state",
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newSurface(cmd)
				if err != nil {
					return err
				}
				return s.Status()
			},
		},
		&cobra.Command{
			Use:   "enable <name>",
			Short: "Enable an installed addon",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := newSurface(cmd)
				if err != nil {
					return err
				}
				return s.Enable(args[0])
			},
		},
		&cobra.Command{
			Use:   "disable <name>",
			Short: "Disable a configured addon",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := newSurface(cmd)
				if err != nil {
					return err
				}
				return s.Disable(args[0])
			},
		},
		&cobra.Command{
			Use:   "remove <name>",
			Short: "Remove an addon's configuration entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := newSurface(cmd)
				if err != nil {
					return err
				}
				return s.Remove(args[0])
			},
		},
		&cobra.Command{
			Use:   "config <name> <key> <value>",
			Short: "Change an addon's configuration",
			Args:  cobra.MinimumNArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := newSurface(cmd)
				if err != nil {
					return err
				}
				return s.Configure(args[0], args[1:])
			},
		},
	)

	return cmd
}

// newSurface builds the control surface over the persisted configuration.
// Script addons with configuration hooks are loaded on demand through a
// short-lived lua host.
func newSurface(cmd *cobra.Command) (*control.Surface, error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return nil, err
	}

	builtins := addon.NewBuiltins()
	builtins.MustRegister(starlogger.Entry())
	builtins.MustRegister(autoslide.Entry())

	return control.New(control.Options{
		Config:   cfg,
		Builtins: builtins,
		Resolver: scriptCtrlResolver(cmd.Context(), cfg, builtins, func() addon.Host { return addonlua.NewHost() }),
		Out:      cmd.OutOrStdout(),
		Logger:   slog.Default(),
	})
}

// scriptCtrlResolver loads the named script addon into a throwaway registry
// and asks its host for a configuration hook. Only invoked for addons
// without a builtin hook. The host is torn down once the hook has run.
func scriptCtrlResolver(ctx context.Context, cfg *config.Config, builtins *addon.Builtins, newHost func() addon.Host) control.CtrlResolver {
	return func(name string) (addon.ConfigCtrl, bool) {
		entry, ok := cfg.AddonConfig(name)
		if !ok || entry == nil {
			return nil, false
		}

		host := newHost()
		registry, err := addon.New(ctx, &addon.Guard{}, addon.Options{
			Logger:    slog.Default(),
			Emitter:   event.Discard(),
			Builtins:  builtins,
			AddonsDir: cfg.AddonsDir,
			Addons:    map[string]any{name: entry},
			Hosts:     []addon.Host{host},
		})
		if err != nil {
			_ = host.Close(ctx)
			return nil, false
		}
		if len(registry.Addons()) == 0 {
			_ = host.Close(ctx)
			return nil, false
		}

		manifest, err := addon.LoadManifest(cfg.AddonsDir, name)
		if err != nil {
			_ = host.Close(ctx)
			return nil, false
		}
		ctrl, ok := host.ConfigCtrl(manifest, "")
		if !ok {
			_ = host.Close(ctx)
			return nil, false
		}
		// The hook runs at most once per invocation; tear the script
		// runtime down as soon as it has.
		return func(cfg map[string]any, set func(key string, value any), args []string) (bool, error) {
			defer func() { _ = host.Close(ctx) }()
			return ctrl(cfg, set, args)
		}, true
	}
}
