// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

// Package control implements the addon management commands: status, enable,
// disable, remove, and per-addon configuration. All commands operate on the
// persisted configuration file and write it back only when something
// actually changed.
package control

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/samber/oops"

	"github.com/teleframe/teleframe/internal/addon"
	"github.com/teleframe/teleframe/internal/config"
)

// CtrlResolver finds the configuration hook for a non-builtin addon, if its
// runtime defines one.
type CtrlResolver func(name string) (addon.ConfigCtrl, bool)

// Surface is the addon control surface.
type Surface struct {
	cfg      *config.Config
	builtins *addon.Builtins
	resolver CtrlResolver
	out      io.Writer
	logger   *slog.Logger
}

// Options configures a Surface.
type Options struct {
	// Config is the persisted configuration the commands act on. Required.
	Config *config.Config
	// Builtins resolves compiled-in addons. Optional.
	Builtins *addon.Builtins
	// Resolver finds configuration hooks for directory addons. Optional.
	Resolver CtrlResolver
	// Out receives command output. Defaults to os.Stdout.
	Out io.Writer
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New creates a control surface.
func New(opts Options) (*Surface, error) {
	if opts.Config == nil {
		return nil, oops.In("control").Code("CONTROL_INVALID").New("configuration is required")
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Surface{
		cfg:      opts.Config,
		builtins: opts.Builtins,
		resolver: opts.Resolver,
		out:      opts.Out,
		logger:   opts.Logger,
	}, nil
}

// Status prints one line per configured addon: name, enabled state, and
// whether an implementation is installed.
func (s *Surface) Status() error {
	names := make([]string, 0, len(s.cfg.Addons))
	for name := range s.cfg.Addons {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(s.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tINSTALLED")
	for _, name := range names {
		state := "enabled"
		if cfg, _ := s.cfg.AddonConfig(name); cfg != nil {
			if enabled, ok := cfg[enabledKey].(bool); ok && !enabled {
				state = "disabled"
			}
		}
		installed := "no"
		if s.installed(name) {
			installed = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, state, installed)
	}
	return w.Flush()
}

// Enable marks an installed addon enabled, creating its configuration entry
// when absent. It writes the file only when the persisted state changed.
func (s *Surface) Enable(name string) error {
	name, err := s.checkName(name)
	if err != nil {
		return err
	}
	if !s.installed(name) {
		return oops.In("control").Code("CONTROL_NOT_INSTALLED").With("addon", name).New("addon is not installed")
	}

	cfg, present := s.cfg.AddonConfig(name)
	if !present {
		s.cfg.SetAddon(name, map[string]any{enabledKey: true})
		return s.save(name, "enabled")
	}
	if cfg == nil {
		return oops.In("control").Code("CONTROL_INVALID").With("addon", name).New("addon configuration is not a mapping")
	}
	if enabled, ok := cfg[enabledKey].(bool); ok && enabled {
		fmt.Fprintf(s.out, "%s is already enabled\n", name)
		return nil
	}
	if _, ok := cfg[enabledKey]; !ok {
		// Missing flag already means enabled; make it explicit without
		// changing behavior.
		fmt.Fprintf(s.out, "%s is already enabled\n", name)
		return nil
	}

	cfg[enabledKey] = true
	s.cfg.SetAddon(name, cfg)
	return s.save(name, "enabled")
}

// Disable marks an addon disabled. A missing enabled flag counts as enabled,
// so disabling an installed addon without an entry creates one.
// Already-disabled or uninstalled addons are a no-op without a write.
func (s *Surface) Disable(name string) error {
	name, err := s.checkName(name)
	if err != nil {
		return err
	}

	cfg, present := s.cfg.AddonConfig(name)
	if present && cfg == nil {
		return oops.In("control").Code("CONTROL_INVALID").With("addon", name).New("addon configuration is not a mapping")
	}
	if enabled, ok := cfg[enabledKey].(bool); ok && !enabled {
		fmt.Fprintf(s.out, "%s is already disabled\n", name)
		return nil
	}
	if !present && !s.installed(name) {
		fmt.Fprintf(s.out, "%s is not installed\n", name)
		return nil
	}
	if cfg == nil {
		cfg = map[string]any{}
	}

	cfg[enabledKey] = false
	s.cfg.SetAddon(name, cfg)
	return s.save(name, "disabled")
}

// Remove deletes an addon's configuration entry; removing an unconfigured
// addon is a no-op. The addon's files are left alone.
func (s *Surface) Remove(name string) error {
	name, err := s.checkName(name)
	if err != nil {
		return err
	}

	if !s.cfg.DeleteAddon(name) {
		fmt.Fprintf(s.out, "%s is not configured\n", name)
		return nil
	}
	return s.save(name, "removed")
}

// Configure changes an installed addon's configuration. When the addon
// exports a configuration hook it receives the current config, a setter, and
// the raw arguments; without one the first two arguments are a plain
// key/value assignment. The file is written only when something changed.
func (s *Surface) Configure(name string, args []string) error {
	name, err := s.checkName(name)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return oops.In("control").Code("CONTROL_INVALID").With("addon", name).New("config requires a key and a value")
	}
	if !s.installed(name) {
		return oops.In("control").Code("CONTROL_NOT_INSTALLED").With("addon", name).New("addon is not installed")
	}

	cfg, _ := s.cfg.AddonConfig(name)
	if cfg == nil {
		cfg = map[string]any{}
	}

	staged := make(map[string]any, len(cfg))
	for k, v := range cfg {
		staged[k] = v
	}

	var changed bool
	if ctrl, ok := s.lookupCtrl(name); ok {
		var err error
		changed, err = ctrl(staged, func(key string, value any) {
			staged[key] = value
		}, args)
		if err != nil {
			return oops.In("control").Code("CONTROL_CONFIG_FAILED").With("addon", name).Wrap(err)
		}
	} else {
		// No custom hook: the first two arguments are a plain key/value
		// assignment.
		key, value := args[0], args[1]
		if key == enabledKey {
			return oops.In("control").Code("CONTROL_INVALID").With("addon", name).New("use enable/disable to change the enabled flag")
		}
		if current, exists := staged[key]; !exists || current != value {
			staged[key] = value
			changed = true
		}
	}
	if !changed {
		fmt.Fprintf(s.out, "%s: no changes\n", name)
		return nil
	}

	s.cfg.SetAddon(name, staged)
	return s.save(name, "configured")
}

// checkName sanitizes a command-line addon name and rejects names that are
// empty after sanitizing or reserved.
func (s *Surface) checkName(raw string) (string, error) {
	name := addon.SanitizeName(raw)
	if name == "" {
		return "", oops.In("control").Code("CONTROL_INVALID").With("addon", raw).New("addon name is empty after sanitizing")
	}
	if name == addon.ReservedName {
		return "", oops.In("control").Code("CONTROL_INVALID").With("addon", name).New("addon name is reserved")
	}
	if name != raw {
		s.logger.Warn("sanitized addon name", "given", raw, "using", name)
	}
	return name, nil
}

// installed reports whether an implementation exists for the name: either a
// compiled-in factory or an addon directory with a manifest.
func (s *Surface) installed(name string) bool {
	if s.builtins != nil {
		if _, ok := s.builtins.Lookup(name); ok {
			return true
		}
	}
	if s.cfg.AddonsDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(s.cfg.AddonsDir, name, addon.ManifestFile))
	return err == nil
}

// lookupCtrl finds the configuration hook for an addon: the builtin
// declaration's hook first, then the runtime resolver.
func (s *Surface) lookupCtrl(name string) (addon.ConfigCtrl, bool) {
	if s.builtins != nil {
		if entry, ok := s.builtins.Lookup(name); ok && entry.ConfigCtrl != nil {
			return entry.ConfigCtrl, true
		}
	}
	if s.resolver != nil {
		return s.resolver(name)
	}
	return nil, false
}

func (s *Surface) save(name, verb string) error {
	if err := s.cfg.Save(); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s %s\n", name, verb)
	return nil
}

// enabledKey mirrors the loader's reserved bookkeeping key.
const enabledKey = "enabled"
