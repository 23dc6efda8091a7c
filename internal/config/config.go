// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

// Package config loads and persists the host configuration file.
//
// The file is YAML with a recognized top-level `addons` key mapping addon
// names to their per-addon configuration (including the reserved `enabled`
// flag), alongside host settings and a `logging` section. Reads go through
// koanf so command-line flags can overlay file values; writes go back to the
// same file through yaml.v3.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/teleframe/teleframe/internal/xdg"
)

// Logging controls the host logger.
type Logging struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// Config is the persisted host configuration.
//
// Addons values are `any` on purpose: the loader must be able to see (and
// skip) entries whose value is not a mapping.
type Config struct {
	AddonsDir     string         `koanf:"addonsDir" yaml:"addonsDir"`
	ImagesDir     string         `koanf:"imagesDir" yaml:"imagesDir"`
	ImagePatterns []string       `koanf:"imagePatterns" yaml:"imagePatterns,omitempty"`
	MetricsAddr   string         `koanf:"metricsAddr" yaml:"metricsAddr,omitempty"`
	Logging       Logging        `koanf:"logging" yaml:"logging"`
	Addons        map[string]any `koanf:"addons" yaml:"addons"`

	path string
}

// flagKeys maps kebab-case command-line flag names onto configuration keys.
// Flags named exactly like a key pass through untranslated.
var flagKeys = map[string]string{
	"addons-dir":   "addonsDir",
	"images-dir":   "imagesDir",
	"metrics-addr": "metricsAddr",
	"log-level":    "logging.level",
	"log-format":   "logging.format",
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "teleframe.yaml")
}

// Default returns a configuration with defaults applied, bound to path.
func Default(path string) *Config {
	return &Config{
		AddonsDir: filepath.Join(xdg.DataDir(), "addons"),
		ImagesDir: filepath.Join(xdg.DataDir(), "images"),
		Logging:   Logging{Level: "info", Format: "json"},
		Addons:    map[string]any{},
		path:      path,
	}
}

// Load reads the configuration file at path. A missing file yields defaults;
// a malformed file is an error. When flags is non-nil, set flags overlay the
// file values.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.In("config").Code("CONFIG_PARSE_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			// A blank key drops the flag. Unset flags must not overlay
			// their empty defaults onto keys the file never set.
			if !flags.Changed(key) {
				return "", nil
			}
			if mapped, ok := flagKeys[key]; ok {
				return mapped, value
			}
			return key, value
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.In("config").Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default(path)
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.In("config").Code("CONFIG_UNMARSHAL_FAILED").With("path", path).Wrap(err)
	}
	if cfg.Addons == nil {
		cfg.Addons = map[string]any{}
	}
	cfg.path = path

	return cfg, nil
}

// Path returns the file this configuration is bound to.
func (c *Config) Path() string {
	return c.path
}

// AddonConfig returns the configuration entry for an addon. The second
// return distinguishes "absent" from "present but not a mapping" (nil, true).
func (c *Config) AddonConfig(name string) (map[string]any, bool) {
	raw, ok := c.Addons[name]
	if !ok {
		return nil, false
	}
	m, _ := raw.(map[string]any)
	return m, true
}

// SetAddon replaces the configuration entry for an addon.
func (c *Config) SetAddon(name string, cfg map[string]any) {
	if c.Addons == nil {
		c.Addons = map[string]any{}
	}
	c.Addons[name] = cfg
}

// DeleteAddon removes an addon's configuration entry. It reports whether an
// entry existed.
func (c *Config) DeleteAddon(name string) bool {
	if _, ok := c.Addons[name]; !ok {
		return false
	}
	delete(c.Addons, name)
	return true
}

// Save writes the configuration back to its file. The write is atomic:
// a temp file in the same directory is renamed over the target.
func (c *Config) Save() error {
	if c.path == "" {
		return oops.In("config").Code("CONFIG_PATH_REQUIRED").New("configuration has no backing file")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return oops.In("config").Code("CONFIG_MARSHAL_FAILED").Wrap(err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return oops.In("config").Code("CONFIG_WRITE_FAILED").With("path", c.path).Wrap(err)
	}

	tmp, err := os.CreateTemp(dir, ".teleframe-*.yaml")
	if err != nil {
		return oops.In("config").Code("CONFIG_WRITE_FAILED").With("path", c.path).Wrap(err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return oops.In("config").Code("CONFIG_WRITE_FAILED").With("path", c.path).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return oops.In("config").Code("CONFIG_WRITE_FAILED").With("path", c.path).Wrap(err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return oops.In("config").Code("CONFIG_WRITE_FAILED").With("path", c.path).Wrap(err)
	}

	return nil
}
