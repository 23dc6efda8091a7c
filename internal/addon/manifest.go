// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package addon

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// APIVersion is the addon host API version manifests constrain against.
const APIVersion = "1.0.0"

// Type identifies the addon runtime.
type Type string

// Addon types supported by the host.
const (
	TypeLua    Type = "lua"
	TypeBinary Type = "binary"
)

// Manifest represents an addon.yaml file in an addon directory.
type Manifest struct {
	Name    string        `yaml:"name" json:"name"`
	Version string        `yaml:"version" json:"version"`
	API     string        `yaml:"api,omitempty" json:"api,omitempty"`
	Type    Type          `yaml:"type" json:"type"`
	Lua     *LuaConfig    `yaml:"lua,omitempty" json:"lua,omitempty"`
	Binary  *BinaryConfig `yaml:"binary,omitempty" json:"binary,omitempty"`
}

// LuaConfig holds script addon configuration.
type LuaConfig struct {
	Entry string `yaml:"entry" json:"entry"`
}

// BinaryConfig holds binary addon configuration.
type BinaryConfig struct {
	Executable string `yaml:"executable" json:"executable"`
}

// maxNameLength is the maximum allowed length for addon names.
const maxNameLength = 64

// namePattern validates addon names: must start with a lowercase letter,
// followed by lowercase letters, digits, or hyphens.
// Cannot end with a hyphen. Single character names are allowed.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ParseManifest parses and validates an addon.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// LoadManifest reads and validates the manifest in an addon's conventional
// directory under addonsDir.
func LoadManifest(addonsDir, name string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(addonsDir, name, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("reading manifest for %s: %w", name, err)
	}
	return ParseManifest(data)
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return fmt.Errorf("name %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return fmt.Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("version %q is not valid semver: %w", m.Version, err)
	}

	if m.API != "" {
		if _, err := semver.NewConstraint(m.API); err != nil {
			return fmt.Errorf("api %q is not a valid constraint: %w", m.API, err)
		}
	}

	switch m.Type {
	case TypeLua:
		if m.Lua == nil {
			return fmt.Errorf("lua is required when type is lua")
		}
		if m.Lua.Entry == "" {
			return fmt.Errorf("lua.entry is required")
		}
	case TypeBinary:
		if m.Binary == nil {
			return fmt.Errorf("binary is required when type is binary")
		}
		if m.Binary.Executable == "" {
			return fmt.Errorf("binary.executable is required")
		}
	default:
		return fmt.Errorf("type must be 'lua' or 'binary', got %q", m.Type)
	}

	return nil
}

// CheckAPI verifies the manifest's api constraint against the host API
// version. Manifests without a constraint accept any host.
func (m *Manifest) CheckAPI() error {
	if m.API == "" {
		return nil
	}
	c, err := semver.NewConstraint(m.API)
	if err != nil {
		return fmt.Errorf("api %q is not a valid constraint: %w", m.API, err)
	}
	host := semver.MustParse(APIVersion)
	if !c.Check(host) {
		return fmt.Errorf("addon requires api %q, host provides %s", m.API, APIVersion)
	}
	return nil
}
