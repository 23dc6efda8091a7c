// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package addon

import "context"

// Host loads addon implementations of one manifest type onto a Base. This is
// the narrow boundary behind which all dynamic loading lives: a host reads
// an implementation from an addon directory, validates its shape, and wires
// its listeners through the supplied Base.
type Host interface {
	// Type returns the manifest type this host serves.
	Type() Type

	// Load initializes the addon described by manifest from dir, registering
	// its listeners on base.
	Load(ctx context.Context, manifest *Manifest, dir string, base *Base) error

	// ConfigCtrl returns the addon's custom configuration handler, if the
	// implementation exports one.
	ConfigCtrl(manifest *Manifest, dir string) (ConfigCtrl, bool)

	// Close shuts down the host and all loaded addons.
	Close(ctx context.Context) error
}
