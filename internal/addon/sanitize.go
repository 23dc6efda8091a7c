// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package addon

import (
	"strings"
	"unicode"
)

// SanitizeName strips the characters that could redirect filesystem
// resolution: path separators, dots, and whitespace. Everything else is left
// unchanged so configured names map predictably onto addon directories.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '.':
			return -1
		}
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
}
