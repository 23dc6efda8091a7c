// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

// Package errutil logs samber/oops errors with their structured context.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	logWith(logger.Error, msg, err)
}

// LogWarn is LogError at warning level, for isolated failures the host
// tolerates (skipped addons, dropped events).
func LogWarn(logger *slog.Logger, msg string, err error) {
	logWith(logger.Warn, msg, err)
}

func logWith(log func(msg string, args ...any), msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		log(msg, attrs...)
	} else {
		log(msg, "error", err)
	}
}
