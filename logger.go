// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridrender

import (
	"log/slog"

	"github.com/gogpu/gridrender/internal/logging"
)

// SetLogger configures the logger for gridrender and all its sub-packages.
// By default, gridrender produces no log output.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by gridrender:
//   - [slog.LevelDebug]: per-tick diagnostics (batch sizes, bucket counts)
//   - [slog.LevelInfo]: lifecycle events (backend selected, stage ready)
//   - [slog.LevelWarn]: non-fatal issues (unknown message tag, font load
//     failure, texture upload failure)
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by gridrender.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.L()
}
