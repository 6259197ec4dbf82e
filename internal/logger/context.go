// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"context"
)

// RunIDKey is the key under which the run id is emitted on every line of a run.
const RunIDKey = "run"

type (
	loggerKeyType struct{}
	runIDKeyType  struct{}
)

var (
	loggerKey = loggerKeyType{}
	runIDKey  = runIDKeyType{}
)

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger carried by ctx, or a logger discarding everything.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(Logger); ok {
			return logger
		}
	}

	return nullLogger
}

// WithRunID returns a copy of ctx identifying the run runID. The logger of ctx is replaced
// by one emitting the run id on every line.
func WithRunID(ctx context.Context, runID string) context.Context {
	ctx = context.WithValue(ctx, runIDKey, runID)
	return WithContext(ctx, FromContext(ctx).With(RunIDKey, runID))
}

// RunID returns the run id carried by ctx, if any.
func RunID(ctx context.Context) string {
	if ctx != nil {
		if runID, ok := ctx.Value(runIDKey).(string); ok {
			return runID
		}
	}

	return ""
}

// ForRun returns logger emitting the run id of ctx on every line. Loggers built outside of
// ctx, like the audit file one, use it to stay aligned with the context logger.
func ForRun(ctx context.Context, logger Logger) Logger {
	if runID := RunID(ctx); runID != "" {
		return logger.With(RunIDKey, runID)
	}

	return logger
}
