// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package progress keeps the append only audit log of the pipeline runs.
package progress

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mia-platform/bankcap/internal/logger"
)

const (
	// DefaultPath is the audit log used when none is configured.
	DefaultPath = "code_log.txt"
	// TimeFormat is the timestamp layout of every audit line.
	TimeFormat = "2006-Jan-02-15:04:05"

	loggerName = "bankcap"
)

// ErrVerificationFailed reports an audit log that is missing, unreadable, empty or that
// lacks the events of the run being verified.
var ErrVerificationFailed = errors.New("log verification failed")

// Option customizes a Log.
type Option func(*Log)

// WithClock sets the function used to timestamp the audit lines.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// Log appends events to the audit file and echoes them on the console logger.
type Log struct {
	file    *os.File
	audit   logger.Logger
	console logger.Logger
	now     func() time.Time
}

// Open opens path for appending, creating it when missing. The console logger and the run
// id stamped on every event are taken from ctx.
func Open(ctx context.Context, path string, options ...Option) (*Log, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	log := &Log{
		file:    file,
		console: logger.FromContext(ctx).WithName(loggerName),
		now:     time.Now,
	}
	for _, option := range options {
		option(log)
	}

	log.audit = logger.ForRun(ctx, logger.NewTextLogger(file, TimeFormat, log.now).WithName(loggerName))
	return log, nil
}

// Event records msg with its key/value pairs.
func (l *Log) Event(msg string, args ...interface{}) {
	l.audit.Info(msg, args...)
	l.console.Info(msg, args...)
}

// Failure records the failure of stage. Only the error message goes to the audit file.
func (l *Log) Failure(stage, kind string, err error) {
	l.audit.Error("stage failed", "stage", stage, "kind", kind, "error", err.Error())
	l.console.Error("stage failed", "stage", stage, "kind", kind, "error", err.Error())
	l.console.Debug("failure detail", "stage", stage, "error", fmt.Sprintf("%+v", err))
}

// Close flushes the audit file to disk and closes it.
func (l *Log) Close() error {
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return err
	}

	return l.file.Close()
}

// Report describes a verified audit log.
type Report struct {
	// Lines is the number of lines in the whole file.
	Lines int
	// RunLines is the number of lines written by the verified run.
	RunLines int
	Content  string
}

// Verify reads back the audit log at path and checks that it holds at least one event of
// runID. An empty runID skips that check.
func Verify(path, runID string) (Report, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	if len(bytes.TrimSpace(content)) == 0 {
		return Report{}, fmt.Errorf("%w: %s is empty", ErrVerificationFailed, path)
	}

	report := Report{Content: string(content)}
	marker := logger.RunIDKey + "=" + runID
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		report.Lines++
		if runID != "" && strings.Contains(scanner.Text(), marker) {
			report.RunLines++
		}
	}

	if err := scanner.Err(); err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	if runID != "" && report.RunLines == 0 {
		return Report{}, fmt.Errorf("%w: no event of run %s in %s", ErrVerificationFailed, runID, path)
	}

	return report, nil
}
