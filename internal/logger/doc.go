// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package logger wraps hclog behind the Logger interface. The console logger travels in the
// context together with the id of the pipeline run, so every package logging for a run gets
// the same run field without passing it around.
package logger
