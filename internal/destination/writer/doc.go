// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package writer prints enriched rows to the given io.Writer instance, either as an aligned
// table for humans or as CSV for other tools.
package writer
