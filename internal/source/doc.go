// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package source defines the contract used to read the ranked table out of a document.
// A Reader locates a single tabular region and returns its rows labelled by column header,
// in document order, without validating any value.
package source
