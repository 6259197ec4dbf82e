// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package file writes the enriched table as a delimited text file with overwrite semantics.
// The content is staged in a temporary file next to the destination and moved in place only
// when Publish is called, so readers never observe a partial file.
package file
