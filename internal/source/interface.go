// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"context"
	"errors"
)

var (
	// ErrSourceUnavailable reports a document that cannot be retrieved or parsed.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrStructureNotFound reports a document without the expected tabular region or columns.
	ErrStructureNotFound = errors.New("structure not found")
)

// Reader defines a data source that returns a single labelled table.
type Reader interface {
	// Read fetches the document and returns the designated table. It fails with
	// ErrSourceUnavailable when the document cannot be retrieved and with
	// ErrStructureNotFound when no matching table exists.
	Read(ctx context.Context) (*Table, error)
}
