// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package destination

import (
	"context"

	"github.com/mia-platform/bankcap/internal/table"
)

// Staged is a complete write that is not visible yet.
type Staged interface {
	// Publish makes the write visible, replacing the previous content of the target.
	Publish() error
	// Discard drops the write and leaves the target untouched. Calling it after Publish is a no-op.
	Discard() error
}

// Pending is a table replacement written inside an open transaction. Its rows are visible to
// TopK and to no other reader until Commit.
type Pending interface {
	// TopK returns the first k replaced rows ordered by orderBy descending.
	TopK(ctx context.Context, schema table.Schema, k int, orderBy string) ([]table.Row, error)
	// Commit runs beforeCommit, when not nil, then commits. An error from beforeCommit rolls
	// the transaction back.
	Commit(beforeCommit func() error) error
	// Rollback drops the replacement. Calling it after Commit is a no-op.
	Rollback() error
}

// Store is a relational target that keeps one table per name.
type Store interface {
	// Begin writes t as the new content of the named table in a transaction left open.
	Begin(ctx context.Context, name string, t table.Table) (Pending, error)
	// Replace is Begin followed by Commit.
	Replace(ctx context.Context, name string, t table.Table, beforeCommit func() error) error
	// TopK returns the first k rows of the named table ordered by orderBy descending.
	TopK(ctx context.Context, name string, schema table.Schema, k int, orderBy string) ([]table.Row, error)
	Close() error
}

// StoreOpener returns a new connection to a Store. The caller closes it.
type StoreOpener func(ctx context.Context) (Store, error)
