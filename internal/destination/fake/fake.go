// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/mia-platform/bankcap/internal/destination"
	"github.com/mia-platform/bankcap/internal/table"
)

var (
	_ destination.Store   = &FakeStore{}
	_ destination.Pending = &FakePending{}
)

// FakeStore keeps the tables in memory. The error fields, when set, are returned by the
// matching method instead of touching the tables.
type FakeStore struct {
	tb testing.TB

	Tables map[string]table.Table

	OpenErr    error
	ReplaceErr error
	QueryErr   error
	CommitErr  error

	Opened  int
	Closed  int
	Queries []string
}

func NewFakeStore(tb testing.TB) *FakeStore {
	tb.Helper()
	return &FakeStore{tb: tb, Tables: make(map[string]table.Table)}
}

// Opener returns a destination.StoreOpener that always hands out f.
func (f *FakeStore) Opener() destination.StoreOpener {
	return func(ctx context.Context) (destination.Store, error) {
		f.tb.Helper()
		if f.OpenErr != nil {
			return nil, f.OpenErr
		}
		f.Opened++
		return f, nil
	}
}

func (f *FakeStore) Begin(ctx context.Context, name string, t table.Table) (destination.Pending, error) {
	f.tb.Helper()
	if f.ReplaceErr != nil {
		return nil, f.ReplaceErr
	}

	return &FakePending{
		store: f,
		name:  name,
		table: table.Table{Schema: t.Schema, Rows: slices.Clone(t.Rows)},
	}, nil
}

func (f *FakeStore) Replace(ctx context.Context, name string, t table.Table, beforeCommit func() error) error {
	f.tb.Helper()
	pending, err := f.Begin(ctx, name, t)
	if err != nil {
		return err
	}

	return pending.Commit(beforeCommit)
}

func (f *FakeStore) TopK(ctx context.Context, name string, schema table.Schema, k int, orderBy string) ([]table.Row, error) {
	f.tb.Helper()
	f.Queries = append(f.Queries, name)
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}

	stored, found := f.Tables[name]
	if !found {
		return nil, errors.New("no such table: " + name)
	}

	return topK(stored, schema, k, orderBy)
}

func (f *FakeStore) Close() error {
	f.tb.Helper()
	f.Closed++
	return nil
}

// FakePending holds a replaced table until Commit copies it into the store.
type FakePending struct {
	store  *FakeStore
	name   string
	table  table.Table
	closed bool

	RolledBack bool
}

func (p *FakePending) TopK(ctx context.Context, schema table.Schema, k int, orderBy string) ([]table.Row, error) {
	p.store.tb.Helper()
	p.store.Queries = append(p.store.Queries, p.name)
	if p.store.QueryErr != nil {
		return nil, p.store.QueryErr
	}
	if p.closed {
		return nil, errors.New("transaction closed")
	}

	return topK(p.table, schema, k, orderBy)
}

func (p *FakePending) Commit(beforeCommit func() error) error {
	p.store.tb.Helper()
	if p.closed {
		return errors.New("transaction closed")
	}
	p.closed = true

	if beforeCommit != nil {
		if err := beforeCommit(); err != nil {
			p.RolledBack = true
			return err
		}
	}
	if p.store.CommitErr != nil {
		p.RolledBack = true
		return p.store.CommitErr
	}

	p.store.Tables[p.name] = p.table
	return nil
}

func (p *FakePending) Rollback() error {
	p.store.tb.Helper()
	if !p.closed {
		p.closed = true
		p.RolledBack = true
	}
	return nil
}

// topK sorts like a stable sort of the rows in insertion order.
func topK(stored table.Table, schema table.Schema, k int, orderBy string) ([]table.Row, error) {
	index := slices.Index(schema.NumericColumns(), orderBy)
	if index < 0 {
		return nil, errors.New("no such column: " + orderBy)
	}

	rows := slices.Clone(stored.Rows)
	slices.SortStableFunc(rows, func(a, b table.Row) int {
		return cmp.Compare(numeric(b, index), numeric(a, index))
	})

	return rows[:max(min(k, len(rows)), 0)], nil
}

func numeric(row table.Row, index int) float64 {
	if index == 0 {
		return row.MarketCapBase
	}
	return row.Values[index-1]
}
