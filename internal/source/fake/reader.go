// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"testing"

	"github.com/mia-platform/bankcap/internal/source"
)

var _ source.Reader = &FakeReader{}

// FakeReader returns a fixed table or a fixed error and counts its invocations.
type FakeReader struct {
	tb testing.TB

	table *source.Table
	err   error

	Calls int
}

// NewFakeReader returns a FakeReader producing table.
func NewFakeReader(tb testing.TB, table *source.Table) *FakeReader {
	tb.Helper()
	return &FakeReader{tb: tb, table: table}
}

// NewFakeReaderWithError returns a FakeReader always failing with err.
func NewFakeReaderWithError(tb testing.TB, err error) *FakeReader {
	tb.Helper()
	return &FakeReader{tb: tb, err: err}
}

// Read implements source.Reader.
func (f *FakeReader) Read(ctx context.Context) (*source.Table, error) {
	f.tb.Helper()
	f.Calls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}

	return f.table, nil
}

// BanksTable builds a two column table using the default labels, one row per name/cap pair.
func BanksTable(pairs ...[2]string) *source.Table {
	table := &source.Table{
		Headers: []string{"Rank", "Bank name", "Market cap (US$ billion)"},
	}
	for _, pair := range pairs {
		table.Rows = append(table.Rows, source.Row{
			"Rank":                     "",
			"Bank name":                pair[0],
			"Market cap (US$ billion)": pair[1],
		})
	}

	return table
}
