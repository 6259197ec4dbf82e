// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package table describes the enriched table shared by every load target.
package table

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	// DefaultNameColumn is the column holding the entity name.
	DefaultNameColumn = "Name"
	// DefaultMetricColumn is the column holding the metric in the base currency.
	DefaultMetricColumn = "MC_USD_Billion"
	// ValueColumnPrefix prefixes the code of every derived currency column.
	ValueColumnPrefix = "value_"
)

// DefaultCurrencies are the target currencies used when none are configured.
var DefaultCurrencies = []string{"GBP", "EUR", "INR"}

// Schema is the ordered column set of the persisted table.
type Schema struct {
	NameColumn   string
	MetricColumn string
	// Currencies are the target currency codes, in column order.
	Currencies []string
}

// DefaultSchema returns the schema with the default column names and currencies.
func DefaultSchema() Schema {
	return NewSchema(DefaultCurrencies)
}

// NewSchema returns a schema with the default name and metric columns and one value column
// for every code, upper cased.
func NewSchema(currencies []string) Schema {
	codes := make([]string, 0, len(currencies))
	for _, code := range currencies {
		codes = append(codes, strings.ToUpper(strings.TrimSpace(code)))
	}

	return Schema{
		NameColumn:   DefaultNameColumn,
		MetricColumn: DefaultMetricColumn,
		Currencies:   codes,
	}
}

// ValueColumn returns the column name for a currency code.
func ValueColumn(code string) string {
	return ValueColumnPrefix + code
}

// ValueColumns returns the derived currency columns in order.
func (s Schema) ValueColumns() []string {
	columns := make([]string, 0, len(s.Currencies))
	for _, code := range s.Currencies {
		columns = append(columns, ValueColumn(code))
	}
	return columns
}

// NumericColumns returns the metric column followed by the value columns.
func (s Schema) NumericColumns() []string {
	return append([]string{s.MetricColumn}, s.ValueColumns()...)
}

// Columns returns every column of the schema in order.
func (s Schema) Columns() []string {
	return append([]string{s.NameColumn}, s.NumericColumns()...)
}

// IsNumeric reports whether column is one of the numeric columns of the schema.
func (s Schema) IsNumeric(column string) bool {
	return slices.Contains(s.NumericColumns(), column)
}

// Value returns the value of row in the numeric column.
func (s Schema) Value(row Row, column string) (float64, bool) {
	index := slices.Index(s.NumericColumns(), column)
	switch {
	case index == 0:
		return row.MarketCapBase, true
	case index > 0 && index <= len(row.Values):
		return row.Values[index-1], true
	default:
		return 0, false
	}
}

// Validate checks that the schema has no empty or repeated column.
func (s Schema) Validate() error {
	seen := make(map[string]struct{})
	for _, column := range s.Columns() {
		if column == "" || column == ValueColumnPrefix {
			return fmt.Errorf("schema has an empty column name")
		}
		if _, found := seen[column]; found {
			return fmt.Errorf("schema has duplicated column %q", column)
		}
		seen[column] = struct{}{}
	}

	return nil
}

// Row is one enriched entity. Values follow the order of Schema.Currencies.
type Row struct {
	Name          string
	MarketCapBase float64
	Values        []float64
}

// Cells returns the textual representation of the row, in schema column order.
func (r Row) Cells() []string {
	cells := make([]string, 0, len(r.Values)+2)
	cells = append(cells, r.Name, FormatNumber(r.MarketCapBase))
	for _, value := range r.Values {
		cells = append(cells, FormatNumber(value))
	}

	return cells
}

// Table is the logical table written to the file and to the store.
type Table struct {
	Schema Schema
	Rows   []Row
}

// FormatNumber renders value with the fewest digits that parse back to the same number.
func FormatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// ParseRow is the inverse of Row.Cells for a schema with currencies value columns.
func ParseRow(cells []string, currencies int) (Row, error) {
	if len(cells) != currencies+2 {
		return Row{}, fmt.Errorf("expected %d cells, found %d", currencies+2, len(cells))
	}

	numbers := make([]float64, 0, len(cells)-1)
	for _, cell := range cells[1:] {
		number, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return Row{}, fmt.Errorf("invalid number %q: %w", cell, err)
		}
		numbers = append(numbers, number)
	}

	return Row{
		Name:          cells[0],
		MarketCapBase: numbers[0],
		Values:        numbers[1:],
	}, nil
}
