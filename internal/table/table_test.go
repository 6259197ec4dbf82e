// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchema(t *testing.T) {
	t.Parallel()

	schema := DefaultSchema()
	assert.Equal(t, []string{"Name", "MC_USD_Billion", "value_GBP", "value_EUR", "value_INR"}, schema.Columns())
	assert.Equal(t, []string{"MC_USD_Billion", "value_GBP", "value_EUR", "value_INR"}, schema.NumericColumns())
	assert.True(t, schema.IsNumeric("value_EUR"))
	assert.False(t, schema.IsNumeric("Name"))
	assert.False(t, schema.IsNumeric("value_JPY"))
	assert.NoError(t, schema.Validate())
}

func TestSchemaValidate(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		schema      Schema
		expectedErr string
	}{
		"custom currencies": {
			schema: NewSchema([]string{" jpy", "chf"}),
		},
		"repeated currency": {
			schema:      NewSchema([]string{"GBP", "gbp"}),
			expectedErr: `duplicated column "value_GBP"`,
		},
		"empty currency": {
			schema:      NewSchema([]string{""}),
			expectedErr: "empty column name",
		},
		"metric clashing with name": {
			schema:      Schema{NameColumn: "Name", MetricColumn: "Name"},
			expectedErr: `duplicated column "Name"`,
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := test.schema.Validate()
			if test.expectedErr != "" {
				assert.ErrorContains(t, err, test.expectedErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRowCells(t *testing.T) {
	t.Parallel()

	row := Row{Name: "JPMorgan Chase", MarketCapBase: 432.92, Values: []float64{346.34, 402.62, 35910.71}}
	cells := row.Cells()
	assert.Equal(t, []string{"JPMorgan Chase", "432.92", "346.34", "402.62", "35910.71"}, cells)

	parsed, err := ParseRow(cells, 3)
	require.NoError(t, err)
	assert.Equal(t, row, parsed)

	_, err = ParseRow(cells, 2)
	assert.ErrorContains(t, err, "expected 4 cells, found 5")

	_, err = ParseRow([]string{"A", "1", "x"}, 1)
	assert.ErrorContains(t, err, `invalid number "x"`)
}

func TestSchemaValue(t *testing.T) {
	t.Parallel()

	schema := DefaultSchema()
	row := Row{Name: "HDFC Bank", MarketCapBase: 157.91, Values: []float64{126.33, 146.86, 13098.63}}

	testCases := map[string]struct {
		column   string
		expected float64
		found    bool
	}{
		"metric column": {column: DefaultMetricColumn, expected: 157.91, found: true},
		"value column":  {column: "value_EUR", expected: 146.86, found: true},
		"name column":   {column: DefaultNameColumn},
		"unknown":       {column: "value_JPY"},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			value, found := schema.Value(row, test.column)
			assert.Equal(t, test.found, found)
			assert.Equal(t, test.expected, value)
		})
	}

	_, found := schema.Value(Row{Name: "short"}, "value_INR")
	assert.False(t, found)
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "100", FormatNumber(100))
	assert.Equal(t, "2.68", FormatNumber(2.68))
	assert.Equal(t, "1234567.5", FormatNumber(1234567.5))
}
