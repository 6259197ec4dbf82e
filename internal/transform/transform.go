// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package transform derives the currency columns of the working set.
package transform

import (
	"github.com/shopspring/decimal"

	"github.com/mia-platform/bankcap/internal/extract"
	"github.com/mia-platform/bankcap/internal/rates"
	"github.com/mia-platform/bankcap/internal/table"
)

// Places is the number of decimal places kept by every derived value.
const Places = 2

// Transform returns one row per entity of ws, in the same order, with a value for every
// currency of schema computed as Convert(cap, rate). Every rate is resolved before the
// first row is built: a missing currency fails the whole call and nothing is returned.
func Transform(ws extract.WorkingSet, rm rates.RateMap, schema table.Schema) ([]table.Row, error) {
	factors := make([]decimal.Decimal, 0, len(schema.Currencies))
	for _, code := range schema.Currencies {
		rate, err := rm.RateFor(code)
		if err != nil {
			return nil, err
		}
		factors = append(factors, decimal.NewFromFloat(rate))
	}

	rows := make([]table.Row, 0, len(ws))
	for _, entity := range ws {
		base := decimal.NewFromFloat(entity.MarketCapBase)
		values := make([]float64, 0, len(factors))
		for _, factor := range factors {
			values = append(values, convert(base, factor))
		}

		rows = append(rows, table.Row{
			Name:          entity.Name,
			MarketCapBase: entity.MarketCapBase,
			Values:        values,
		})
	}

	return rows, nil
}

// Convert multiplies value by rate and rounds half away from zero to Places decimals.
// The product is computed on the shortest decimal form of both operands, so 2.675 * 1
// yields 2.68.
func Convert(value, rate float64) float64 {
	return convert(decimal.NewFromFloat(value), decimal.NewFromFloat(rate))
}

func convert(value, rate decimal.Decimal) float64 {
	return value.Mul(rate).Round(Places).InexactFloat64()
}
