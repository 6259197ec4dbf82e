// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package extract turns raw scraped records into the ranked working set.
package extract

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/mia-platform/bankcap/internal/source"
)

const (
	// DefaultTopN is the size of the working set when none is configured.
	DefaultTopN = 10
	// DefaultNameLabel is the label of the entity name column in the source table.
	DefaultNameLabel = "Bank name"
	// DefaultCapLabel is the label of the market capitalization column in the source table.
	DefaultCapLabel = "Market cap (US$ billion)"
)

// Entity is a record whose metric has been coerced to a number.
type Entity struct {
	Name          string
	MarketCapBase float64
}

// WorkingSet holds entities ranked by MarketCapBase, highest first.
type WorkingSet []Entity

// Result is the outcome of an extraction.
type Result struct {
	WorkingSet WorkingSet
	// Valid is the number of records that survived coercion, before truncation.
	Valid int
	// Dropped holds the records that failed coercion, in input order.
	Dropped []source.RawRecord
}

// Extract coerces every record, drops the ones with an empty name or whose metric is not a
// finite non negative number, ranks the rest by metric descending keeping input order among equal values, and
// keeps the first topN of them.
func Extract(records []source.RawRecord, topN int) Result {
	entities := make([]Entity, 0, len(records))
	var dropped []source.RawRecord

	for _, record := range records {
		name := strings.TrimSpace(record.Name)
		value, ok := ParseCap(record.CapRaw)
		if !ok || name == "" {
			dropped = append(dropped, record)
			continue
		}

		entities = append(entities, Entity{
			Name:          name,
			MarketCapBase: value,
		})
	}

	slices.SortStableFunc(entities, func(a, b Entity) int {
		return cmp.Compare(b.MarketCapBase, a.MarketCapBase)
	})

	valid := len(entities)
	limit := max(min(topN, valid), 0)

	return Result{
		WorkingSet: WorkingSet(slices.Clip(entities[:limit])),
		Valid:      valid,
		Dropped:    dropped,
	}
}

// FromTable projects table on the name and metric labels and extracts the working set.
func FromTable(table *source.Table, nameLabel, capLabel string, topN int) (Result, error) {
	records, err := table.Project(nameLabel, capLabel)
	if err != nil {
		return Result{}, err
	}

	return Extract(records, topN), nil
}

// ParseCap coerces a raw metric string. Surrounding whitespace is ignored; anything else
// that is not a plain decimal number, thousands separators included, is rejected.
func ParseCap(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, false
	}

	return value, true
}
