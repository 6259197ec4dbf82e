// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package rates loads the exchange rate table used to convert the base metric.
package rates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/mia-platform/bankcap/internal/fetch"
)

var (
	// ErrMalformed reports a rate table that cannot be trusted.
	ErrMalformed = errors.New("rate table malformed")
	// ErrUnknownCurrency reports a currency code without a rate.
	ErrUnknownCurrency = errors.New("unknown currency")
)

// rateRecord is one line of the Currency,Rate table.
type rateRecord struct {
	Currency string `csv:"Currency"`
	Rate     string `csv:"Rate"`
}

// RateMap maps an upper case currency code to the amount of that currency per unit of the
// base currency.
type RateMap map[string]float64

// Load decodes a delimited table with a Currency,Rate header. Other columns are ignored.
// Codes are trimmed and upper cased; a duplicated or empty code and a rate that is not a
// finite non negative number make the whole table malformed.
func Load(r io.Reader) (RateMap, error) {
	var records []rateRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	rateMap := make(RateMap, len(records))
	for line, record := range records {
		code := normalizeCode(record.Currency)
		if code == "" {
			return nil, fmt.Errorf("%w: line %d: missing currency code", ErrMalformed, line+2)
		}

		if _, found := rateMap[code]; found {
			return nil, fmt.Errorf("%w: line %d: duplicated currency %q", ErrMalformed, line+2, code)
		}

		rate, err := strconv.ParseFloat(strings.TrimSpace(record.Rate), 64)
		if err != nil || math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
			return nil, fmt.Errorf("%w: line %d: invalid rate %q for %s", ErrMalformed, line+2, record.Rate, code)
		}

		rateMap[code] = rate
	}

	return rateMap, nil
}

// LoadFrom reads the rate table found at locator.
func LoadFrom(ctx context.Context, fetcher *fetch.Fetcher, locator string) (RateMap, error) {
	body, err := fetcher.Open(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	defer body.Close()

	return Load(body)
}

// RateFor returns the rate of code. A missing code is an error, never a default.
func (m RateMap) RateFor(code string) (float64, error) {
	rate, ok := m[normalizeCode(code)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}

	return rate, nil
}

// Require checks that every code has a rate.
func (m RateMap) Require(codes ...string) error {
	missing := make([]string, 0)
	for _, code := range codes {
		if _, err := m.RateFor(code); err != nil {
			missing = append(missing, normalizeCode(code))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCurrency, strings.Join(missing, ", "))
	}
	return nil
}

// Codes returns the known codes in lexical order.
func (m RateMap) Codes() []string {
	return slices.Sorted(maps.Keys(m))
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
