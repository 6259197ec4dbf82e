// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"fmt"
	"strings"
)

// Row maps a column label to the text of its cell.
type Row map[string]string

// Table groups the column labels and the rows of a tabular region.
type Table struct {
	// Headers holds the column labels in document order.
	Headers []string
	// Rows holds the data rows in document order.
	Rows []Row
}

// RawRecord is one row reduced to the two semantic columns, before numeric coercion.
type RawRecord struct {
	Name   string
	CapRaw string
}

// Project selects the name and metric columns by label, ignoring every other column and
// the position of the columns inside the table. Labels are compared case insensitively
// after whitespace normalization.
func (t *Table) Project(nameLabel, capLabel string) ([]RawRecord, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: empty table", ErrStructureNotFound)
	}

	nameKey, ok := t.lookupHeader(nameLabel)
	if !ok {
		return nil, fmt.Errorf("%w: column %q", ErrStructureNotFound, nameLabel)
	}

	capKey, ok := t.lookupHeader(capLabel)
	if !ok {
		return nil, fmt.Errorf("%w: column %q", ErrStructureNotFound, capLabel)
	}

	records := make([]RawRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		records = append(records, RawRecord{
			Name:   row[nameKey],
			CapRaw: row[capKey],
		})
	}

	return records, nil
}

// lookupHeader returns the stored header matching label.
func (t *Table) lookupHeader(label string) (string, bool) {
	wanted := normalizeSpace(label)
	for _, header := range t.Headers {
		if strings.EqualFold(normalizeSpace(header), wanted) {
			return header, true
		}
	}

	return "", false
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
