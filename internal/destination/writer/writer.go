// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/mia-platform/bankcap/internal/table"
)

// Format selects how rows are printed.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
)

// Formats lists every supported Format.
var Formats = []Format{FormatTable, FormatCSV}

// Writer prints rows, header first, to an io.Writer.
type Writer struct {
	writer io.Writer
	format Format

	lock sync.Mutex
}

// New returns a Writer printing on w with format. An unknown format is an error.
func New(w io.Writer, format Format) (*Writer, error) {
	switch format {
	case FormatTable, FormatCSV:
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}

	return &Writer{writer: w, format: format}, nil
}

// WriteRows prints the schema columns and then one line per row.
func (w *Writer) WriteRows(schema table.Schema, rows []table.Row) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.format == FormatCSV {
		return w.writeCSV(schema, rows)
	}
	return w.writeTable(schema, rows)
}

func (w *Writer) writeTable(schema table.Schema, rows []table.Row) error {
	tw := tabwriter.NewWriter(w.writer, 0, 0, 2, ' ', 0)
	if _, err := io.WriteString(tw, strings.Join(schema.Columns(), "\t")+"\n"); err != nil {
		return err
	}

	for _, row := range rows {
		if _, err := io.WriteString(tw, strings.Join(row.Cells(), "\t")+"\n"); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func (w *Writer) writeCSV(schema table.Schema, rows []table.Row) error {
	cw := csv.NewWriter(w.writer)
	if err := cw.Write(schema.Columns()); err != nil {
		return err
	}

	for _, row := range rows {
		if err := cw.Write(row.Cells()); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
