// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package file

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/mia-platform/bankcap/internal/destination"
	"github.com/mia-platform/bankcap/internal/table"
)

// ErrWriteFailed reports a table that could not be written to the file system.
var ErrWriteFailed = errors.New("file write failed")

var _ destination.Staged = &Staged{}

// Staged is a fully written temporary file waiting to be moved onto its destination.
type Staged struct {
	tmpPath string
	path    string

	lock sync.Mutex
	done bool
}

// Stage writes t, header first, into a temporary file created in the directory of path.
func Stage(t table.Table, path string) (*Staged, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrWriteFailed)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if err := encode(tmpFile, t); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return nil, fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return nil, fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())
		return nil, fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}

	return &Staged{tmpPath: tmpFile.Name(), path: path}, nil
}

// Path returns the destination of the staged file.
func (s *Staged) Path() string {
	return s.path
}

// Publish implements destination.Staged.
func (s *Staged) Publish() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.done {
		return fmt.Errorf("%w: %s already published or discarded", ErrWriteFailed, s.path)
	}

	if err := os.Chmod(s.tmpPath, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, s.path, err)
	}

	if err := os.Rename(s.tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, s.path, err)
	}

	s.done = true
	return nil
}

// Discard implements destination.Staged.
func (s *Staged) Discard() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.done {
		return nil
	}

	s.done = true
	if err := os.Remove(s.tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, s.path, err)
	}
	return nil
}

// Write stages t and publishes it on path right away.
func Write(t table.Table, path string) error {
	staged, err := Stage(t, path)
	if err != nil {
		return err
	}

	if err := staged.Publish(); err != nil {
		_ = staged.Discard()
		return err
	}

	return nil
}

// Read loads a file written by Write. The header must match schema exactly.
func Read(path string, schema table.Schema) (table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return table.Table{}, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(schema.Columns())

	header, err := reader.Read()
	if err != nil {
		return table.Table{}, fmt.Errorf("%s: read header: %w", path, err)
	}

	if !slices.Equal(header, schema.Columns()) {
		return table.Table{}, fmt.Errorf("%s: unexpected header %v", path, header)
	}

	result := table.Table{Schema: schema, Rows: []table.Row{}}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table.Table{}, fmt.Errorf("%s: %w", path, err)
		}

		row, err := table.ParseRow(record, len(schema.Currencies))
		if err != nil {
			return table.Table{}, fmt.Errorf("%s: %w", path, err)
		}
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

func encode(w io.Writer, t table.Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Schema.Columns()); err != nil {
		return err
	}

	columns := len(t.Schema.Currencies)
	for _, row := range t.Rows {
		if len(row.Values) != columns {
			return fmt.Errorf("row %q has %d values, expected %d", row.Name, len(row.Values), columns)
		}

		if err := writer.Write(row.Cells()); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
