// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mia-platform/bankcap/internal/destination"
	"github.com/mia-platform/bankcap/internal/table"
)

const (
	// DriverSQLite selects an embedded SQLite database; the dsn is a file path.
	DriverSQLite = "sqlite"
	// DriverPostgres selects a PostgreSQL server; the dsn is a libpq connection string or URL.
	DriverPostgres = "postgres"

	// DefaultDSN is the SQLite file used when none is configured.
	DefaultDSN = "Banks.db"
	// DefaultTable is the table replaced on every run.
	DefaultTable = "Largest_banks"
)

var (
	// ErrWriteFailed reports a table that could not be replaced.
	ErrWriteFailed = errors.New("store write failed")
	// ErrQueryFailed reports a query that could not be run or whose result could not be read.
	ErrQueryFailed = errors.New("query failed")
	// ErrUnsupportedDriver reports an unknown driver name.
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

var _ destination.Store = &Store{}

// Store is a relational database holding enriched tables.
type Store struct {
	db *gorm.DB
}

// Open connects to the database of driver found at dsn.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	return New(db), nil
}

// New wraps an already opened gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Opener returns a destination.StoreOpener for driver and dsn.
func Opener(driver, dsn string) destination.StoreOpener {
	return func(context.Context) (destination.Store, error) {
		store, err := Open(driver, dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// Close implements destination.Store.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Replace implements destination.Store.
func (s *Store) Replace(ctx context.Context, name string, t table.Table, beforeCommit func() error) error {
	pending, err := s.Begin(ctx, name, t)
	if err != nil {
		return err
	}

	return pending.Commit(beforeCommit)
}

// Begin implements destination.Store. The table is dropped and created again with one
// text column for the name and one floating point column for every numeric column, then the
// rows are inserted in order. Nothing is visible outside the returned transaction until Commit.
func (s *Store) Begin(ctx context.Context, name string, t table.Table) (destination.Pending, error) {
	if err := validateTable(name, t.Schema); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	columns := len(t.Schema.Currencies)
	for _, row := range t.Rows {
		if len(row.Values) != columns {
			return nil, fmt.Errorf("%w: row %q has %d values, expected %d", ErrWriteFailed, row.Name, len(row.Values), columns)
		}
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("%w: %s: begin: %w", ErrWriteFailed, name, tx.Error)
	}

	if err := s.write(tx, name, t); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: %s: %w", ErrWriteFailed, name, err)
	}

	return &pending{store: New(tx), tx: tx, name: name}, nil
}

func (s *Store) write(tx *gorm.DB, name string, t table.Table) error {
	if err := tx.Exec("DROP TABLE IF EXISTS " + quote(name)).Error; err != nil {
		return fmt.Errorf("drop table: %w", err)
	}

	if err := tx.Exec(createStatement(name, t.Schema, s.realType())).Error; err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	insert := insertStatement(name, t.Schema)
	for _, row := range t.Rows {
		if err := tx.Exec(insert, rowArgs(row)...).Error; err != nil {
			return fmt.Errorf("insert %q: %w", row.Name, err)
		}
	}

	return nil
}

// TopK implements destination.Store. Rows with the same orderBy value keep the order they
// were inserted in, the same as a stable sort of the written rows. Both the table name and orderBy are checked before any statement is built: orderBy must be
// a numeric column of schema.
func (s *Store) TopK(ctx context.Context, name string, schema table.Schema, k int, orderBy string) ([]table.Row, error) {
	if err := validateTable(name, schema); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	if !schema.IsNumeric(orderBy) {
		return nil, fmt.Errorf("%w: cannot order by %q", ErrQueryFailed, orderBy)
	}

	if k <= 0 {
		return []table.Row{}, nil
	}

	db := s.db.WithContext(ctx)
	if !db.Migrator().HasTable(name) {
		return nil, fmt.Errorf("%w: table %s does not exist", ErrQueryFailed, name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC, %s ASC LIMIT ?",
		quoteAll(schema.Columns()), quote(name), quote(orderBy), s.insertionOrder())
	rows, err := db.Raw(query, k).Rows()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQueryFailed, name, err)
	}
	defer rows.Close()

	result := make([]table.Row, 0, k)
	for rows.Next() {
		row := table.Row{Values: make([]float64, len(schema.Currencies))}
		dest := make([]any, 0, len(schema.Currencies)+2)
		dest = append(dest, &row.Name, &row.MarketCapBase)
		for i := range row.Values {
			dest = append(dest, &row.Values[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrQueryFailed, name, err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQueryFailed, name, err)
	}

	return result, nil
}

// insertionOrder is the system column that follows insertion order in a table filled once.
func (s *Store) insertionOrder() string {
	if s.db.Dialector.Name() == DriverPostgres {
		return "ctid"
	}
	return "rowid"
}

func (s *Store) realType() string {
	if s.db.Dialector.Name() == DriverPostgres {
		return "DOUBLE PRECISION"
	}
	return "REAL"
}

// ValidIdentifier reports whether name can be used as a table or column name.
func ValidIdentifier(name string) bool {
	return identifierRegex.MatchString(name)
}

func validateTable(name string, schema table.Schema) error {
	if !ValidIdentifier(name) {
		return fmt.Errorf("invalid table name %q", name)
	}

	if err := schema.Validate(); err != nil {
		return err
	}

	for _, column := range schema.Columns() {
		if !ValidIdentifier(column) {
			return fmt.Errorf("invalid column name %q", column)
		}
	}

	return nil
}

func createStatement(name string, schema table.Schema, realType string) string {
	definitions := make([]string, 0, len(schema.Currencies)+2)
	definitions = append(definitions, quote(schema.NameColumn)+" TEXT NOT NULL")
	for _, column := range schema.NumericColumns() {
		definitions = append(definitions, quote(column)+" "+realType+" NOT NULL")
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", quote(name), strings.Join(definitions, ", "))
}

func insertStatement(name string, schema table.Schema) string {
	columns := schema.Columns()
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(name), quoteAll(columns), placeholders)
}

func rowArgs(row table.Row) []any {
	args := make([]any, 0, len(row.Values)+2)
	args = append(args, row.Name, row.MarketCapBase)
	for _, value := range row.Values {
		args = append(args, value)
	}

	return args
}

// quote is only called on names that matched identifierRegex.
func quote(identifier string) string {
	return `"` + identifier + `"`
}

func quoteAll(identifiers []string) string {
	quoted := make([]string, 0, len(identifiers))
	for _, identifier := range identifiers {
		quoted = append(quoted, quote(identifier))
	}

	return strings.Join(quoted, ", ")
}

// pending is a replaced table inside an open transaction.
type pending struct {
	store  *Store
	tx     *gorm.DB
	name   string
	closed bool
}

func (p *pending) TopK(ctx context.Context, schema table.Schema, k int, orderBy string) ([]table.Row, error) {
	if p.closed {
		return nil, fmt.Errorf("%w: %s: transaction closed", ErrQueryFailed, p.name)
	}

	return p.store.TopK(ctx, p.name, schema, k, orderBy)
}

func (p *pending) Commit(beforeCommit func() error) error {
	if p.closed {
		return fmt.Errorf("%w: %s: transaction closed", ErrWriteFailed, p.name)
	}
	p.closed = true

	if beforeCommit != nil {
		if err := beforeCommit(); err != nil {
			p.tx.Rollback()
			return fmt.Errorf("%w: %s: %w", ErrWriteFailed, p.name, err)
		}
	}

	if err := p.tx.Commit().Error; err != nil {
		return fmt.Errorf("%w: %s: commit: %w", ErrWriteFailed, p.name, err)
	}

	return nil
}

func (p *pending) Rollback() error {
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: %s: rollback: %w", ErrWriteFailed, p.name, err)
	}

	return nil
}
