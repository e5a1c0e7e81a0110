// Package entdriver implements storage.Driver on ent's SQL dialect layer.
// It is database-agnostic and is embedded by the sqlite, postgres and libsql
// drivers, which only differ in how they open the connection.
package entdriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	entsql "entgo.io/ent/dialect/sql"
	entschema "entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/dialect/sql/sqlgraph"

	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/storage/ent/schema"
)

// EntDriver provides storage operations over an ent SQL driver.
type EntDriver struct {
	Driver *entsql.Driver
	closed atomic.Bool
}

var _ storage.Driver = (*EntDriver)(nil)

// New wraps drv and migrates the schema. Migration is additive only: new
// tables, columns and indexes are created, nothing is dropped.
func New(ctx context.Context, drv *entsql.Driver) (*EntDriver, error) {
	ed := &EntDriver{Driver: drv}
	if err := ed.Migrate(ctx); err != nil {
		return nil, err
	}
	return ed, nil
}

// Migrate creates or updates every mission control table.
func (ed *EntDriver) Migrate(ctx context.Context) error {
	m, err := entschema.NewMigrate(ed.Driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Create(ctx, schema.Tables...); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (ed *EntDriver) Close() error {
	if ed.closed.Swap(true) {
		return nil
	}
	return ed.Driver.Close()
}

func (ed *EntDriver) dialect() *entsql.DialectBuilder {
	return entsql.Dialect(ed.Driver.Dialect())
}

func (ed *EntDriver) selectFrom(table string, columns []string) *entsql.Selector {
	return ed.dialect().Select(columns...).From(entsql.Table(table))
}

// scanner is the subset of entsql.Rows row decoders need.
type scanner interface {
	Scan(dest ...any) error
}

func (ed *EntDriver) exec(ctx context.Context, q entsql.Querier) (int64, error) {
	if ed.closed.Load() {
		return 0, storage.ErrClosed
	}

	query, args := q.Query()
	var res sql.Result
	if err := ed.Driver.Exec(ctx, query, args, &res); err != nil {
		return 0, ed.wrap(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// insert runs q, mapping unique constraint violations to DuplicateError.
func (ed *EntDriver) insert(ctx context.Context, q *entsql.InsertBuilder, kind, id string) error {
	if _, err := ed.exec(ctx, q); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return storage.DuplicateError{Kind: kind, ID: id}
		}
		return fmt.Errorf("could not insert %s: %w", kind, err)
	}
	return nil
}

// list runs sel and decodes every row with scan.
func list[T any](ctx context.Context, ed *EntDriver, sel *entsql.Selector, scan func(scanner) (*T, error)) ([]*T, error) {
	if ed.closed.Load() {
		return nil, storage.ErrClosed
	}

	query, args := sel.Query()
	var rows entsql.Rows
	if err := ed.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, ed.wrap(err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := scan(&rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, ed.wrap(err)
	}
	return out, nil
}

// one runs sel and returns its first row, or NotFoundError.
func one[T any](ctx context.Context, ed *EntDriver, sel *entsql.Selector, scan func(scanner) (*T, error), kind, id string) (*T, error) {
	rows, err := list(ctx, ed, sel.Limit(1), scan)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, storage.NotFoundError{Kind: kind, ID: id}
	}
	return rows[0], nil
}

func (ed *EntDriver) wrap(err error) error {
	if errors.Is(err, sql.ErrConnDone) || ed.closed.Load() {
		return fmt.Errorf("%w: %w", storage.ErrClosed, err)
	}
	return err
}

// page applies a normalized page to sel.
func page(sel *entsql.Selector, p storage.Page) *entsql.Selector {
	p = p.Normalize()
	return sel.Limit(p.Limit).Offset(p.Offset)
}

// column is an optional equality filter; an empty value matches anything.
type column struct {
	name  string
	value string
}

// where adds an equality predicate for every non-empty value, in order, so
// the same filter always renders the same SQL.
func where(sel *entsql.Selector, eq []column) *entsql.Selector {
	for _, c := range eq {
		if c.value != "" {
			sel.Where(entsql.EQ(c.name, c.value))
		}
	}
	return sel
}
