// Package query turns entity descriptors into parameterized SQL.
//
// Every operation takes an explicit pool and schema; the package holds no
// connection state of its own. Result sets materialize as fresh entity
// values with the same projection as the caller's example, scanned in the
// descriptor's declared column order.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manipulab/objectkit/entity"
)

// QueryError wraps a store-side failure (connectivity, malformed fragment,
// execution error). Reads are idempotent, so callers may retry.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *QueryError) Unwrap() error { return e.Err }

// NotFoundError reports that a load-by-key matched no row. It is an expected
// outcome, distinct from QueryError.
type NotFoundError struct {
	Table string
	Key   any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no row with key %v", e.Table, e.Key)
}

// Bound constrains the entity types the builder operates on: pointer types
// whose Bind method produces the column descriptor for the pointed-to value.
type Bound[T any] interface {
	*T
	Bind() *entity.Descriptor
}

// qualify returns the schema-qualified table reference.
func qualify(schema, table string) (string, error) {
	quoted, err := quoteIdent(schema)
	if err != nil {
		return "", fmt.Errorf("invalid schema: %w", err)
	}
	if !validIdent(table) {
		return "", fmt.Errorf("invalid table %q", table)
	}
	return quoted + "." + table, nil
}

// List runs SELECT <readable columns> FROM <table> with the given filter and
// returns one freshly bound entity per row, ordered by key for reproducible
// results. No matching rows yields an empty (nil) slice, not an error.
func List[T any, PT Bound[T]](ctx context.Context, pool *pgxpool.Pool, schema string, example PT, where Where) ([]*T, error) {
	if pool == nil {
		return nil, &QueryError{Op: "list", Err: errors.New("pool is required")}
	}
	d := example.Bind()
	if err := d.Check(); err != nil {
		return nil, err
	}
	keyf, err := d.KeyField()
	if err != nil {
		return nil, err
	}
	table, err := qualify(schema, d.Table())
	if err != nil {
		return nil, &QueryError{Op: "list " + d.Table(), Err: err}
	}
	readCols := d.ReadColumns()

	args := pgx.NamedArgs{}
	whereSQL, err := where.compile(args)
	if err != nil {
		return nil, &QueryError{Op: "list " + d.Table(), Err: err}
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s ASC",
		strings.Join(readCols, ", "), table, whereSQL, keyf.Column())

	rows, err := pool.Query(ctx, sql, args)
	if err != nil {
		return nil, &QueryError{Op: "list " + d.Table(), Err: err}
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v := PT(new(T))
		rd := v.Bind()
		rd.Project(readCols)
		if err := rows.Scan(rd.ReadDests()...); err != nil {
			return nil, &QueryError{Op: "scan " + d.Table(), Err: err}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Op: "list " + d.Table(), Err: err}
	}
	return out, nil
}

// Count returns the number of rows matching the filter.
func Count[T any, PT Bound[T]](ctx context.Context, pool *pgxpool.Pool, schema string, example PT, where Where) (int64, error) {
	if pool == nil {
		return 0, &QueryError{Op: "count", Err: errors.New("pool is required")}
	}
	d := example.Bind()
	if err := d.Check(); err != nil {
		return 0, err
	}
	table, err := qualify(schema, d.Table())
	if err != nil {
		return 0, &QueryError{Op: "count " + d.Table(), Err: err}
	}

	args := pgx.NamedArgs{}
	whereSQL, err := where.compile(args)
	if err != nil {
		return 0, &QueryError{Op: "count " + d.Table(), Err: err}
	}

	var n int64
	sql := fmt.Sprintf("SELECT count(*) FROM %s%s", table, whereSQL)
	if err := pool.QueryRow(ctx, sql, args).Scan(&n); err != nil {
		return 0, &QueryError{Op: "count " + d.Table(), Err: err}
	}
	return n, nil
}

// Load fills dst's readable fields from the single row identified by its
// populated key field. A missing row is NotFoundError.
func Load[T any, PT Bound[T]](ctx context.Context, pool *pgxpool.Pool, schema string, dst PT) error {
	if pool == nil {
		return &QueryError{Op: "load", Err: errors.New("pool is required")}
	}
	d := dst.Bind()
	if err := d.Check(); err != nil {
		return err
	}
	keyf, err := d.KeyField()
	if err != nil {
		return err
	}
	table, err := qualify(schema, d.Table())
	if err != nil {
		return &QueryError{Op: "load " + d.Table(), Err: err}
	}
	readCols := d.ReadColumns()

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = @key",
		strings.Join(readCols, ", "), table, keyf.Column())
	args := pgx.NamedArgs{"key": keyf.Value()}

	if err := pool.QueryRow(ctx, sql, args).Scan(d.ReadDests()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Table: d.Table(), Key: keyf.Value()}
		}
		return &QueryError{Op: "load " + d.Table(), Err: err}
	}
	return nil
}

// Insert writes src's writable fields as a new row and scans the
// database-assigned key back into the key field.
func Insert[T any, PT Bound[T]](ctx context.Context, pool *pgxpool.Pool, schema string, src PT) error {
	if pool == nil {
		return &QueryError{Op: "insert", Err: errors.New("pool is required")}
	}
	d := src.Bind()
	if err := d.Check(); err != nil {
		return err
	}
	keyf, err := d.KeyField()
	if err != nil {
		return err
	}
	table, err := qualify(schema, d.Table())
	if err != nil {
		return &QueryError{Op: "insert " + d.Table(), Err: err}
	}
	writeCols := d.WriteColumns()
	if len(writeCols) == 0 {
		return &QueryError{Op: "insert " + d.Table(), Err: errors.New("no writable columns")}
	}

	args := pgx.NamedArgs{}
	placeholders := make([]string, len(writeCols))
	for i, v := range d.WriteValues() {
		name := fmt.Sprintf("v%d", i)
		placeholders[i] = "@" + name
		args[name] = v
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		table, strings.Join(writeCols, ", "), strings.Join(placeholders, ", "), keyf.Column())
	if err := pool.QueryRow(ctx, sql, args).Scan(keyf.Dest()); err != nil {
		return &QueryError{Op: "insert " + d.Table(), Err: err}
	}
	return nil
}

// Save updates the row identified by src's key field with src's writable
// fields. A missing row is NotFoundError.
func Save[T any, PT Bound[T]](ctx context.Context, pool *pgxpool.Pool, schema string, src PT) error {
	if pool == nil {
		return &QueryError{Op: "save", Err: errors.New("pool is required")}
	}
	d := src.Bind()
	if err := d.Check(); err != nil {
		return err
	}
	keyf, err := d.KeyField()
	if err != nil {
		return err
	}
	table, err := qualify(schema, d.Table())
	if err != nil {
		return &QueryError{Op: "save " + d.Table(), Err: err}
	}
	writeCols := d.WriteColumns()
	if len(writeCols) == 0 {
		return &QueryError{Op: "save " + d.Table(), Err: errors.New("no writable columns")}
	}

	args := pgx.NamedArgs{"key": keyf.Value()}
	sets := make([]string, len(writeCols))
	for i, v := range d.WriteValues() {
		name := fmt.Sprintf("v%d", i)
		sets[i] = writeCols[i] + " = @" + name
		args[name] = v
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = @key",
		table, strings.Join(sets, ", "), keyf.Column())
	tag, err := pool.Exec(ctx, sql, args)
	if err != nil {
		return &QueryError{Op: "save " + d.Table(), Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Table: d.Table(), Key: keyf.Value()}
	}
	return nil
}
