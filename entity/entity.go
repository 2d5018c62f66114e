// Package entity maps in-memory row-shapes to database columns.
//
// A Descriptor is the set of column bindings for one table row. Each Field
// pairs a column name with a pointer into the owning struct plus flags that
// say whether the column participates in reads, writes, or key lookup. The
// query package consumes descriptors to build SELECT/INSERT/UPDATE text and
// to scan results directly into the bound struct.
package entity

import "fmt"

// SchemaError reports a malformed Descriptor (duplicate columns, or a key
// count other than one). It indicates a programming error in an entity's
// Bind method, not a runtime condition.
type SchemaError struct {
	Table string
	Msg   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("entity %q: %s", e.Table, e.Msg)
}

// Field binds one column to a value slot in the owning struct.
type Field struct {
	column string
	dest   any

	read  bool
	write bool
	key   bool
}

// Col starts a binding for column with dest pointing at the struct field the
// column scans into. Flags are off until set with Read/Write/Key.
func Col(column string, dest any) *Field {
	return &Field{column: column, dest: dest}
}

// Read includes the column in SELECT lists.
func (f *Field) Read() *Field { f.read = true; return f }

// Write includes the column in INSERT/UPDATE lists.
func (f *Field) Write() *Field { f.write = true; return f }

// Key marks the column as the primary key. A key column is always readable;
// it need not be writable (surrogate keys are database-assigned).
func (f *Field) Key() *Field { f.key = true; f.read = true; return f }

func (f *Field) Column() string { return f.column }
func (f *Field) Dest() any      { return f.dest }
func (f *Field) Readable() bool { return f.read }
func (f *Field) Writable() bool { return f.write }
func (f *Field) IsKey() bool    { return f.key }

// Value dereferences the bound slot for use as a query argument.
func (f *Field) Value() any {
	switch v := f.dest.(type) {
	case *int64:
		return *v
	case *int32:
		return *v
	case *int:
		return *v
	case *float64:
		return *v
	case *float32:
		return *v
	case *string:
		return *v
	case *bool:
		return *v
	case *[]int32:
		return *v
	case *[]int64:
		return *v
	case *[]float64:
		return *v
	case *[]string:
		return *v
	case *[]byte:
		return *v
	default:
		// Uncommon slot types (e.g. *time.Time, **string) pass through as
		// the pointer; pgx dereferences pointer arguments itself.
		return f.dest
	}
}

// Descriptor is an ordered collection of Fields describing one row-shape.
// Field order is irrelevant for correctness but kept stable so generated SQL
// text is reproducible.
type Descriptor struct {
	table  string
	fields []*Field
}

// NewDescriptor builds a descriptor for table. Validation is deferred to
// Check so Bind methods stay expression-shaped.
func NewDescriptor(table string, fields ...*Field) *Descriptor {
	return &Descriptor{table: table, fields: fields}
}

func (d *Descriptor) Table() string { return d.table }

// Fields returns the bindings in declaration order.
func (d *Descriptor) Fields() []*Field { return d.fields }

// Check verifies the descriptor invariants: unique column names and exactly
// one key field. Should never fail on a well-formed Bind method.
func (d *Descriptor) Check() error {
	seen := make(map[string]struct{}, len(d.fields))
	keys := 0
	for _, f := range d.fields {
		if _, dup := seen[f.column]; dup {
			return &SchemaError{Table: d.table, Msg: fmt.Sprintf("duplicate column %q", f.column)}
		}
		seen[f.column] = struct{}{}
		if f.key {
			keys++
		}
	}
	if keys != 1 {
		return &SchemaError{Table: d.table, Msg: fmt.Sprintf("expected exactly one key column, found %d", keys)}
	}
	return nil
}

// KeyField returns the single key binding.
func (d *Descriptor) KeyField() (*Field, error) {
	if err := d.Check(); err != nil {
		return nil, err
	}
	for _, f := range d.fields {
		if f.key {
			return f, nil
		}
	}
	// Unreachable after Check.
	return nil, &SchemaError{Table: d.table, Msg: "no key column"}
}

// ReadColumns returns the readable column names in declaration order.
func (d *Descriptor) ReadColumns() []string {
	out := make([]string, 0, len(d.fields))
	for _, f := range d.fields {
		if f.read {
			out = append(out, f.column)
		}
	}
	return out
}

// ReadDests returns scan destinations matching ReadColumns order.
func (d *Descriptor) ReadDests() []any {
	out := make([]any, 0, len(d.fields))
	for _, f := range d.fields {
		if f.read {
			out = append(out, f.dest)
		}
	}
	return out
}

// WriteColumns returns the writable column names in declaration order.
func (d *Descriptor) WriteColumns() []string {
	out := make([]string, 0, len(d.fields))
	for _, f := range d.fields {
		if f.write {
			out = append(out, f.column)
		}
	}
	return out
}

// WriteValues returns argument values matching WriteColumns order.
func (d *Descriptor) WriteValues() []any {
	out := make([]any, 0, len(d.fields))
	for _, f := range d.fields {
		if f.write {
			out = append(out, f.Value())
		}
	}
	return out
}

// Project restricts the read set to the named columns. The key column stays
// readable regardless. Used to materialize result rows with the same
// projection as the caller's example descriptor.
func (d *Descriptor) Project(columns []string) {
	want := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		want[c] = struct{}{}
	}
	for _, f := range d.fields {
		if f.key {
			continue
		}
		_, ok := want[f.column]
		f.read = ok
	}
}
