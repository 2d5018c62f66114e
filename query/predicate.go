package query

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

type condKind int

const (
	condEq condKind = iota
	condIn
	condHasElem
)

// Cond is one column/operator/value predicate term. Terms combine with AND;
// values are always passed as bind arguments, never inlined into SQL text.
type Cond struct {
	kind   condKind
	column string
	value  any
}

// Eq matches rows where column equals value.
func Eq(column string, value any) Cond {
	return Cond{kind: condEq, column: column, value: value}
}

// In matches rows where column equals any element of values (a slice; pgx
// maps it to a Postgres array, producing `column = ANY(@arg)`).
func In(column string, values any) Cond {
	return Cond{kind: condIn, column: column, value: values}
}

// HasElem matches rows where value is an element of the array column,
// producing `@arg = ANY(column)`.
func HasElem(column string, value any) Cond {
	return Cond{kind: condHasElem, column: column, value: value}
}

func (c Cond) expr(argName string) (string, error) {
	if !validIdent(c.column) {
		return "", fmt.Errorf("invalid column %q in predicate", c.column)
	}
	switch c.kind {
	case condEq:
		return fmt.Sprintf("%s = @%s", c.column, argName), nil
	case condIn:
		return fmt.Sprintf("%s = ANY(@%s)", c.column, argName), nil
	case condHasElem:
		return fmt.Sprintf("@%s = ANY(%s)", argName, c.column), nil
	default:
		return "", fmt.Errorf("unknown predicate kind %d", c.kind)
	}
}

// Where is the filter applied to a List/Count query. The zero value matches
// all rows.
//
// Structured conds cover the common lookups. FragmentSQL is the escape hatch
// for host-owned constraints that need raw SQL (subqueries and the like): it
// is appended verbatim as one parenthesized AND term and never parsed,
// rewritten, or cached on — treat it as trusted text and keep user input out
// of it, referencing FragmentArgs via pgx '@name' placeholders instead.
type Where struct {
	conds        []Cond
	fragmentSQL  string
	fragmentArgs map[string]any
}

// All matches every row.
func All() Where { return Where{} }

// And combines conds into a conjunction.
func And(conds ...Cond) Where { return Where{conds: conds} }

// Fragment builds a filter from a trusted SQL fragment with named args.
func Fragment(sql string, args map[string]any) Where {
	return Where{fragmentSQL: sql, fragmentArgs: args}
}

// WithFragment attaches a trusted SQL fragment to an existing filter.
func (w Where) WithFragment(sql string, args map[string]any) Where {
	w.fragmentSQL = sql
	w.fragmentArgs = args
	return w
}

// compile renders the WHERE clause (with leading " WHERE ", or "" for no
// filter) and fills args with the bind values. Builder-owned args are named
// w0, w1, ... so fragment args must not reuse those names.
func (w Where) compile(args pgx.NamedArgs) (string, error) {
	parts := make([]string, 0, len(w.conds)+1)
	for i, c := range w.conds {
		name := fmt.Sprintf("w%d", i)
		expr, err := c.expr(name)
		if err != nil {
			return "", err
		}
		args[name] = c.value
		parts = append(parts, expr)
	}
	if strings.TrimSpace(w.fragmentSQL) != "" {
		parts = append(parts, "("+w.fragmentSQL+")")
		if err := mergeNamedArgs(args, w.fragmentArgs); err != nil {
			return "", err
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}
