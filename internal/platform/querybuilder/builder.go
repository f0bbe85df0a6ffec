package querybuilder

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxBindParams is the Postgres wire protocol limit on $n parameters in one
// statement.
const MaxBindParams = 65535

// sqlWriter accumulates SQL text and its positional arguments together so a
// placeholder number always matches its argument.
type sqlWriter struct {
	buf  strings.Builder
	args []any
}

func (w *sqlWriter) sql(parts ...string) {
	for _, p := range parts {
		w.buf.WriteString(p)
	}
}

func (w *sqlWriter) bind(value any) {
	w.args = append(w.args, value)
	w.buf.WriteByte('$')
	w.buf.WriteString(strconv.Itoa(len(w.args)))
}

func (w *sqlWriter) list(items []string) {
	w.sql(strings.Join(items, ", "))
}

// Condition renders one WHERE predicate.
type Condition interface {
	writeTo(w *sqlWriter)
}

type eqCondition struct {
	column string
	value  any
}

func Eq(column string, value any) Condition {
	return eqCondition{column: column, value: value}
}

func (c eqCondition) writeTo(w *sqlWriter) {
	w.sql(c.column, " = ")
	w.bind(c.value)
}

type exprCondition struct {
	expr string
	args []any
}

// Expr embeds a raw predicate; each ? is bound to the next arg. Surplus ?
// marks are left as-is.
func Expr(expr string, args ...any) Condition {
	return exprCondition{expr: expr, args: args}
}

func (c exprCondition) writeTo(w *sqlWriter) {
	rest := c.expr
	for _, arg := range c.args {
		i := strings.IndexByte(rest, '?')
		if i < 0 {
			break
		}
		w.sql(rest[:i])
		w.bind(arg)
		rest = rest[i+1:]
	}
	w.sql(rest)
}

type SelectBuilder struct {
	columns []string
	table   string
	where   []Condition
	orderBy []string
	limit   int
}

func Select(columns ...string) *SelectBuilder {
	return &SelectBuilder{columns: append([]string(nil), columns...)}
}

func (b *SelectBuilder) From(table string) *SelectBuilder {
	b.table = table
	return b
}

// Where ANDs conditions onto any added earlier.
func (b *SelectBuilder) Where(conditions ...Condition) *SelectBuilder {
	b.where = append(b.where, conditions...)
	return b
}

func (b *SelectBuilder) OrderBy(parts ...string) *SelectBuilder {
	b.orderBy = append(b.orderBy, parts...)
	return b
}

func (b *SelectBuilder) Limit(limit int) *SelectBuilder {
	b.limit = limit
	return b
}

func (b *SelectBuilder) ToSQL() (string, []any, error) {
	switch {
	case len(b.columns) == 0:
		return "", nil, fmt.Errorf("select columns are required")
	case strings.TrimSpace(b.table) == "":
		return "", nil, fmt.Errorf("select table is required")
	}

	var w sqlWriter
	w.sql("SELECT ")
	w.list(b.columns)
	w.sql(" FROM ", b.table)

	for i, c := range b.where {
		if i == 0 {
			w.sql(" WHERE ")
		} else {
			w.sql(" AND ")
		}
		c.writeTo(&w)
	}
	if len(b.orderBy) > 0 {
		w.sql(" ORDER BY ")
		w.list(b.orderBy)
	}
	if b.limit > 0 {
		w.sql(" LIMIT ", strconv.Itoa(b.limit))
	}
	return w.buf.String(), w.args, nil
}

type InsertBuilder struct {
	table   string
	columns []string
	rows    [][]any
	suffix  string
}

func InsertInto(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

func (b *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	b.columns = append([]string(nil), columns...)
	return b
}

// Values appends one row; call once per row.
func (b *InsertBuilder) Values(values ...any) *InsertBuilder {
	b.rows = append(b.rows, append([]any(nil), values...))
	return b
}

// Suffix is appended verbatim, typically an ON CONFLICT clause.
func (b *InsertBuilder) Suffix(sql string) *InsertBuilder {
	b.suffix = strings.TrimSpace(sql)
	return b
}

func (b *InsertBuilder) ToSQL() (string, []any, error) {
	switch {
	case strings.TrimSpace(b.table) == "":
		return "", nil, fmt.Errorf("insert table is required")
	case len(b.columns) == 0:
		return "", nil, fmt.Errorf("insert columns are required")
	case len(b.rows) == 0:
		return "", nil, fmt.Errorf("insert values are required")
	}
	if n := len(b.rows) * len(b.columns); n > MaxBindParams {
		return "", nil, fmt.Errorf("insert needs %d parameters, limit is %d; split the rows", n, MaxBindParams)
	}

	w := sqlWriter{args: make([]any, 0, len(b.rows)*len(b.columns))}
	w.sql("INSERT INTO ", b.table, " (")
	w.list(b.columns)
	w.sql(") VALUES ")

	for rowIdx, row := range b.rows {
		if len(row) != len(b.columns) {
			return "", nil, fmt.Errorf("insert row %d has %d values, expected %d", rowIdx, len(row), len(b.columns))
		}
		if rowIdx > 0 {
			w.sql(", ")
		}
		w.sql("(")
		for colIdx, value := range row {
			if colIdx > 0 {
				w.sql(", ")
			}
			w.bind(value)
		}
		w.sql(")")
	}

	if b.suffix != "" {
		w.sql(" ", b.suffix)
	}
	return w.buf.String(), w.args, nil
}
