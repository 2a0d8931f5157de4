// Package querysql compiles where-clause predicates into parameterized
// SQLite queries, so a row source can select its rows in the database
// instead of filtering them in the engine.
package querysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/sweep/internal/filterir"
	"github.com/roach88/sweep/internal/ir"
)

// Select describes a single-table query.
type Select struct {
	// From is the table name.
	From string

	// Columns lists the selected columns. Empty selects every column.
	Columns []string

	// Where restricts the rows. Nil selects every row.
	Where filterir.Predicate

	// OrderBy is the ordering column. Defaults to "id".
	OrderBy string

	// Descending reverses the row order.
	Descending bool
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Compiler compiles Select queries to parameterized SQL for SQLite.
//
// Every query carries an ORDER BY so a row source yields the same order on
// each pass. Literals are always bound as parameters, never interpolated.
// Identifiers cannot be parameterized, so they are checked against a
// conservative pattern instead.
type Compiler struct{}

// NewCompiler creates a Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile converts q to SQL and its parameters.
func (c *Compiler) Compile(q Select) (string, []any, error) {
	if err := checkIdentifier("table", q.From); err != nil {
		return "", nil, err
	}

	columns := "*"
	if len(q.Columns) > 0 {
		for _, col := range q.Columns {
			if err := checkIdentifier("column", col); err != nil {
				return "", nil, err
			}
		}
		columns = strings.Join(q.Columns, ", ")
	}

	var where string
	var params []any
	if q.Where != nil {
		if err := filterir.Validate(q.Where); err != nil {
			return "", nil, fmt.Errorf("compile where: %w", err)
		}
		clause, p, err := c.compilePredicate(q.Where)
		if err != nil {
			return "", nil, fmt.Errorf("compile where: %w", err)
		}
		where = " WHERE " + clause
		params = p
	}

	order, err := c.orderKey(q)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s", columns, q.From, where, order)
	return sql, params, nil
}

// orderKey returns the ORDER BY clause. COLLATE BINARY keeps text
// ordering identical across SQLite builds.
func (c *Compiler) orderKey(q Select) (string, error) {
	col := q.OrderBy
	if col == "" {
		col = "id"
	}
	if err := checkIdentifier("order column", col); err != nil {
		return "", err
	}
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	return fmt.Sprintf("%s COLLATE BINARY %s", col, dir), nil
}

// compilePredicate compiles p to a WHERE fragment.
//
// SQL comparisons against NULL are never true, so a row whose column is
// NULL does not match a Compare, nor its negation.
func (c *Compiler) compilePredicate(p filterir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case filterir.Compare:
		return c.compileCompare(pred)
	case filterir.Exists:
		if err := checkIdentifier("field", pred.Field); err != nil {
			return "", nil, err
		}
		return pred.Field + " IS NOT NULL", nil, nil
	case filterir.And:
		return c.compileList(pred.Predicates, " AND ")
	case filterir.Or:
		return c.compileList(pred.Predicates, " OR ")
	case filterir.Not:
		sql, params, err := c.compilePredicate(pred.Predicate)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

var sqlOps = map[filterir.Op]string{
	filterir.OpEq:  "=",
	filterir.OpNe:  "<>",
	filterir.OpGt:  ">",
	filterir.OpGte: ">=",
	filterir.OpLt:  "<",
	filterir.OpLte: "<=",
}

func (c *Compiler) compileCompare(cmp filterir.Compare) (string, []any, error) {
	if err := checkIdentifier("field", cmp.Field); err != nil {
		return "", nil, err
	}
	param, err := valueToParam(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", cmp.Field, err)
	}

	if cmp.Op == filterir.OpContains {
		return fmt.Sprintf("instr(%s, ?) > 0", cmp.Field), []any{param}, nil
	}

	op, ok := sqlOps[cmp.Op]
	if !ok {
		return "", nil, fmt.Errorf("%s: unsupported operator %q", cmp.Field, cmp.Op)
	}
	return fmt.Sprintf("%s %s ?", cmp.Field, op), []any{param}, nil
}

func (c *Compiler) compileList(preds []filterir.Predicate, sep string) (string, []any, error) {
	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps, err := c.compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return "(" + strings.Join(parts, sep) + ")", params, nil
}

// valueToParam converts a canonical literal to a SQL parameter. Arrays and
// objects have no column equivalent.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("%T cannot be used as a SQL parameter", v)
	}
}

func checkIdentifier(what, name string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("invalid %s name %q: must be a plain SQL identifier", what, name)
	}
	return nil
}
