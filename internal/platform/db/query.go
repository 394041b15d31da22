package db

import (
	"fmt"
)

// Query builds the filtered SELECT and COUNT statements the list endpoints
// share. Filters are ANDed in the order they are added.
type Query struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	orderBy string
}

func NewQuery(table, cols string) *Query {
	return &Query{table: table, cols: cols}
}

// Where appends clause, where each "?" stands for the next argument.
func (q *Query) Where(clause string, args ...interface{}) *Query {
	var out []byte
	n := 0
	for i := 0; i < len(clause); i++ {
		if clause[i] == '?' && n < len(args) {
			out = append(out, fmt.Sprintf("$%d", len(q.args)+n+1)...)
			n++
			continue
		}
		out = append(out, clause[i])
	}
	q.where += " AND " + string(out)
	q.args = append(q.args, args...)
	return q
}

// Eq filters column = arg.
func (q *Query) Eq(column string, arg interface{}) *Query {
	return q.Where(column+" = ?", arg)
}

func (q *Query) OrderBy(orderBy string) *Query {
	q.orderBy = orderBy
	return q
}

func (q *Query) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.table, q.where)
}

func (q *Query) Args() []interface{} {
	return q.args
}

// DataSQL returns the select with ORDER BY and LIMIT/OFFSET. A non-positive
// limit returns every row.
func (q *Query) DataSQL(limit, offset int) string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.table, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(q.args)+1, len(q.args)+2)
	}
	return sql
}

func (q *Query) DataArgs(limit, offset int) []interface{} {
	if limit <= 0 {
		return q.args
	}
	out := make([]interface{}, len(q.args), len(q.args)+2)
	copy(out, q.args)
	return append(out, limit, offset)
}
