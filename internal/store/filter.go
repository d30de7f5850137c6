package store

import (
	"fmt"
	"strings"
)

// predicate is one parameterized WHERE condition. Expr uses %s where the
// placeholder goes, e.g. "title LIKE %s". Composition never splices
// values into SQL; every value travels as a bind argument.
type predicate struct {
	expr string
	args []any
}

// whereBuilder accumulates predicates and renders them with the
// backend's placeholder style.
type whereBuilder struct {
	preds []predicate
}

// where appends a condition. expr contains one %s per argument.
func (w *whereBuilder) where(expr string, args ...any) {
	w.preds = append(w.preds, predicate{expr: expr, args: args})
}

// build renders the accumulated predicates into a WHERE clause and the
// flattened argument list. startIdx is the first placeholder number
// (Postgres $n style); pass 0 for "?" placeholders.
func (w *whereBuilder) build(startIdx int) (string, []any) {
	if len(w.preds) == 0 {
		return "", nil
	}

	var clauses []string
	var args []any
	n := startIdx

	for _, p := range w.preds {
		placeholders := make([]any, len(p.args))
		for i := range p.args {
			if startIdx > 0 {
				placeholders[i] = fmt.Sprintf("$%d", n)
				n++
			} else {
				placeholders[i] = "?"
			}
		}
		clauses = append(clauses, fmt.Sprintf(p.expr, placeholders...))
		args = append(args, p.args...)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

// next returns the placeholder index following the built clause, for
// callers that append LIMIT/OFFSET parameters after the WHERE.
func (w *whereBuilder) next(startIdx int) int {
	n := startIdx
	for _, p := range w.preds {
		n += len(p.args)
	}
	return n
}

// clampLimit applies the default and maximum page size for list queries.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
