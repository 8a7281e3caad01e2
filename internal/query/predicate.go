// Package query provides a typed predicate tree rendered to parameterized
// SQL by a single function. Values only ever travel as placeholders; no
// caller-supplied text is interpolated into query strings.
package query

import (
	"fmt"
	"strings"
)

// Op identifies a predicate operator.
type Op string

const (
	// OpEq renders as "col = ?".
	OpEq Op = "eq"
	// OpIn renders as "col IN (?, ...)".
	OpIn Op = "in"
	// OpNotIn renders as "col NOT IN (?, ...)".
	OpNotIn Op = "not-in"
	// OpBetween renders as "col BETWEEN ? AND ?" (closed interval).
	OpBetween Op = "between"
)

// Predicate is one condition on a single column.
type Predicate struct {
	Column string
	Op     Op
	Values []any
}

// Eq builds an equality predicate.
func Eq(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpEq, Values: []any{value}}
}

// In builds a membership predicate.
func In(column string, values ...any) Predicate {
	return Predicate{Column: column, Op: OpIn, Values: values}
}

// NotIn builds a negated membership predicate.
func NotIn(column string, values ...any) Predicate {
	return Predicate{Column: column, Op: OpNotIn, Values: values}
}

// Between builds a closed-interval range predicate.
func Between(column string, lo, hi any) Predicate {
	return Predicate{Column: column, Op: OpBetween, Values: []any{lo, hi}}
}

// InStrings builds a membership predicate from a string slice.
func InStrings(column string, values []string) Predicate {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Predicate{Column: column, Op: OpIn, Values: vs}
}

// PredicateSet is a conjunction of predicates.
type PredicateSet []Predicate

// With returns a new set with extra predicates appended. The receiver is
// not modified, so a translated filter set can be reused across queries.
func (ps PredicateSet) With(extra ...Predicate) PredicateSet {
	out := make(PredicateSet, 0, len(ps)+len(extra))
	out = append(out, ps...)
	out = append(out, extra...)
	return out
}

// Render translates the set to a SQL fragment and its bind arguments. The
// fragment contains no leading keyword; an empty set renders to "1=1" so
// callers can always splice it after WHERE or AND. An empty IN-list can
// match nothing and renders to "1=0"; an empty NOT IN-list excludes
// nothing and is dropped.
func (ps PredicateSet) Render() (string, []any) {
	if len(ps) == 0 {
		return "1=1", nil
	}

	clauses := make([]string, 0, len(ps))
	args := make([]any, 0, len(ps))

	for _, p := range ps {
		switch p.Op {
		case OpEq:
			clauses = append(clauses, fmt.Sprintf("%s = ?", p.Column))
			args = append(args, p.Values[0])
		case OpIn:
			if len(p.Values) == 0 {
				clauses = append(clauses, "1=0")
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", p.Column, placeholders(len(p.Values))))
			args = append(args, p.Values...)
		case OpNotIn:
			if len(p.Values) == 0 {
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s NOT IN (%s)", p.Column, placeholders(len(p.Values))))
			args = append(args, p.Values...)
		case OpBetween:
			clauses = append(clauses, fmt.Sprintf("%s BETWEEN ? AND ?", p.Column))
			args = append(args, p.Values[0], p.Values[1])
		}
	}

	if len(clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
