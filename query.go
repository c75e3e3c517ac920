package sheetedit

import (
	"fmt"
	"strings"
)

// Condition represents a single query condition
type Condition struct {
	Column   string  // column name
	Operator string  // ==, !=, >, >=, <, <=, in, between
	Value    Value   // operand of the comparison operators
	Values   []Value // candidates for in, [min, max] for between
}

// Query represents a query with multiple conditions
type Query struct {
	Conditions []Condition // all must hold
	Limit      int
	Offset     int
}

// Eq builds an equality condition
func Eq(column string, v Value) Condition {
	return Condition{Column: column, Operator: "==", Value: v}
}

// evalCondition evaluates a single condition against a row
func evalCondition(row *Row, condition Condition) bool {
	value := row.Get(condition.Column)

	switch condition.Operator {
	case "==":
		return value.Equal(condition.Value)
	case "!=":
		return !value.Equal(condition.Value)
	case ">":
		return compareNumbers(value, condition.Value, func(a, b float64) bool { return a > b })
	case ">=":
		return compareNumbers(value, condition.Value, func(a, b float64) bool { return a >= b })
	case "<":
		return compareNumbers(value, condition.Value, func(a, b float64) bool { return a < b })
	case "<=":
		return compareNumbers(value, condition.Value, func(a, b float64) bool { return a <= b })
	case "in":
		for _, item := range condition.Values {
			if value.Equal(item) {
				return true
			}
		}
		return false
	case "between":
		if len(condition.Values) != 2 {
			return false
		}
		return compareNumbers(value, condition.Values[0], func(a, b float64) bool { return a >= b }) &&
			compareNumbers(value, condition.Values[1], func(a, b float64) bool { return a <= b })
	default:
		return false
	}
}

// MatchesQuery checks if a row matches all conditions in the query
func (r *Row) MatchesQuery(query Query) bool {
	for _, condition := range query.Conditions {
		if !evalCondition(r, condition) {
			return false
		}
	}
	return true
}

// compareNumbers is false unless both sides are numbers
func compareNumbers(a, b Value, cmp func(a, b float64) bool) bool {
	af, ok := a.Float()
	if !ok {
		return false
	}
	bf, ok := b.Float()
	if !ok {
		return false
	}
	return cmp(af, bf)
}

// ApplyQuery filters rows based on query conditions, keeping their order
func ApplyQuery(rows []*Row, query Query) []*Row {
	results := make([]*Row, 0)

	for _, row := range rows {
		if row.MatchesQuery(query) {
			results = append(results, row)
		}
	}

	if query.Offset > 0 && query.Offset < len(results) {
		results = results[query.Offset:]
	} else if query.Offset > 0 && query.Offset >= len(results) {
		return []*Row{}
	}

	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}

	return results
}

// ValidateQuery validates query structure
func ValidateQuery(query Query) error {
	for i, cond := range query.Conditions {
		switch cond.Operator {
		case "==", "!=", ">", ">=", "<", "<=", "in":
		case "between":
			if len(cond.Values) != 2 {
				return fmt.Errorf("operator 'between' requires 2 values in condition %d", i)
			}
		default:
			return fmt.Errorf("invalid operator '%s' in condition %d", cond.Operator, i)
		}

		if cond.Column == "" {
			return fmt.Errorf("empty column name in condition %d", i)
		}
	}

	if query.Limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}
	if query.Offset < 0 {
		return fmt.Errorf("offset must be non-negative")
	}

	return nil
}

// conditionOperators as written in expressions; longer spellings first so
// ">=" is not read as ">"
var conditionOperators = []string{" between ", " in ", "==", "!=", ">=", "<=", ">", "<", "="}

// ParseCondition reads a condition written as "column op value". Besides the
// comparison operators it accepts "column in a,b,c" and
// "column between min..max". The first operator in expr splits it, and
// operands are parsed like sheet cells.
func ParseCondition(expr string) (Condition, error) {
	at, op := -1, ""
	for _, candidate := range conditionOperators {
		if i := strings.Index(expr, candidate); i > 0 && (at == -1 || i < at) {
			at, op = i, candidate
		}
	}
	if at == -1 {
		return Condition{}, fmt.Errorf("condition %q: expected column, operator and value", expr)
	}

	cond := Condition{Column: strings.TrimSpace(expr[:at])}
	operand := strings.TrimSpace(expr[at+len(op):])

	switch op {
	case " between ":
		lo, hi, ok := strings.Cut(operand, "..")
		if !ok {
			return Condition{}, fmt.Errorf("condition %q: between needs min..max", expr)
		}
		cond.Operator = "between"
		cond.Values = []Value{parseText(strings.TrimSpace(lo)), parseText(strings.TrimSpace(hi))}
	case " in ":
		cond.Operator = "in"
		for _, item := range strings.Split(operand, ",") {
			cond.Values = append(cond.Values, parseText(strings.TrimSpace(item)))
		}
	case "=":
		cond.Operator = "=="
		cond.Value = parseText(operand)
	default:
		cond.Operator = op
		cond.Value = parseText(operand)
	}
	return cond, nil
}
