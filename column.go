package sheetedit

import (
	"fmt"
	"strings"
)

// ColumnType is the kind of value an edited cell must hold
type ColumnType string

const (
	ColumnText   ColumnType = "text"
	ColumnNumber ColumnType = "number"
)

// ParseColumnType validates a configured column type
func ParseColumnType(s string) (ColumnType, error) {
	switch ColumnType(s) {
	case "", ColumnText:
		return ColumnText, nil
	case ColumnNumber:
		return ColumnNumber, nil
	default:
		return "", fmt.Errorf("unknown column type %q (expected %q or %q)", s, ColumnText, ColumnNumber)
	}
}

// ColumnRule constrains the edited cells of one column
type ColumnRule struct {
	Name     string
	Type     ColumnType
	Required bool
}

// ColumnRules apply to edited rows only. Rules naming a column the sheet
// does not have are ignored.
type ColumnRules []ColumnRule

// CommissionColumns are the editor settings of the commission sheet
func CommissionColumns() ColumnRules {
	return ColumnRules{
		{Name: "수수료율입력", Type: ColumnNumber, Required: true},
		{Name: "수수료금액입력", Type: ColumnNumber, Required: true},
		{Name: "전기차보조금", Type: ColumnNumber, Required: true},
		{Name: "전화번호", Type: ColumnText, Required: true},
	}
}

// Normalize turns numeric text in number columns into numbers, so a
// client sending "3.5" does not differ from a stored 3.5
func (rules ColumnRules) Normalize(t *Table) {
	for _, rule := range rules {
		if rule.Type != ColumnNumber || !t.HasColumn(rule.Name) {
			continue
		}
		for _, r := range t.Rows {
			v := r.Get(rule.Name)
			if v.Kind() != KindText {
				continue
			}
			if n := parseText(v.String()); n.Kind() == KindNumber {
				r.Set(rule.Name, n)
			}
		}
	}
}

// Check reports every changed or added cell that breaks a rule
func (rules ColumnRules) Check(cs *ChangeSet) error {
	var problems []CellProblem
	check := func(key int, tempID string, get func(col string) Value) {
		for _, rule := range rules {
			if !hasColumn(cs.Columns, rule.Name) {
				continue
			}
			v := get(rule.Name)
			switch {
			case strings.TrimSpace(v.String()) == "":
				if rule.Required {
					problems = append(problems, CellProblem{Row: key, TempID: tempID, Column: rule.Name, Reason: "is required"})
				}
			case rule.Type == ColumnNumber && v.Kind() != KindNumber:
				problems = append(problems, CellProblem{Row: key, TempID: tempID, Column: rule.Name, Reason: fmt.Sprintf("%q is not a number", v.String())})
			}
		}
	}

	for _, c := range cs.Changes {
		c := c
		check(c.Key, "", func(col string) Value {
			for i, name := range cs.Columns {
				if name == col {
					return c.Values[i]
				}
			}
			return Empty()
		})
	}
	for _, r := range cs.Added {
		check(0, r.TempID, r.Get)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// CellProblem is one rejected cell
type CellProblem struct {
	Row    int    `json:"row,omitempty"`
	TempID string `json:"temp_id,omitempty"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

func (p CellProblem) String() string {
	if p.Row == 0 {
		return fmt.Sprintf("new row %s: %s %s", p.TempID, p.Column, p.Reason)
	}
	return fmt.Sprintf("row %d: %s %s", p.Row, p.Column, p.Reason)
}

// ValidationError reports edited cells that break the column rules
type ValidationError struct {
	Problems []CellProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return "invalid cells: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidCell }

func hasColumn(columns []string, col string) bool {
	for _, c := range columns {
		if c == col {
			return true
		}
	}
	return false
}
