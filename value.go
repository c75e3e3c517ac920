package sheetedit

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "empty"
	}
}

// Value is a single spreadsheet cell: empty, text or number
type Value struct {
	kind Kind
	text string
	num  float64
}

// Empty returns the empty cell value
func Empty() Value {
	return Value{}
}

// Text returns a text value. An empty string is the empty value.
func Text(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: KindText, text: s}
}

// Number returns a numeric value
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Kind returns the variant held by v
func (v Value) Kind() Kind {
	return v.kind
}

// IsEmpty reports whether v is the empty value
func (v Value) IsEmpty() bool {
	return v.kind == KindEmpty
}

// Float returns the numeric payload. ok is false for non-numeric values.
func (v Value) Float() (f float64, ok bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// String returns the text form written back to the store
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return formatNumber(v.num)
	default:
		return ""
	}
}

// Equal compares two cells. Numbers compare numerically, everything else by text form.
func (v Value) Equal(o Value) bool {
	if v.kind == KindNumber && o.kind == KindNumber {
		return v.num == o.num
	}
	return v.String() == o.String()
}

// MarshalJSON encodes empty as null, text as string and number as number
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return json.Marshal(formatNumber(v.num))
		}
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, strings, numbers and booleans
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case nil:
		*v = Empty()
	case string:
		*v = Text(val)
	case float64:
		*v = Number(val)
	case bool:
		*v = Text(strings.ToUpper(strconv.FormatBool(val)))
	default:
		return fmt.Errorf("unsupported cell value: %s", string(data))
	}
	return nil
}

// ParseCell converts a raw store cell into a Value
func ParseCell(raw interface{}) Value {
	switch val := raw.(type) {
	case nil:
		return Empty()
	case Value:
		return val
	case string:
		return parseText(val)
	case float64:
		return Number(val)
	case float32:
		return Number(float64(val))
	case int:
		return Number(float64(val))
	case int64:
		return Number(float64(val))
	case int32:
		return Number(float64(val))
	case bool:
		if val {
			return Text("TRUE")
		}
		return Text("FALSE")
	default:
		return Text(fmt.Sprintf("%v", val))
	}
}

// parseText turns numeric-looking strings into numbers.
// Strings with a leading zero (phone numbers, codes) stay text.
func parseText(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Empty()
	}
	if hasLeadingZero(trimmed) {
		return Text(s)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return Number(f)
	}
	return Text(s)
}

func hasLeadingZero(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
