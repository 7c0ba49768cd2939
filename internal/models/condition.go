package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gatekeep-app/gatekeep/internal/errors"
)

// Operator is the closed set of predicate operators a condition may use.
// Unknown operators are rejected when a condition is built or decoded, not at
// evaluation time.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpNotEquals  Operator = "not_equals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
	OpGreater    Operator = "gt"
	OpLess       Operator = "lt"
	OpIn         Operator = "in"
	OpRegex      Operator = "regex"
)

// Valid reports whether o is a supported operator.
func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpStartsWith, OpEndsWith,
		OpGreater, OpLess, OpIn, OpRegex:
		return true
	}
	return false
}

// Condition is one field/operator/value predicate within a rule. Field may be
// a dotted path into the action payload ("recipient.domain").
type Condition struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// NewCondition builds a validated condition.
func NewCondition(field string, op Operator, value interface{}) (Condition, error) {
	c := Condition{Field: field, Operator: op, Value: value}
	if err := c.Validate(); err != nil {
		return Condition{}, err
	}
	return c, nil
}

// Validate checks the condition is structurally usable.
func (c Condition) Validate() error {
	if strings.TrimSpace(c.Field) == "" {
		return &errors.ErrValidation{Field: "field", Message: "condition field is required"}
	}
	if !c.Operator.Valid() {
		return &errors.ErrValidation{Field: "operator", Message: fmt.Sprintf("unknown operator %q", string(c.Operator))}
	}
	return nil
}

// Matches evaluates the condition against an action payload. A field path that
// hits a missing key at any segment resolves to undefined, and every operator
// evaluates undefined to false. Evaluation has no side effects and is safe for
// concurrent use.
func (c Condition) Matches(data map[string]interface{}) bool {
	fieldVal, ok := resolvePath(data, c.Field)
	if !ok {
		return false
	}

	switch c.Operator {
	case OpEquals:
		return looseEqual(fieldVal, c.Value)
	case OpNotEquals:
		return !looseEqual(fieldVal, c.Value)
	case OpContains:
		return strings.Contains(lowerString(fieldVal), lowerString(c.Value))
	case OpStartsWith:
		return strings.HasPrefix(lowerString(fieldVal), lowerString(c.Value))
	case OpEndsWith:
		return strings.HasSuffix(lowerString(fieldVal), lowerString(c.Value))
	case OpGreater:
		f, v, ok := bothNumeric(fieldVal, c.Value)
		return ok && f > v
	case OpLess:
		f, v, ok := bothNumeric(fieldVal, c.Value)
		return ok && f < v
	case OpIn:
		for _, member := range members(c.Value) {
			if looseEqual(fieldVal, member) {
				return true
			}
		}
		return false
	case OpRegex:
		re, err := regexp.Compile(stringify(c.Value))
		if err != nil {
			// an unparsable pattern is "no match", never a crash
			return false
		}
		return re.MatchString(stringify(fieldVal))
	}
	return false
}

// resolvePath walks a dotted path through nested maps. The second return is
// false when any segment is missing or a non-map is traversed into.
func resolvePath(data map[string]interface{}, path string) (interface{}, bool) {
	segments := strings.Split(path, ".")
	var current interface{} = data
	for _, seg := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// looseEqual compares as numbers when both sides are numeric, as booleans when
// both are booleans, and as strings otherwise.
func looseEqual(a, b interface{}) bool {
	if af, bf, ok := bothNumeric(a, b); ok {
		return af == bf
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		return ab == bb
	}
	return stringify(a) == stringify(b)
}

func bothNumeric(a, b interface{}) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return af, bf, aok && bok
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func lowerString(v interface{}) string {
	return strings.ToLower(stringify(v))
}

// members expands an "in" operand: either a literal list or a comma-separated
// string, split and trimmed.
func members(v interface{}) []interface{} {
	switch list := v.(type) {
	case []interface{}:
		return list
	case string:
		parts := strings.Split(list, ",")
		out := make([]interface{}, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	case nil:
		return nil
	}
	return []interface{}{v}
}
