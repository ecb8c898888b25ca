package models

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ConditionKind tags a visibility predicate.
type ConditionKind string

const (
	CondEquals    ConditionKind = "equals"
	CondNotEquals ConditionKind = "not_equals"
	CondIn        ConditionKind = "in"
	CondTruthy    ConditionKind = "truthy"
	CondFalsy     ConditionKind = "falsy"
	CondPresent   ConditionKind = "present"
	CondGTE       ConditionKind = "gte"
	CondLTE       ConditionKind = "lte"
	CondContains  ConditionKind = "contains"
	CondAll       ConditionKind = "all"
	CondAny       ConditionKind = "any"
	CondNot       ConditionKind = "not"
)

// Condition is a serializable predicate over the answers collected so far.
// Leaf kinds read Field; all/any/not combine Conditions.
type Condition struct {
	Kind       ConditionKind `json:"kind" yaml:"kind"`
	Field      string        `json:"field,omitempty" yaml:"field,omitempty"`
	Value      any           `json:"value,omitempty" yaml:"value,omitempty"`
	Values     []any         `json:"values,omitempty" yaml:"values,omitempty"`
	Conditions []Condition   `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Evaluate reports whether the condition holds. A nil condition always holds.
func (c *Condition) Evaluate(answers Answers) bool {
	if c == nil {
		return true
	}

	switch c.Kind {
	case CondAll:
		for i := range c.Conditions {
			if !c.Conditions[i].Evaluate(answers) {
				return false
			}
		}
		return true
	case CondAny:
		for i := range c.Conditions {
			if c.Conditions[i].Evaluate(answers) {
				return true
			}
		}
		return false
	case CondNot:
		if len(c.Conditions) == 0 {
			return true
		}
		return !c.Conditions[0].Evaluate(answers)
	}

	value, exists := answers[c.Field]

	switch c.Kind {
	case CondEquals:
		return exists && ValuesEqual(value, c.Value)
	case CondNotEquals:
		return !exists || !ValuesEqual(value, c.Value)
	case CondIn:
		if !exists {
			return false
		}
		for _, candidate := range c.Values {
			if ValuesEqual(value, candidate) {
				return true
			}
		}
		return false
	case CondTruthy:
		return exists && Truthy(value)
	case CondFalsy:
		return !exists || !Truthy(value)
	case CondPresent:
		return exists && !IsEmpty(value)
	case CondGTE:
		left, ok1 := ToFloat(value)
		right, ok2 := ToFloat(c.Value)
		return exists && ok1 && ok2 && left >= right
	case CondLTE:
		left, ok1 := ToFloat(value)
		right, ok2 := ToFloat(c.Value)
		return exists && ok1 && ok2 && left <= right
	case CondContains:
		items, ok := value.([]any)
		if !ok {
			if strs, isStrs := value.([]string); isStrs {
				for _, s := range strs {
					if ValuesEqual(s, c.Value) {
						return true
					}
				}
			}
			return false
		}
		for _, item := range items {
			if ValuesEqual(item, c.Value) {
				return true
			}
		}
		return false
	}

	return false
}

// Fields returns the sorted, de-duplicated answer fields the condition reads.
func (c *Condition) Fields() []string {
	if c == nil {
		return nil
	}
	seen := map[string]struct{}{}
	c.collectFields(seen)

	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// References reports whether the condition reads field.
func (c *Condition) References(field string) bool {
	for _, f := range c.Fields() {
		if f == field {
			return true
		}
	}
	return false
}

func (c *Condition) collectFields(seen map[string]struct{}) {
	if c.Field != "" {
		seen[c.Field] = struct{}{}
	}
	for i := range c.Conditions {
		c.Conditions[i].collectFields(seen)
	}
}

// Condition constructors used by the built-in catalogs.

func Equals(field string, value any) *Condition {
	return &Condition{Kind: CondEquals, Field: field, Value: value}
}

func AtLeast(field string, value float64) *Condition {
	return &Condition{Kind: CondGTE, Field: field, Value: value}
}

func IsTruthy(field string) *Condition {
	return &Condition{Kind: CondTruthy, Field: field}
}

func AllOf(conds ...*Condition) *Condition {
	out := &Condition{Kind: CondAll}
	for _, c := range conds {
		out.Conditions = append(out.Conditions, *c)
	}
	return out
}

// ToFloat converts JSON-ish numeric values, including numeric strings.
func ToFloat(v any) (float64, bool) {
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
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// ValuesEqual compares two answer values; numbers compare numerically.
func ValuesEqual(a, b any) bool {
	if af, ok := numeric(a); ok {
		if bf, ok := numeric(b); ok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

// numeric is ToFloat without string parsing, so "01" never equals "1".
func numeric(v any) (float64, bool) {
	if _, isString := v.(string); isString {
		return 0, false
	}
	return ToFloat(v)
}

// Truthy follows loose JSON truthiness.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if f, ok := numeric(v); ok {
		return f != 0
	}
	return !IsEmpty(v)
}

// IsEmpty reports nil, empty string, empty array and empty object values.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
