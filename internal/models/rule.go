package models

// RuleKind tags a declared validation rule.
type RuleKind string

const (
	RulePattern   RuleKind = "pattern"
	RuleMinLength RuleKind = "min_length"
	RuleMaxLength RuleKind = "max_length"
	RuleMin       RuleKind = "min"
	RuleMax       RuleKind = "max"
	RuleMinItems  RuleKind = "min_items"
	RuleMaxItems  RuleKind = "max_items"
	RuleEmail     RuleKind = "email"
	RulePhone     RuleKind = "phone"
	RuleCPF       RuleKind = "cpf"
	RulePastDate  RuleKind = "past_date"
	RuleSchema    RuleKind = "schema"
)

// Rule is a declared validation applied to the raw answer value.
type Rule struct {
	Kind    RuleKind       `json:"kind" yaml:"kind"`
	Pattern string         `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Limit   float64        `json:"limit,omitempty" yaml:"limit,omitempty"`
	Schema  map[string]any `json:"schema,omitempty" yaml:"schema,omitempty"`
	Message string         `json:"message,omitempty" yaml:"message,omitempty"`
}
