package models

// QuestionType is the closed set of input kinds a question can render as.
type QuestionType string

const (
	TypeText             QuestionType = "text"
	TypeDate             QuestionType = "date"
	TypeSelect           QuestionType = "select"
	TypeRadio            QuestionType = "radio"
	TypeCheckbox         QuestionType = "checkbox"
	TypeTextarea         QuestionType = "textarea"
	TypeAddress          QuestionType = "address"
	TypePhoto            QuestionType = "photo"
	TypeMultiPhoto       QuestionType = "multi-photo"
	TypeAIGeneratedText  QuestionType = "ai-generated-text"
	TypeCompositeSection QuestionType = "composite-section"
	TypeCustom           QuestionType = "custom"
)

var knownTypes = map[QuestionType]struct{}{
	TypeText: {}, TypeDate: {}, TypeSelect: {}, TypeRadio: {}, TypeCheckbox: {},
	TypeTextarea: {}, TypeAddress: {}, TypePhoto: {}, TypeMultiPhoto: {},
	TypeAIGeneratedText: {}, TypeCompositeSection: {}, TypeCustom: {},
}

// Valid reports whether t belongs to the closed set.
func (t QuestionType) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

type Option struct {
	Value any    `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Question is immutable once a catalog is built.
type Question struct {
	ID           string       `json:"id" yaml:"id"`
	Field        string       `json:"field" yaml:"field"`
	Type         QuestionType `json:"type" yaml:"type"`
	Label        string       `json:"label,omitempty" yaml:"label,omitempty"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	Required     bool         `json:"required" yaml:"required"`
	Options      []Option     `json:"options,omitempty" yaml:"options,omitempty"`
	Validation   []Rule       `json:"validation,omitempty" yaml:"validation,omitempty"`
	ShowIf       *Condition   `json:"showIf,omitempty" yaml:"showIf,omitempty"`
	DefaultValue any          `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Section      string       `json:"section,omitempty" yaml:"section,omitempty"`

	// Unique names the uniqueness category checked remotely before advancing.
	Unique string `json:"unique,omitempty" yaml:"unique,omitempty"`

	// PruneWhenHidden drops the stored answer when an update to a field the
	// showIf reads hides this question.
	PruneWhenHidden bool `json:"pruneWhenHidden,omitempty" yaml:"pruneWhenHidden,omitempty"`
}

// Visible evaluates ShowIf; questions without one are always visible.
func (q *Question) Visible(answers Answers) bool {
	return q.ShowIf.Evaluate(answers)
}

// HasDefault reports whether a default value is declared.
func (q *Question) HasDefault() bool {
	return q.DefaultValue != nil
}
