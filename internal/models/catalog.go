package models

// FlowType identifies which side of the marketplace a catalog onboards.
type FlowType string

const (
	FlowFamily FlowType = "family"
	FlowNanny  FlowType = "nanny"
)

func (f FlowType) Valid() bool {
	return f == FlowFamily || f == FlowNanny
}

// Section groups questions for display interstitials only.
type Section struct {
	ID          string `json:"id" yaml:"id"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Step is a page boundary inside a flow.
type Step struct {
	ID        string     `json:"id" yaml:"id"`
	Label     string     `json:"label,omitempty" yaml:"label,omitempty"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Catalog is the static, ordered definition of every question of a flow.
type Catalog struct {
	FlowType FlowType  `json:"flowType" yaml:"flowType"`
	Version  string    `json:"version" yaml:"version"`
	Sections []Section `json:"sections,omitempty" yaml:"sections,omitempty"`
	Steps    []Step    `json:"steps" yaml:"steps"`
}

// Questions returns the flat catalog order: steps concatenated.
func (c *Catalog) Questions() []Question {
	var out []Question
	for _, s := range c.Steps {
		out = append(out, s.Questions...)
	}
	return out
}

// StepQuestions returns the questions of step i, or nil when out of range.
func (c *Catalog) StepQuestions(i int) []Question {
	if i < 0 || i >= len(c.Steps) {
		return nil
	}
	return c.Steps[i].Questions
}

// Section looks a section up by id.
func (c *Catalog) Section(id string) (Section, bool) {
	for _, s := range c.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// FirstSectionID is the section of the first catalog question.
func (c *Catalog) FirstSectionID() string {
	for _, s := range c.Steps {
		for _, q := range s.Questions {
			return q.Section
		}
	}
	return ""
}

// QuestionByField returns the first question writing to field.
func (c *Catalog) QuestionByField(field string) (Question, bool) {
	for _, s := range c.Steps {
		for _, q := range s.Questions {
			if q.Field == field {
				return q, true
			}
		}
	}
	return Question{}, false
}

// SectionRange is the ordinal range [First, Last] of catalog questions in a section.
type SectionRange struct {
	Section
	First int `json:"first"`
	Last  int `json:"last"`
}

// SectionRanges derives each section's ordinal range from catalog order.
func (c *Catalog) SectionRanges() []SectionRange {
	var out []SectionRange
	index := map[string]int{}
	for i, q := range c.Questions() {
		if q.Section == "" {
			continue
		}
		pos, ok := index[q.Section]
		if !ok {
			sec, found := c.Section(q.Section)
			if !found {
				sec = Section{ID: q.Section, Label: q.Section}
			}
			out = append(out, SectionRange{Section: sec, First: i, Last: i})
			index[q.Section] = len(out) - 1
			continue
		}
		out[pos].Last = i
	}
	return out
}

// Position addresses a question inside a step's visible sequence.
type Position struct {
	Step  int `json:"step"`
	Index int `json:"index"`
}
