package catalog

import (
	"fmt"
	"strings"

	"onboarding-flow/internal/common/validation"
	"onboarding-flow/internal/models"
)

// Issue is one catalog misconfiguration.
type Issue struct {
	QuestionID string `json:"questionId,omitempty"`
	Message    string `json:"message"`
}

func (i Issue) String() string {
	if i.QuestionID == "" {
		return i.Message
	}
	return fmt.Sprintf("%s: %s", i.QuestionID, i.Message)
}

var conditionKinds = map[models.ConditionKind]bool{
	models.CondEquals: true, models.CondNotEquals: true, models.CondIn: true,
	models.CondTruthy: true, models.CondFalsy: true, models.CondPresent: true,
	models.CondGTE: true, models.CondLTE: true, models.CondContains: true,
	models.CondAll: true, models.CondAny: true, models.CondNot: true,
}

// Lint checks the structural rules every catalog must satisfy. Conditions may
// only read fields answered by earlier questions, so the visible sequence of a
// prefix never depends on later answers.
func Lint(c *models.Catalog) []Issue {
	var issues []Issue
	add := func(id, format string, args ...interface{}) {
		issues = append(issues, Issue{QuestionID: id, Message: fmt.Sprintf(format, args...)})
	}

	if !c.FlowType.Valid() {
		add("", "unknown flow type %q", c.FlowType)
	}
	if len(c.Steps) == 0 {
		add("", "catalog has no steps")
	}

	ids := map[string]bool{}
	answered := map[string]bool{}
	stepIDs := map[string]bool{}

	for _, step := range c.Steps {
		if step.ID == "" {
			add("", "step without id")
		} else if stepIDs[step.ID] {
			add("", "duplicate step id %q", step.ID)
		}
		stepIDs[step.ID] = true

		if len(step.Questions) == 0 {
			add("", "step %q has no questions", step.ID)
		}

		for _, q := range step.Questions {
			if q.ID == "" {
				add("", "question without id in step %q", step.ID)
				continue
			}
			if ids[q.ID] {
				add(q.ID, "duplicate question id")
			}
			ids[q.ID] = true

			if strings.TrimSpace(q.Field) == "" && q.Type != models.TypeCompositeSection {
				add(q.ID, "question has no answer field")
			}
			if !q.Type.Valid() {
				add(q.ID, "unknown question type %q", q.Type)
			}
			switch q.Type {
			case models.TypeSelect, models.TypeRadio, models.TypeCheckbox:
				if len(q.Options) == 0 {
					add(q.ID, "%s question needs options", q.Type)
				}
			}
			if q.Section != "" {
				if _, ok := c.Section(q.Section); !ok {
					add(q.ID, "unknown section %q", q.Section)
				}
			}
			if q.ShowIf != nil {
				lintCondition(q.ID, q.ShowIf, answered, add)
			}
			if q.PruneWhenHidden && q.ShowIf == nil {
				add(q.ID, "pruneWhenHidden without showIf never prunes")
			}
			for _, rule := range q.Validation {
				if err := validation.CheckRuleDefinition(rule); err != nil {
					add(q.ID, "%v", err)
				}
			}
			if q.Field != "" {
				answered[q.Field] = true
			}
		}
	}

	return issues
}

func lintCondition(id string, c *models.Condition, answered map[string]bool, add func(string, string, ...interface{})) {
	if !conditionKinds[c.Kind] {
		add(id, "unknown condition kind %q", c.Kind)
		return
	}

	switch c.Kind {
	case models.CondAll, models.CondAny, models.CondNot:
		if len(c.Conditions) == 0 {
			add(id, "%s condition has no operands", c.Kind)
		}
		for i := range c.Conditions {
			lintCondition(id, &c.Conditions[i], answered, add)
		}
		return
	}

	if c.Field == "" {
		add(id, "%s condition has no field", c.Kind)
		return
	}
	if !answered[c.Field] {
		add(id, "condition reads %q which no earlier question answers", c.Field)
	}
}
