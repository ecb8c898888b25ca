package resolver

import "onboarding-flow/internal/models"

// Entry is one visible question with its step-relative position.
type Entry struct {
	models.Position
	Question models.Question
}

// Sequence flattens the visible questions of every step. Steps whose
// questions are all hidden contribute nothing.
func Sequence(c *models.Catalog, answers models.Answers) []Entry {
	var out []Entry
	for step, visible := range StepVisible(c, answers) {
		for i, q := range visible {
			out = append(out, Entry{Position: models.Position{Step: step, Index: i}, Question: q})
		}
	}
	return out
}

// IndexOf returns the global (zero-based) index of pos in seq, or -1.
func IndexOf(seq []Entry, pos models.Position) int {
	for i := range seq {
		if seq[i].Position == pos {
			return i
		}
	}
	return -1
}

// Normalize maps a possibly stale position onto the current sequence. An index
// past the end of its step clamps to the step's last question; a step with no
// visible question falls back to the last visible question before it.
func Normalize(seq []Entry, pos models.Position) (int, bool) {
	if len(seq) == 0 {
		return 0, false
	}
	if pos.Step < 0 {
		return 0, true
	}

	last := -1
	for i := range seq {
		e := seq[i].Position
		if e.Step > pos.Step {
			break
		}
		if e.Step == pos.Step && e.Index >= pos.Index {
			return i, true
		}
		last = i
	}
	if last < 0 {
		return 0, true
	}
	return last, true
}

// GlobalNumber is the 1-based number of pos in the flow, 0 when pos is not visible.
func GlobalNumber(c *models.Catalog, answers models.Answers, pos models.Position) int {
	return IndexOf(Sequence(c, answers), pos) + 1
}

// Locate maps a 1-based global question number to a position.
func Locate(c *models.Catalog, answers models.Answers, number int) (models.Position, bool) {
	seq := Sequence(c, answers)
	if number < 1 || number > len(seq) {
		return models.Position{}, false
	}
	return seq[number-1].Position, true
}

// Preceding counts visible questions in the steps before step.
func Preceding(c *models.Catalog, answers models.Answers, step int) int {
	n := 0
	for i, visible := range StepVisible(c, answers) {
		if i >= step {
			break
		}
		n += len(visible)
	}
	return n
}

// Total is the flow-wide visible question count, a function of the answers.
func Total(c *models.Catalog, answers models.Answers) int {
	return len(Sequence(c, answers))
}

// PositionOfField returns the position of the visible question bound to field.
func PositionOfField(c *models.Catalog, answers models.Answers, field string) (models.Position, bool) {
	for _, e := range Sequence(c, answers) {
		if e.Question.Field == field {
			return e.Position, true
		}
	}
	return models.Position{}, false
}

// ResumePosition is the first visible question whose stored answer does not
// pass valid, or the last visible question when all do.
func ResumePosition(c *models.Catalog, answers models.Answers, valid func(models.Question, models.Answers) bool) (models.Position, bool) {
	seq := Sequence(c, answers)
	if len(seq) == 0 {
		return models.Position{}, false
	}
	for _, e := range seq {
		if !valid(e.Question, answers) {
			return e.Position, true
		}
	}
	return seq[len(seq)-1].Position, true
}
