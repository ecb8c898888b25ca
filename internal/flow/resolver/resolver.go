// Package resolver computes the visible question sequence of a catalog for a
// given answer map. Every function is pure: the same answers always yield the
// same sequence, so positions computed from stale answers heal on the next call.
package resolver

import "onboarding-flow/internal/models"

// Visible filters questions by their showIf, preserving catalog order.
func Visible(questions []models.Question, answers models.Answers) []models.Question {
	out := make([]models.Question, 0, len(questions))
	for i := range questions {
		if questions[i].Visible(answers) {
			out = append(out, questions[i])
		}
	}
	return out
}

// QuestionAt returns the visible question at index, false when out of range.
func QuestionAt(questions []models.Question, answers models.Answers, index int) (models.Question, bool) {
	visible := Visible(questions, answers)
	if index < 0 || index >= len(visible) {
		return models.Question{}, false
	}
	return visible[index], true
}

// Clamp bounds a stale index to the last valid one.
func Clamp(index, length int) int {
	if length <= 0 || index < 0 {
		return 0
	}
	if index >= length {
		return length - 1
	}
	return index
}

// IndexOfField returns the visible index of the question writing field, or -1.
func IndexOfField(visible []models.Question, field string) int {
	for i := range visible {
		if visible[i].Field == field {
			return i
		}
	}
	return -1
}

// IndexOfID returns the visible index of question id, or -1.
func IndexOfID(visible []models.Question, id string) int {
	for i := range visible {
		if visible[i].ID == id {
			return i
		}
	}
	return -1
}

// StepVisible returns the visible questions of every step, indexed like c.Steps.
func StepVisible(c *models.Catalog, answers models.Answers) [][]models.Question {
	out := make([][]models.Question, len(c.Steps))
	for i := range c.Steps {
		out[i] = Visible(c.Steps[i].Questions, answers)
	}
	return out
}
