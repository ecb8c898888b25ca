// Package progress converts a position into the current/total pair shown to the user.
package progress

import (
	"onboarding-flow/internal/flow/resolver"
	"onboarding-flow/internal/models"
)

// Progress is a 1-based question number out of a total that moves with the answers.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Percent rounds Current/Total down to a whole percentage.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Current * 100 / p.Total
}

// Calculate returns preceding+index+1 out of fixedTotal when known, else out of
// preceding plus the active step's visible count. With nothing visible it is {0, 0}.
func Calculate(index, visibleCount, preceding, fixedTotal int) Progress {
	current := preceding + index + 1
	total := fixedTotal
	if total <= 0 {
		total = preceding + visibleCount
	}
	if total <= 0 {
		return Progress{}
	}
	if current > total {
		current = total
	}
	if current < 1 {
		current = 1
	}
	return Progress{Current: current, Total: total}
}

// ForPosition derives every input of Calculate from the current answers; the
// flow-wide total is recomputed here on each call.
func ForPosition(c *models.Catalog, answers models.Answers, pos models.Position) Progress {
	steps := resolver.StepVisible(c, answers)
	preceding, total := 0, 0
	for i, visible := range steps {
		if i < pos.Step {
			preceding += len(visible)
		}
		total += len(visible)
	}

	visibleCount := 0
	if pos.Step >= 0 && pos.Step < len(steps) {
		visibleCount = len(steps[pos.Step])
	}
	return Calculate(pos.Index, visibleCount, preceding, total)
}
