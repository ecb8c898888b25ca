package progress

import (
	"testing"

	"onboarding-flow/internal/flow/catalog"
	"onboarding-flow/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name                                string
		index, visible, preceding, fixedTot int
		want                                Progress
	}{
		{"first question single page", 0, 5, 0, 0, Progress{1, 5}},
		{"second step moving total", 2, 4, 5, 0, Progress{8, 9}},
		{"fixed total wins", 2, 4, 5, 30, Progress{8, 30}},
		{"stale index never exceeds total", 9, 3, 0, 0, Progress{3, 3}},
		{"nothing visible", 0, 0, 0, 0, Progress{0, 0}},
		{"stale index with nothing visible", 2, 0, 0, 0, Progress{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Calculate(tt.index, tt.visible, tt.preceding, tt.fixedTot))
		})
	}
}

func TestForPosition_TotalFollowsNumberOfChildren(t *testing.T) {
	c := catalog.Family(4)
	pos := models.Position{Step: 2, Index: 0} // numberOfChildren

	none := ForPosition(c, models.Answers{"numberOfChildren": float64(0)}, pos)
	two := ForPosition(c, models.Answers{"numberOfChildren": float64(2)}, pos)
	three := ForPosition(c, models.Answers{"numberOfChildren": float64(3)}, pos)

	assert.Equal(t, 7, none.Current) // 5 personal + 1 address + 1
	assert.Equal(t, none.Current, two.Current)
	assert.Equal(t, none.Total+6, two.Total)
	assert.Equal(t, two.Total+3, three.Total)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 50, Progress{Current: 3, Total: 6}.Percent())
	assert.Equal(t, 0, Progress{}.Percent())
}
