package navigation

import "onboarding-flow/internal/models"

// orphans returns the stored fields to drop after field changed: answers of
// pruneWhenHidden questions whose showIf reads a changed field and is now
// false. Removing an answer counts as a change, so dependents cascade.
func orphans(c *models.Catalog, answers models.Answers, field string) []string {
	working := answers.Clone()
	changed := []string{field}
	var pruned []string

	for len(changed) > 0 {
		current := changed[0]
		changed = changed[1:]

		for _, q := range c.Questions() {
			if !q.PruneWhenHidden || q.ShowIf == nil || !q.ShowIf.References(current) {
				continue
			}
			if _, stored := working[q.Field]; !stored {
				continue
			}
			if q.Visible(working) {
				continue
			}
			delete(working, q.Field)
			pruned = append(pruned, q.Field)
			changed = append(changed, q.Field)
		}
	}
	return pruned
}
