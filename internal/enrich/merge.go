package enrich

import (
	"github.com/sells-group/persona-cli/internal/model"
)

// Merge joins the original prospects with the final result map and the
// attempt tracker into two disjoint output sets. Every input prospect lands
// in exactly one of them: a valid classification produces an accepted
// record, anything else a skipped record with the tracker's reason. Merging
// is idempotent: re-merging the same inputs yields identical outputs.
func Merge(prospects []model.Prospect, results map[string]model.ClassificationResult, tracker *Tracker) ([]model.AcceptedRecord, []model.SkippedRecord) {
	accepted := make([]model.AcceptedRecord, 0, len(results))
	var skipped []model.SkippedRecord

	seen := make(map[string]bool, len(prospects))
	for _, p := range prospects {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		if res, ok := results[p.ID]; ok {
			accepted = append(accepted, model.AcceptedRecord{
				Prospect:  p,
				Persona:   res.Persona,
				Certainty: res.Certainty,
			})
			continue
		}

		skip := tracker.Skip(p.ID)
		skipped = append(skipped, model.SkippedRecord{
			Prospect: p,
			Reason:   skip.Reason,
			Detail:   skip.Detail,
		})
	}

	return accepted, skipped
}
