package enrich

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/persona-cli/internal/model"
)

func TestMergeEveryProspectLandsExactlyOnce(t *testing.T) {
	prospects := []model.Prospect{
		{ID: "1", JobTitle: "CTO"},
		{ID: "2", JobTitle: "Analyst"},
		{ID: "3", JobTitle: "Juggler"},
	}
	results := map[string]model.ClassificationResult{
		"1": {ProspectID: "1", Persona: "Executive Sponsor", Certainty: 95},
		"2": {ProspectID: "2", Persona: "Data User", Certainty: 80},
	}
	tr := NewTracker()
	tr.Observe("3", ParseOutcome{Kind: OutcomeInvalidPersona, Detail: "invalid persona: Unicorn Rider"})

	accepted, skipped := Merge(prospects, results, tr)

	require.Len(t, accepted, 2)
	require.Len(t, skipped, 1)
	assert.Equal(t, "3", skipped[0].ID)
	assert.Equal(t, model.SkipInvalidPersona, skipped[0].Reason)

	ids := make(map[string]bool)
	for _, a := range accepted {
		assert.False(t, ids[a.ID])
		ids[a.ID] = true
	}
	for _, s := range skipped {
		assert.False(t, ids[s.ID])
		ids[s.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestMergeCarriesProspectFieldsAndAttrs(t *testing.T) {
	prospects := []model.Prospect{
		{ID: "1", Email: "cto@example.com", JobTitle: "CTO", Attrs: map[string]string{"lead_score": "88"}},
	}
	results := map[string]model.ClassificationResult{
		"1": {ProspectID: "1", Persona: "Executive Sponsor", Certainty: 95},
	}

	accepted, skipped := Merge(prospects, results, NewTracker())

	require.Len(t, accepted, 1)
	assert.Empty(t, skipped)
	assert.Equal(t, "cto@example.com", accepted[0].Email)
	assert.Equal(t, "88", accepted[0].Attrs["lead_score"])
	assert.Equal(t, 95.0, accepted[0].Certainty)
}

func TestMergeIsIdempotent(t *testing.T) {
	prospects := []model.Prospect{
		{ID: "1", JobTitle: "CTO"},
		{ID: "2", JobTitle: "Analyst"},
	}
	results := map[string]model.ClassificationResult{
		"1": {ProspectID: "1", Persona: "Executive Sponsor", Certainty: 95},
	}
	tr := NewTracker()
	tr.ProviderFailure([]string{"2"}, errors.New("overloaded"))

	a1, s1 := Merge(prospects, results, tr)
	a2, s2 := Merge(prospects, results, tr)

	assert.Equal(t, a1, a2)
	assert.Equal(t, s1, s2)
}

func TestMergeDeduplicatesInput(t *testing.T) {
	prospects := []model.Prospect{
		{ID: "1", JobTitle: "CTO"},
		{ID: "1", JobTitle: "CTO"},
	}
	results := map[string]model.ClassificationResult{
		"1": {ProspectID: "1", Persona: "Executive Sponsor", Certainty: 95},
	}

	accepted, skipped := Merge(prospects, results, NewTracker())

	assert.Len(t, accepted, 1)
	assert.Empty(t, skipped)
}
