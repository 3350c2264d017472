package enrich

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/persona-cli/internal/model"
)

func TestSkipNeverAttempted(t *testing.T) {
	tr := NewTracker()

	got := tr.Skip("p1")
	assert.Equal(t, model.SkipNoResponse, got.Reason)
}

func TestSkipProviderErrorOnly(t *testing.T) {
	tr := NewTracker()
	tr.ProviderFailure([]string{"p1"}, errors.New("overloaded"))
	tr.ProviderFailure([]string{"p1"}, errors.New("overloaded"))

	got := tr.Skip("p1")
	assert.Equal(t, model.SkipProviderError, got.Reason)
	assert.Contains(t, got.Detail, "overloaded")
}

func TestSkipInvalidPersonaWinsOverParseError(t *testing.T) {
	// A record that parsed cleanly with an out-of-set persona in pass 1
	// and came back malformed in pass 2 keeps the more specific reason.
	tr := NewTracker()
	tr.Observe("p1", ParseOutcome{Kind: OutcomeInvalidPersona, Detail: "invalid persona: Unicorn Rider"})
	tr.Observe("p1", ParseOutcome{Kind: OutcomeMalformed, Detail: "expected 4 fields, got 2"})

	got := tr.Skip("p1")
	assert.Equal(t, model.SkipInvalidPersona, got.Reason)
}

func TestSkipInvalidPersonaWinsOverProviderError(t *testing.T) {
	tr := NewTracker()
	tr.ProviderFailure([]string{"p1"}, errors.New("rate limit"))
	tr.Observe("p1", ParseOutcome{Kind: OutcomeInvalidPersona, Detail: "invalid persona: Unicorn Rider"})

	got := tr.Skip("p1")
	assert.Equal(t, model.SkipInvalidPersona, got.Reason)
}

func TestSkipParseErrorWhenResponsesNeverParsed(t *testing.T) {
	tr := NewTracker()
	tr.ProviderFailure([]string{"p1"}, errors.New("timeout"))
	tr.Observe("p1", ParseOutcome{Kind: OutcomeMalformed, Detail: "expected 4 fields, got 1"})

	got := tr.Skip("p1")
	assert.Equal(t, model.SkipParseError, got.Reason)
	assert.Contains(t, got.Detail, "expected 4 fields")
}

func TestSkipReasonNotDowngradedByLaterPass(t *testing.T) {
	tr := NewTracker()
	tr.Observe("p1", ParseOutcome{Kind: OutcomeMalformed, Detail: "bad line"})
	tr.ProviderFailure([]string{"p1"}, errors.New("overloaded"))

	got := tr.Skip("p1")
	assert.Equal(t, model.SkipParseError, got.Reason)
}

func TestSkipMarksEveryIDInFailedChunk(t *testing.T) {
	tr := NewTracker()
	tr.ProviderFailure([]string{"a", "b", "c"}, errors.New("503"))

	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, model.SkipProviderError, tr.Skip(id).Reason)
	}
}
