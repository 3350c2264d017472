package enrich

import (
	"github.com/sells-group/persona-cli/internal/model"
)

// attemptRecord accumulates what happened to one prospect across all passes.
type attemptRecord struct {
	providerFailures int
	malformed        int
	invalidPersona   int
	valid            bool
	lastDetail       string
}

func (r *attemptRecord) sawResponse() bool {
	return r.malformed > 0 || r.invalidPersona > 0 || r.valid
}

// Tracker records per-prospect attempt history so that unresolved prospects
// can be assigned the most specific skip reason after the final pass. A
// specific reason observed in an early pass is never downgraded to a
// generic one by a later pass.
type Tracker struct {
	records map[string]*attemptRecord
}

// NewTracker creates an empty attempt tracker.
func NewTracker() *Tracker {
	return &Tracker{records: make(map[string]*attemptRecord)}
}

func (t *Tracker) record(id string) *attemptRecord {
	r, ok := t.records[id]
	if !ok {
		r = &attemptRecord{}
		t.records[id] = r
	}
	return r
}

// ProviderFailure marks every identifier in a failed request unit. Used
// both for exhausted retries and for fatal provider errors that abort a
// chunk.
func (t *Tracker) ProviderFailure(ids []string, err error) {
	for _, id := range ids {
		r := t.record(id)
		r.providerFailures++
		if err != nil {
			r.lastDetail = err.Error()
		}
	}
}

// Observe records the parse outcome for one identifier from a received
// response.
func (t *Tracker) Observe(id string, outcome ParseOutcome) {
	r := t.record(id)
	switch outcome.Kind {
	case OutcomeValid:
		r.valid = true
	case OutcomeInvalidPersona:
		r.invalidPersona++
		r.lastDetail = outcome.Detail
	case OutcomeMalformed:
		r.malformed++
		r.lastDetail = outcome.Detail
	}
}

// Skip assigns a SkipRecord to an unresolved prospect. Reason precedence:
// ProviderError when every attempt ended in a provider failure, ParseError
// when responses were received but none parsed, InvalidPersona when a
// response parsed but named an out-of-set persona, NoResponse when the
// prospect was never answered at all (e.g. excluded before the first pass).
func (t *Tracker) Skip(id string) model.SkipRecord {
	r, ok := t.records[id]
	if !ok {
		return model.SkipRecord{ProspectID: id, Reason: model.SkipNoResponse}
	}

	switch {
	case r.providerFailures > 0 && !r.sawResponse():
		return model.SkipRecord{ProspectID: id, Reason: model.SkipProviderError, Detail: r.lastDetail}
	case r.invalidPersona > 0:
		return model.SkipRecord{ProspectID: id, Reason: model.SkipInvalidPersona, Detail: r.lastDetail}
	case r.malformed > 0:
		return model.SkipRecord{ProspectID: id, Reason: model.SkipParseError, Detail: r.lastDetail}
	default:
		return model.SkipRecord{ProspectID: id, Reason: model.SkipNoResponse}
	}
}
