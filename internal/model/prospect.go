package model

import "strings"

// Prospect is a single contact record to be classified. Attrs carries any
// CSV columns beyond the reserved ones and passes through the pipeline
// untouched.
type Prospect struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	JobTitle  string            `json:"job_title"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	Company   string            `json:"company,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// ClassificationResult is one persona assignment for a prospect. Later
// passes overwrite earlier results for the same prospect.
type ClassificationResult struct {
	ProspectID string  `json:"prospect_id"`
	Persona    string  `json:"persona"`
	Certainty  float64 `json:"certainty"`
}

// SkipReason explains why a prospect received no valid persona.
type SkipReason string

const (
	SkipNoResponse     SkipReason = "no_response"
	SkipInvalidPersona SkipReason = "invalid_persona"
	SkipParseError     SkipReason = "parse_error"
	SkipProviderError  SkipReason = "provider_error"
)

// SkipRecord marks a prospect that could not be classified.
type SkipRecord struct {
	ProspectID string     `json:"prospect_id"`
	Reason     SkipReason `json:"reason"`
	Detail     string     `json:"detail,omitempty"`
}

// AcceptedRecord joins a prospect with its winning classification.
type AcceptedRecord struct {
	Prospect
	Persona   string  `json:"persona"`
	Certainty float64 `json:"certainty"`
}

// SkippedRecord joins a prospect with its skip reason.
type SkippedRecord struct {
	Prospect
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// PersonaSet is the closed set of valid persona labels for a run.
type PersonaSet map[string]struct{}

// NewPersonaSet builds a PersonaSet from a list of labels, trimming
// surrounding whitespace.
func NewPersonaSet(labels []string) PersonaSet {
	set := make(PersonaSet, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			set[l] = struct{}{}
		}
	}
	return set
}

// Contains reports whether the label is a valid persona. Matching is exact
// after trimming: an unknown value is never corrected or guessed.
func (s PersonaSet) Contains(label string) bool {
	_, ok := s[strings.TrimSpace(label)]
	return ok
}

// Labels returns the persona labels in unspecified order.
func (s PersonaSet) Labels() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	return out
}

// DefaultPersonas is the persona taxonomy used by the sales team. The set
// is configurable; this is only the fallback.
func DefaultPersonas() []string {
	return []string{
		"Executive Sponsor",
		"Economic Buyer",
		"Data Product Manager/Owner",
		"Data User",
		"Application Developer",
		"Real-time Specialist",
		"Operator/Systems Administrator",
		"Technical Decision Maker",
		"Not a target",
	}
}

// reservedPropertyKeys maps CSV column labels for the reserved prospect
// fields to their fixed HubSpot property names. Everything else goes
// through PropertyKey's generic rule.
var reservedPropertyKeys = map[string]string{
	"prospect id": "hs_object_id",
	"record id":   "hs_object_id",
	"email":       "email",
	"first name":  "firstname",
	"last name":   "lastname",
	"job title":   "jobtitle",
	"company":     "company",
}

// PropertyKey derives a stable attribute key from a free-text column label:
// reserved labels map to their fixed property names, anything else is
// lowercased with spaces collapsed to underscores.
func PropertyKey(label string) string {
	lower := strings.ToLower(strings.TrimSpace(label))
	if key, ok := reservedPropertyKeys[lower]; ok {
		return key
	}
	return strings.ReplaceAll(strings.Join(strings.Fields(lower), " "), " ", "_")
}
