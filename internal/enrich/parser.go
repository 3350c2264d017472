package enrich

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/persona-cli/internal/model"
)

// OutcomeKind classifies what the parser made of one record's response.
type OutcomeKind int

const (
	// OutcomeValid means a well-formed record with a recognized persona.
	OutcomeValid OutcomeKind = iota
	// OutcomeInvalidPersona means the record parsed but named a persona
	// outside the valid set.
	OutcomeInvalidPersona
	// OutcomeMalformed means the record could not be parsed at all.
	OutcomeMalformed
)

// ParseOutcome is the per-identifier result of parsing a response. Result
// is set only when Kind is OutcomeValid; Detail explains the failure
// otherwise.
type ParseOutcome struct {
	Kind   OutcomeKind
	Result *model.ClassificationResult
	Detail string
}

// ParseTabular parses line-oriented chunk output of the form
// "identifier, job_title, persona, certainty". One malformed line yields a
// single failure entry and never loses the rest of the chunk. Extra
// trailing columns are ignored; duplicate identifiers keep the first
// occurrence within one response.
func ParseTabular(text string, personas model.PersonaSet) map[string]ParseOutcome {
	out := make(map[string]ParseOutcome)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		id := strings.TrimSpace(fields[0])
		if id == "" {
			continue
		}
		if _, seen := out[id]; seen {
			continue
		}

		if len(fields) < 4 {
			out[id] = ParseOutcome{
				Kind:   OutcomeMalformed,
				Detail: fmt.Sprintf("expected 4 fields, got %d", len(fields)),
			}
			continue
		}

		out[id] = recordOutcome(id, strings.TrimSpace(fields[2]), strings.TrimSpace(fields[3]), personas)
	}

	return out
}

// structuredRecord is the JSON shape of a single-record response.
type structuredRecord struct {
	Persona   *string         `json:"persona"`
	Certainty json.RawMessage `json:"certainty"`
}

// ParseStructured parses a single-record JSON response for the given
// identifier. Markdown fences and surrounding prose are tolerated.
func ParseStructured(id, text string, personas model.PersonaSet) ParseOutcome {
	var rec structuredRecord
	if err := json.Unmarshal([]byte(cleanJSON(text)), &rec); err != nil {
		return ParseOutcome{
			Kind:   OutcomeMalformed,
			Detail: "invalid JSON: " + err.Error(),
		}
	}

	if rec.Persona == nil || len(rec.Certainty) == 0 {
		return ParseOutcome{
			Kind:   OutcomeMalformed,
			Detail: "missing persona or certainty",
		}
	}

	// Certainty may arrive as a bare number or as a quoted "85%" string.
	certainty := strings.Trim(string(rec.Certainty), `"`)
	return recordOutcome(id, strings.TrimSpace(*rec.Persona), certainty, personas)
}

func recordOutcome(id, persona, certainty string, personas model.PersonaSet) ParseOutcome {
	score, err := parseCertainty(certainty)
	if err != nil {
		return ParseOutcome{
			Kind:   OutcomeMalformed,
			Detail: fmt.Sprintf("bad certainty %q", certainty),
		}
	}

	if !personas.Contains(persona) {
		return ParseOutcome{
			Kind:   OutcomeInvalidPersona,
			Detail: "invalid persona: " + persona,
		}
	}

	return ParseOutcome{
		Kind: OutcomeValid,
		Result: &model.ClassificationResult{
			ProspectID: id,
			Persona:    persona,
			Certainty:  score,
		},
	}
}

// parseCertainty accepts "85", "85.5", and "85%". Negative values are
// rejected.
func parseCertainty(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative certainty %v", v)
	}
	return v, nil
}

// cleanJSON strips markdown code fences and surrounding prose, keeping the
// outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
