package enrich

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

const tabularFormatInstructions = `

CRITICAL OUTPUT FORMAT: Respond with one CSV line per prospect, no header:
<prospect_id>,<job_title>,<persona>,<certainty 0-100>
Use only the defined personas. Do not include commentary or code fences.`

const structuredFormatInstructions = `

CRITICAL OUTPUT FORMAT: Respond with a SINGLE JSON object only.
Required keys: {"persona": <one of the defined personas>, "certainty": <0-100 integer or %>}.
Do not include extra keys, code fences, or commentary.`

const structuredUserPrompt = `Prospect Id: %s
Job Title: %s

Return ONLY the JSON.`

// LoadSystemInstructions reads the frame and persona-definition files and
// concatenates them into the system prompt shared by every request.
func LoadSystemInstructions(frameFile, personasFile string) (string, error) {
	frame, err := os.ReadFile(frameFile)
	if err != nil {
		return "", eris.Wrapf(err, "enrich: read %s", frameFile)
	}
	personas, err := os.ReadFile(personasFile)
	if err != nil {
		return "", eris.Wrapf(err, "enrich: read %s", personasFile)
	}
	return string(frame) + string(personas), nil
}

// TabularSystemPrompt appends the CSV output contract to the system
// instructions.
func TabularSystemPrompt(instructions string) string {
	return strings.TrimSpace(instructions) + tabularFormatInstructions
}

// StructuredSystemPrompt appends the single-JSON output contract to the
// system instructions.
func StructuredSystemPrompt(instructions string) string {
	return strings.TrimSpace(instructions) + structuredFormatInstructions
}

// SanitizeJobTitle strips commas from a job title so it cannot break the
// tabular request or response shape.
func SanitizeJobTitle(title string) string {
	return strings.Join(strings.Split(title, ","), " ")
}

// TabularPayload renders one "id,job_title" line per prospect for a chunk
// request.
func TabularPayload(c Chunk) string {
	lines := make([]string, len(c.Prospects))
	for i, p := range c.Prospects {
		lines[i] = p.ID + "," + SanitizeJobTitle(p.JobTitle)
	}
	return strings.Join(lines, "\n")
}

// StructuredPayload renders the user prompt for a single-record request.
func StructuredPayload(id, jobTitle string) string {
	return fmt.Sprintf(structuredUserPrompt, id, SanitizeJobTitle(jobTitle))
}
