package hubspot

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
)

type mappingFile struct {
	PersonaMapping map[string]string `json:"persona_mapping"`
}

// LoadPersonaMapping reads the persona label → enum value mapping from a
// JSON file of the form {"persona_mapping": {"Executive Sponsor": "persona_1", ...}}.
func LoadPersonaMapping(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: read persona mapping %s", path)
	}

	var f mappingFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "hubspot: parse persona mapping %s", path)
	}
	if len(f.PersonaMapping) == 0 {
		return nil, eris.Errorf("hubspot: no persona_mapping key in %s", path)
	}
	return f.PersonaMapping, nil
}
