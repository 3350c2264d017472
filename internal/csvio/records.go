package csvio

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/persona-cli/internal/model"
)

// WriteProspects writes exported prospects to the given path in the input
// format the enrich command expects.
func WriteProspects(path string, prospects []model.Prospect) error {
	attrKeys := attrKeyUnion(prospects)
	header := append(append([]string{}, reservedHeaders...), attrKeys...)
	return writeFile(path, header, len(prospects), func(i int) []string {
		return prospectCells(prospects[i], attrKeys)
	})
}

// ReadAccepted parses an accepted-output CSV back into records, for
// importing personas into the CRM. Rows without a persona are skipped.
func ReadAccepted(path string) ([]model.AcceptedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "csvio: open accepted")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csvio: read accepted")
	}
	if len(records) < 2 {
		return nil, eris.New("csvio: accepted csv has no data rows")
	}

	header := records[0]
	idIdx, personaIdx, certaintyIdx, emailIdx := -1, -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "prospect id", "record id":
			idIdx = i
		case "persona":
			personaIdx = i
		case "persona certainty":
			certaintyIdx = i
		case "email":
			emailIdx = i
		}
	}
	if idIdx < 0 || personaIdx < 0 {
		return nil, eris.New(`csvio: accepted csv needs "Prospect Id" and "Persona" columns`)
	}

	var out []model.AcceptedRecord
	for _, row := range records[1:] {
		id := strings.TrimSpace(getCol(row, idIdx))
		persona := strings.TrimSpace(getCol(row, personaIdx))
		if id == "" || persona == "" {
			continue
		}
		rec := model.AcceptedRecord{
			Prospect: model.Prospect{ID: id, Email: strings.TrimSpace(getCol(row, emailIdx))},
			Persona:  persona,
		}
		if certaintyIdx >= 0 {
			if v, err := parseFloat(getCol(row, certaintyIdx)); err == nil {
				rec.Certainty = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
