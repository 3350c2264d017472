// Package csvio reads prospect CSVs and writes the accepted/skipped output
// files.
package csvio

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/persona-cli/internal/model"
)

// Result columns from previous runs are never treated as prospect
// attributes, so a skipped-output file can be fed straight back in.
var resultColumns = map[string]bool{
	"persona":           true,
	"persona certainty": true,
	"skip reason":       true,
	"skip detail":       true,
}

// ReadProspects parses a prospect CSV. The header row names the columns;
// "Record ID" is accepted as an alias for "Prospect Id". Reserved columns
// map onto Prospect fields, everything else is preserved in Attrs under a
// normalized key. Rows without an identifier are dropped; duplicate
// identifiers keep the first row.
func ReadProspects(path string) ([]model.Prospect, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "csvio: open input")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csvio: read input")
	}
	if len(records) < 2 {
		return nil, eris.New("csvio: csv has no data rows")
	}

	header := records[0]
	idIdx := -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "prospect id", "record id":
			idIdx = i
		}
	}
	if idIdx < 0 {
		return nil, eris.New(`csvio: missing required column "Prospect Id"`)
	}

	seen := make(map[string]bool)
	var prospects []model.Prospect

	for _, row := range records[1:] {
		id := strings.TrimSpace(getCol(row, idIdx))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		p := model.Prospect{ID: id}
		for i, col := range header {
			if i == idIdx {
				continue
			}
			value := strings.TrimSpace(getCol(row, i))
			label := strings.ToLower(strings.TrimSpace(col))
			switch label {
			case "email":
				p.Email = value
			case "job title":
				p.JobTitle = value
			case "first name":
				p.FirstName = value
			case "last name":
				p.LastName = value
			case "company":
				p.Company = value
			default:
				if value == "" || resultColumns[label] {
					continue
				}
				if p.Attrs == nil {
					p.Attrs = make(map[string]string)
				}
				p.Attrs[model.PropertyKey(col)] = value
			}
		}
		prospects = append(prospects, p)
	}

	return prospects, nil
}

// FilterEmails drops prospects whose email matches any of the given
// substrings. Used to keep internal and test contacts out of a run.
func FilterEmails(prospects []model.Prospect, patterns []string) []model.Prospect {
	if len(patterns) == 0 {
		return prospects
	}
	out := prospects[:0:0]
	for _, p := range prospects {
		email := strings.ToLower(p.Email)
		excluded := false
		for _, pat := range patterns {
			if pat != "" && strings.Contains(email, strings.ToLower(pat)) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, p)
		}
	}
	return out
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
}

func getCol(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
