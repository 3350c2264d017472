package csvio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/persona-cli/internal/model"
)

var reservedHeaders = []string{"Prospect Id", "Email", "First Name", "Last Name", "Company", "Job Title"}

// skipReasonLabels render skip reasons the way the sales team reads them.
var skipReasonLabels = map[model.SkipReason]string{
	model.SkipNoResponse:     "No LLM response",
	model.SkipInvalidPersona: "Invalid persona",
	model.SkipParseError:     "Unparseable response",
	model.SkipProviderError:  "Provider error",
}

// WriteAccepted writes the accepted records to a timestamped CSV under dir
// and returns the file path.
func WriteAccepted(dir string, records []model.AcceptedRecord) (string, error) {
	prospects := make([]model.Prospect, len(records))
	for i, r := range records {
		prospects[i] = r.Prospect
	}
	attrKeys := attrKeyUnion(prospects)

	path := filepath.Join(dir, timestampedName("Personas"))
	err := writeFile(path, append(append(append([]string{}, reservedHeaders...), attrKeys...), "Persona", "Persona Certainty"), len(records), func(i int) []string {
		r := records[i]
		row := prospectCells(r.Prospect, attrKeys)
		return append(row, r.Persona, strconv.FormatFloat(r.Certainty, 'f', -1, 64))
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// WriteSkipped writes the skipped records with their reasons to a
// timestamped CSV under dir and returns the file path.
func WriteSkipped(dir string, records []model.SkippedRecord) (string, error) {
	prospects := make([]model.Prospect, len(records))
	for i, r := range records {
		prospects[i] = r.Prospect
	}
	attrKeys := attrKeyUnion(prospects)

	path := filepath.Join(dir, timestampedName("Skipped prospects"))
	err := writeFile(path, append(append(append([]string{}, reservedHeaders...), attrKeys...), "Skip Reason", "Skip Detail"), len(records), func(i int) []string {
		r := records[i]
		row := prospectCells(r.Prospect, attrKeys)
		return append(row, skipReasonLabels[r.Reason], r.Detail)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func writeFile(path string, header []string, n int, row func(i int) []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "csvio: create output dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "csvio: create output")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "csvio: write header")
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return eris.Wrap(err, "csvio: write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "csvio: flush output")
}

func prospectCells(p model.Prospect, attrKeys []string) []string {
	row := []string{p.ID, p.Email, p.FirstName, p.LastName, p.Company, p.JobTitle}
	for _, k := range attrKeys {
		row = append(row, p.Attrs[k])
	}
	return row
}

func attrKeyUnion(prospects []model.Prospect) []string {
	set := make(map[string]bool)
	for _, p := range prospects {
		for k := range p.Attrs {
			set[k] = true
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func timestampedName(prefix string) string {
	return fmt.Sprintf("%s %s.csv", prefix, time.Now().Format("2006-01-02 15 04 05"))
}
