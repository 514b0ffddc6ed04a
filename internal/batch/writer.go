package batch

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// WriteResults writes results to the given path, choosing the format by
// extension: .csv writes rows, anything else writes a JSON document with
// the summary and per-target results.
func WriteResults(path string, results []ItemResult) error {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return writeCSV(path, results)
	}
	return writeJSON(path, results)
}

func writeJSON(path string, results []ItemResult) error {
	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "batch: create %s", path)
	}
	defer file.Close()

	doc := struct {
		Summary Summary      `json:"summary"`
		Results []ItemResult `json:"results"`
	}{
		Summary: Summarize(results),
		Results: results,
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return eris.Wrapf(err, "batch: write %s", path)
	}
	return nil
}

func writeCSV(path string, results []ItemResult) error {
	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "batch: create %s", path)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{"target", "success", "chosen_model", "confidence", "detection_count", "elapsed_seconds", "error"}
	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "batch: write %s", path)
	}

	for _, r := range results {
		row := []string{
			r.Target,
			strconv.FormatBool(r.Success),
			r.ChosenModel,
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
			strconv.Itoa(r.DetectionCount),
			strconv.FormatFloat(r.ElapsedSeconds, 'f', -1, 64),
			r.Error,
		}
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "batch: write %s", path)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "batch: flush %s", path)
	}
	return nil
}
