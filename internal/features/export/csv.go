package export

import (
	"bytes"
	"encoding/csv"

	"go-erp/internal/features/execution"
)

// renderCSV writes one section per component, separated by an empty line.
// Each section starts with a "# name" row followed by its grid.
func renderCSV(exec *execution.Execution) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	for i, out := range exec.Result.Outputs {
		if i > 0 {
			if err := w.Write([]string{}); err != nil {
				return nil, err
			}
		}
		if err := w.Write([]string{"# " + out.Name, string(out.Type)}); err != nil {
			return nil, err
		}
		if out.Text != nil {
			if err := w.Write([]string{out.Text.Content}); err != nil {
				return nil, err
			}
			continue
		}
		header, rows, ok := grid(out)
		if !ok {
			continue
		}
		if err := w.Write(header); err != nil {
			return nil, err
		}
		if err := w.WriteAll(rows); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
