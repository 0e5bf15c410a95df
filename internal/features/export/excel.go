package export

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go-erp/internal/features/execution"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")")

// renderExcel writes a summary sheet followed by one sheet per component.
func renderExcel(exec *execution.Execution) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	stamp := generatedAt(exec).Format("2006-01-02T15:04:05Z")
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:    exec.ReportName,
		Creator:  exec.ExecutedBy,
		Created:  exec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Modified: stamp,
	}); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}
	info := [][]any{
		{"Report", exec.ReportName},
		{"Execution", exec.ExecutionNo},
		{"Generated at", stamp},
		{"Executed by", exec.ExecutedBy},
	}
	for _, p := range sortedParams(exec) {
		info = append(info, []any{"Parameter " + p[0], p[1]})
	}
	for i, row := range info {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return nil, err
		}
	}
	f.SetColWidth(summary, "A", "A", 24)
	f.SetColWidth(summary, "B", "B", 40)

	used := map[string]bool{strings.ToLower(summary): true}
	for _, out := range exec.Result.Outputs {
		name := uniqueSheetName(out.Name, used)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		if err := writeSheet(f, name, out, headerStyle); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, out execution.Output, headerStyle int) error {
	if out.Text != nil {
		return f.SetCellValue(sheet, "A1", out.Text.Content)
	}
	header, rows, ok := grid(out)
	if !ok {
		return nil
	}

	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return err
	}
	if len(header) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return err
		}
	}

	// Tables keep their normalized cell types so numbers stay numeric.
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := make([]any, len(r))
		for j, s := range r {
			values[j] = s
		}
		if out.Table != nil && i < len(out.Table.Rows) {
			copy(values, out.Table.Rows[i])
		}
		if out.Chart != nil {
			for j, s := range out.Chart.Series {
				if i < len(s.Values) {
					values[j+1] = s.Values[i]
				}
			}
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	for i := range header {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, 18)
	}
	return nil
}

// uniqueSheetName strips characters Excel rejects, truncates to 31 runes
// and de-duplicates case-insensitively.
func uniqueSheetName(name string, used map[string]bool) string {
	base := strings.Trim(strings.TrimSpace(sheetNameReplacer.Replace(name)), "'")
	if base == "" {
		base = "Component"
	}
	base = truncateRunes(base, maxSheetName)

	candidate := base
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(base, maxSheetName-utf8.RuneCountInString(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
