// Package export renders completed executions into downloadable files.
// Every exporter is a pure function of the stored execution.
package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go-erp/internal/common/errs"
	"go-erp/internal/features/execution"
	"go-erp/pkg/utils"
)

type Format string

const (
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

var Formats = []Format{FormatPDF, FormatExcel, FormatCSV, FormatJSON}

// File is one rendered export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type exporter struct {
	extension   string
	contentType string
	render      func(exec *execution.Execution) ([]byte, error)
}

var exporters = map[Format]exporter{
	FormatPDF:   {"pdf", "application/pdf", renderPDF},
	FormatExcel: {"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", renderExcel},
	FormatCSV:   {"csv", "text/csv; charset=utf-8", renderCSV},
	FormatJSON:  {"json", "application/json", renderJSON},
}

// ParseFormat accepts the format names case-insensitively; "xlsx" is an
// alias of excel.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "xlsx" {
		f = FormatExcel
	}
	if _, ok := exporters[f]; !ok {
		return "", errs.Validation("format", "unsupported export format %q (pdf, excel, csv, json)", s)
	}
	return f, nil
}

// Render exports a completed execution in the given format.
func Render(exec *execution.Execution, format Format) (*File, error) {
	ex, ok := exporters[format]
	if !ok {
		return nil, errs.Validation("format", "unsupported export format %q (pdf, excel, csv, json)", format)
	}
	if exec.Status != execution.StatusCompleted || exec.Result == nil {
		return nil, errs.InvalidState(string(exec.Status), "execution %s is %s, only completed executions can be exported", exec.ExecutionNo, exec.Status)
	}
	data, err := ex.render(exec)
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", format, err)
	}
	return &File{
		Name:        FileName(exec, ex.extension),
		ContentType: ex.contentType,
		Data:        data,
	}, nil
}

func FileName(exec *execution.Execution, ext string) string {
	base := utils.Slugify(exec.ReportName)
	if base == "" {
		base = "report"
	}
	if exec.ExecutionNo != "" {
		base += "-" + strings.ToLower(exec.ExecutionNo)
	}
	return base + "." + ext
}

// generatedAt is the timestamp printed into documents. It comes from the
// execution so that re-exporting gives the same output.
func generatedAt(exec *execution.Execution) time.Time {
	if exec.FinishedAt != nil {
		return exec.FinishedAt.UTC()
	}
	return exec.CreatedAt.UTC()
}

// sortedParams lists parameters by name with formatted values.
func sortedParams(exec *execution.Execution) [][2]string {
	names := make([]string, 0, len(exec.Parameters))
	for k := range exec.Parameters {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([][2]string, len(names))
	for i, n := range names {
		out[i] = [2]string{n, execution.FormatCell(exec.Parameters[n])}
	}
	return out
}

// chartRows flattens a chart into a label column plus one column per series.
func chartRows(c *execution.ChartOutput) ([]string, [][]string) {
	header := []string{"label"}
	for _, s := range c.Series {
		header = append(header, s.Name)
	}
	rows := make([][]string, len(c.Labels))
	for i, label := range c.Labels {
		row := []string{label}
		for _, s := range c.Series {
			var v any
			if i < len(s.Values) {
				v = s.Values[i]
			}
			row = append(row, execution.FormatCell(v))
		}
		rows[i] = row
	}
	return header, rows
}

func kpiRows(k *execution.KPIOutput) ([]string, [][]string) {
	header := []string{"metric", "value", "previous", "change_pct", "unit"}
	rows := make([][]string, len(k.Cards))
	for i, c := range k.Cards {
		change := ""
		if c.ChangePct != nil {
			change = execution.FormatCell(*c.ChangePct)
		}
		rows[i] = []string{c.Name, execution.FormatCell(c.Value), execution.FormatCell(c.Previous), change, c.Unit}
	}
	return header, rows
}

func tableRows(t *execution.TableOutput) ([]string, [][]string) {
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Label
	}
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]string, len(r))
		for j, v := range r {
			row[j] = execution.FormatCell(v)
		}
		rows[i] = row
	}
	return header, rows
}

func filterRows(f *execution.FilterOutput) ([]string, [][]string) {
	rows := make([][]string, len(f.Parameters))
	for i, p := range f.Parameters {
		rows[i] = []string{p.Label, execution.FormatCell(p.Value)}
	}
	return []string{"parameter", "value"}, rows
}

// grid returns the tabular view of any output; text has none.
func grid(out execution.Output) ([]string, [][]string, bool) {
	switch {
	case out.Table != nil:
		h, r := tableRows(out.Table)
		return h, r, true
	case out.Chart != nil:
		h, r := chartRows(out.Chart)
		return h, r, true
	case out.KPI != nil:
		h, r := kpiRows(out.KPI)
		return h, r, true
	case out.Filter != nil:
		h, r := filterRows(out.Filter)
		return h, r, true
	}
	return nil, nil, false
}
