package export

import (
	"encoding/json"
	"time"

	"go-erp/internal/features/execution"
)

type jsonDocument struct {
	Report      jsonReport         `json:"report"`
	Execution   jsonExecution      `json:"execution"`
	Parameters  map[string]any     `json:"parameters"`
	Outputs     []execution.Output `json:"outputs"`
	GeneratedAt string             `json:"generated_at"`
}

type jsonReport struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type jsonExecution struct {
	ID              string `json:"id"`
	ExecutionNo     string `json:"execution_no"`
	Trigger         string `json:"trigger"`
	ExecutedBy      string `json:"executed_by"`
	CreatedAt       string `json:"created_at"`
	FinishedAt      string `json:"finished_at,omitempty"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	ResultCount     int64  `json:"result_count"`
}

// renderJSON writes the whole result. Map keys are emitted sorted by
// encoding/json and all timestamps come from the record, so the same
// execution always yields the same bytes.
func renderJSON(exec *execution.Execution) ([]byte, error) {
	params := make(map[string]any, len(exec.Parameters))
	for k, v := range exec.Parameters {
		params[k] = execution.NormalizeCell(v)
	}
	doc := jsonDocument{
		Report: jsonReport{ID: exec.ReportID, Name: exec.ReportName},
		Execution: jsonExecution{
			ID:              exec.ID.Hex(),
			ExecutionNo:     exec.ExecutionNo,
			Trigger:         string(exec.Trigger),
			ExecutedBy:      exec.ExecutedBy,
			CreatedAt:       exec.CreatedAt.UTC().Format(time.RFC3339),
			ExecutionTimeMs: exec.ExecutionTimeMs,
			ResultCount:     exec.ResultCount,
		},
		Parameters:  params,
		Outputs:     exec.Result.Outputs,
		GeneratedAt: generatedAt(exec).Format(time.RFC3339),
	}
	if exec.FinishedAt != nil {
		doc.Execution.FinishedAt = exec.FinishedAt.UTC().Format(time.RFC3339)
	}
	return json.MarshalIndent(doc, "", "  ")
}
