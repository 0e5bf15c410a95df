package export

import (
	"context"

	"go-erp/internal/features/access"
	"go-erp/internal/features/execution"

	"go.uber.org/zap"
)

// ExecutionReader is the part of the execution service exports need.
type ExecutionReader interface {
	Authorize(ctx context.Context, id access.Identity, executionID string, action access.Action) (*execution.Execution, error)
}

type ExportService interface {
	Export(ctx context.Context, id access.Identity, executionID string, format string) (*File, error)
}

type ExportServiceImpl struct {
	Executions ExecutionReader
	Logger     *zap.Logger
}

func NewExportService(executions execution.ExecutionService, logger *zap.Logger) ExportService {
	return &ExportServiceImpl{Executions: executions, Logger: logger}
}

func (s *ExportServiceImpl) Export(ctx context.Context, id access.Identity, executionID string, format string) (*File, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	exec, err := s.Executions.Authorize(ctx, id, executionID, access.ActionExport)
	if err != nil {
		return nil, err
	}
	file, err := Render(exec, f)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("Execution exported",
		zap.String("execution_id", executionID),
		zap.String("report_id", exec.ReportID),
		zap.String("format", string(f)),
		zap.Int("bytes", len(file.Data)))
	return file, nil
}
