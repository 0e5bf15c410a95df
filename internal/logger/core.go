package logger

import (
	"go.uber.org/zap/zapcore"
)

// DBCore is a custom Zap Core that forwards entries to the async DB writer
type DBCore struct {
	zapcore.Core
	writer *DBLogWriter
	fields []zapcore.Field
}

// NewDBCore wraps an existing core (like console logger) and adds DB logging
func NewDBCore(baseCore zapcore.Core, writer *DBLogWriter) zapcore.Core {
	return &DBCore{
		Core:   baseCore,
		writer: writer,
	}
}

// With keeps fields attached via logger.With visible to Write.
func (c *DBCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &DBCore{
		Core:   c.Core.With(fields),
		writer: c.writer,
		fields: merged,
	}
}

// Write is called for every log entry
func (c *DBCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	var reportID, executionID string
	for _, f := range append(c.fields, fields...) {
		switch f.Key {
		case "report_id":
			reportID = f.String
		case "execution_id":
			executionID = f.String
		}
	}

	c.writer.AddLog(LogEntry{
		Level:       entry.Level,
		Message:     entry.Message,
		Caller:      entry.Caller.Function,
		ReportID:    reportID,
		ExecutionID: executionID,
	})

	return c.Core.Write(entry, fields)
}

// Check decides if we should log this level
func (c *DBCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}
