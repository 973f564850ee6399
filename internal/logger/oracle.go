package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Field keys attached to every log entry written by an oracle client.
const (
	FieldProvider = "oracle_provider"
	FieldModel    = "oracle_model"
)

// WithOracle returns log annotated with the oracle provider and model.
// Blank values are skipped; a nil log yields a no-op logger.
func WithOracle(log *zap.Logger, provider, model string) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}

	pairs := [...][2]string{
		{FieldProvider, provider},
		{FieldModel, model},
	}

	fields := make([]zap.Field, 0, len(pairs))
	for _, pair := range pairs {
		if value := strings.TrimSpace(pair[1]); value != "" {
			fields = append(fields, zap.String(pair[0], value))
		}
	}

	if len(fields) == 0 {
		return log
	}

	return log.With(fields...)
}
