// Package log provides a structured logging interface for lidarml training runs.
//
// The Logger interface is slog-compatible so that the same call sites can be
// backed by log/slog (JSON lines for batch jobs), zerolog (console output for
// interactive runs) or the in-memory TestLogger.
//
// Example usage:
//
//	logger := log.NewSlogLogger(slog.Default()).With(
//	    log.ModelNameKey, "LinearRegression",
//	    log.RunIDKey, runID,
//	)
//	logger.Info("fitted regressor",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 80,
//	    log.FeaturesKey, 2,
//	)

package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. With returns a child logger that
// carries its fields into every subsequent record.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If the first field is an error value it is logged under the "error"
	// key, and backends that understand cockroachdb/errors attach its stack.
	//
	// Example:
	//   logger.Error("export failed",
	//       err,
	//       log.ArtifactPathKey, "LidarMLModel.mlmodel",
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// splitError pulls a leading error value out of fields.
func splitError(fields []any) (error, []any) {
	if len(fields) == 0 {
		return nil, fields
	}
	if err, ok := fields[0].(error); ok {
		return err, fields[1:]
	}
	return nil, fields
}
