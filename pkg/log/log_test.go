package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message")
	testLogger.Error("error message", errors.New("boom"), ErrorCodeKey, ErrorSingularMatrix)

	require.NotEmpty(t, buffer.String())
	assert.True(t, testLogger.ContainsMessage("debug message"))
	assert.True(t, testLogger.ContainsMessage("warning message"))
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "boom"))
	assert.True(t, testLogger.ContainsField(ErrorCodeKey, ErrorSingularMatrix))

	testLogger.Clear()
	assert.Empty(t, buffer.String())
}

func TestTestLoggerWithAndLevels(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	assert.True(t, testLogger.Enabled(ctx, LevelInfo))
	assert.False(t, testLogger.Enabled(ctx, LevelDebug))

	runLogger := testLogger.With(RunIDKey, "run-1", ModelNameKey, "Pipeline")
	runLogger.Debug("hidden")
	runLogger.Info("split dataset", TrainSamplesKey, 80, TestSamplesKey, 20)

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-1", entries[0][RunIDKey])
	assert.Equal(t, "Pipeline", entries[0][ModelNameKey])
	assert.Equal(t, 80.0, entries[0][TrainSamplesKey])
}

func TestSlogLoggerAddsStacktrace(t *testing.T) {
	var buf bytes.Buffer
	handler := WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil))
	logger := NewSlogLogger(slog.New(handler)).With(ComponentKey, "dataset")

	logger.Error("load failed", errors.NewSchemaError("scores.csv", []string{"Score"}, []string{"Accuracy"}))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dataset", entry[ComponentKey])
	assert.Contains(t, entry[ErrAttrKey], "missing required columns")
	assert.NotEmpty(t, entry[StacktraceAttrKey])
	assert.Equal(t, "*errors.SchemaError", entry[ErrorTypeKey])
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	require.NoError(t, SetupLogger(&buf, "warn"))
	slog.Info("dropped")
	slog.Warn("kept", R2ScoreKey, 0.5)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"severity":"WARN"`)
	assert.Contains(t, out, `"message":"kept"`)

	assert.Error(t, SetupLogger(&buf, "verbose"))
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))
	ctx := context.Background()

	assert.False(t, logger.Enabled(ctx, LevelDebug))
	assert.True(t, logger.Enabled(ctx, LevelWarn))

	logger.With(RunIDKey, "abc").Info("fitted", R2ScoreKey, 0.75)
	logger.Error("verify failed", errors.NewSerializationError("coreml.Load", "bad tag", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"run.id":"abc"`)
	assert.Contains(t, lines[0], `"metrics.r2_score":0.75`)
	assert.Contains(t, lines[1], `"type":"SerializationError"`)
}

func TestZerologLoggerInstallWarnings(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf))
	logger.InstallWarnings()
	defer errors.SetZerologWarnFunc(nil)

	errors.Warn(errors.NewZeroVarianceWarning("Accuracy", 0))

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"feature":"Accuracy"`)
}
