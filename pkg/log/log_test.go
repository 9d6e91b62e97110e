package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taxierrors "github.com/YuminosukeSato/taxitip/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message", "warning_code", "TEST_WARNING")
	testLogger.Error("error message", fmt.Errorf("test error"), "error_code", "TEST_ERROR")

	require.NotEmpty(t, buffer.String())
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, testLogger.ContainsMessage(msg), msg)
	}
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrorKey, "test error"))
	assert.True(t, testLogger.ContainsField("error_code", "TEST_ERROR"))

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	testLogger.Clear()
	assert.Empty(t, buffer.String())
}

func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		ModelNameKey, "GBTRegressor",
		StageKey, "gbt",
	)
	contextLogger.Info("contextual message", IterationKey, 3)

	assert.True(t, testLogger.ContainsField(ModelNameKey, "GBTRegressor"))
	assert.True(t, testLogger.ContainsField(StageKey, "gbt"))
	assert.True(t, testLogger.ContainsField(IterationKey, 3.0))
}

func TestTestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	assert.True(t, testLogger.Enabled(ctx, LevelInfo))
	assert.True(t, testLogger.Enabled(ctx, LevelError))
	assert.False(t, testLogger.Enabled(ctx, LevelDebug))

	testLogger.Debug("this should not appear")
	testLogger.Info("this should appear")
	assert.False(t, testLogger.ContainsMessage("this should not appear"))
	assert.True(t, testLogger.ContainsMessage("this should appear"))
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf)

	logger := p.GetLoggerWithName("session").With(TableKey, "joined_table")
	logger.Info("table cached", SamplesKey, 10)
	logger.Debug("filtered out")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "table cached", entries[0]["message"])
	assert.Equal(t, "session", entries[0][ComponentKey])
	assert.Equal(t, "joined_table", entries[0][TableKey])
	assert.Equal(t, 10.0, entries[0][SamplesKey])
	assert.Contains(t, entries[0], "time")
}

func TestZerologProviderLevels(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf)
	p.SetLevel(LevelWarn)

	logger := p.GetLogger()
	ctx := context.Background()
	assert.False(t, logger.Enabled(ctx, LevelInfo))
	assert.True(t, logger.Enabled(ctx, LevelWarn))

	logger.Info("dropped")
	logger.Warn("kept")
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["message"])
}

func TestZerologErrorCarriesStack(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf)

	p.GetLogger().Error("stage failed", errors.New("boom"), StageKey, "load")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0][ErrorKey])
	assert.Equal(t, "load", entries[0][StageKey])
	stack, ok := entries[0][StacktraceKey].(string)
	require.True(t, ok, "expected stack field in %v", entries[0])
	assert.Contains(t, stack, "log_test.go")
}

func TestZerologDanglingField(t *testing.T) {
	var buf bytes.Buffer
	NewZerologProvider(&buf).GetLogger().Info("odd", "a", 1, "orphan")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "orphan", entries[0]["!BADKEY"])
}

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLoggerRoutesWarnings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupLogger("debug", &buf, false))
	defer taxierrors.SetZerologWarnFunc(nil)

	GetLoggerWithName("pipeline").Debug("stage started", StageKey, "split")
	taxierrors.Warn(taxierrors.NewConvergenceWarning("ElasticNet", 50, "stalled"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "pipeline", entries[0][ComponentKey])
	assert.Equal(t, "warn", entries[1]["level"])
	assert.Equal(t, "ElasticNet", entries[1]["algorithm"])
	assert.Equal(t, "warnings", entries[1][ComponentKey])

	assert.Error(t, SetupLogger("loud", &buf, false))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}
