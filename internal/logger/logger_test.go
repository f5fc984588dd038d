package logger_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarwindow/pvpoll/internal/logger"
)

func TestSlogLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelDebug, time.UTC)

	log.Info("window computed",
		logger.String("source", "metno"),
		logger.Int("budget", 280),
		logger.Float64("elevation", 61.23456),
		logger.Duration("interval", 133800*time.Millisecond),
		logger.Error(errors.New("boom")))

	out := buf.String()
	assert.Contains(t, out, `msg="window computed"`)
	assert.Contains(t, out, "source=metno")
	assert.Contains(t, out, "budget=280")
	assert.Contains(t, out, "elevation=61.235")
	assert.Contains(t, out, "interval=2m13.8s")
	assert.Contains(t, out, "error=boom")
	assert.NotContains(t, out, "time=")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelWarn, time.UTC)

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestTraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelTrace, time.UTC)

	log.Trace("bisection step")
	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestModuleAndWithFields(t *testing.T) {
	var buf bytes.Buffer
	root := logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC)

	child := root.Module("scheduler").Module("fetch").With(logger.String("attempt_id", "abc"))
	child.Info("fetch done")

	out := buf.String()
	assert.Contains(t, out, "module=scheduler.fetch")
	assert.Contains(t, out, "attempt_id=abc")
}

func TestWithContextTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC)

	ctx := logger.WithTraceID(context.Background(), "trace-1")
	log.WithContext(ctx).Info("traced")
	assert.Contains(t, buf.String(), "trace_id=trace-1")

	buf.Reset()
	log.WithContext(context.Background()).Info("untraced")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestCentralLoggerFileOutputIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pvpoll.log")
	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path},
		ModuleLevels: map[string]string{"ephemeris": "debug"},
	})
	require.NoError(t, err)

	cl.Module("ephemeris").Debug("crossing found", logger.Float64("target", -6))
	cl.Module("scheduler").Debug("suppressed")
	require.NoError(t, cl.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines = append(lines, entry)
	}
	require.Len(t, lines, 1)
	assert.Equal(t, "crossing found", lines[0]["msg"])
	assert.Equal(t, "ephemeris", lines[0]["module"])
}

func TestRotatingFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotating", "pvpoll.log")
	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "info",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path, MaxSizeMB: 1, MaxBackups: 2},
	})
	require.NoError(t, err)

	cl.Module("scheduler").Info("fetch dispatched", logger.Int("issued", 1))
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"fetch dispatched"`)
}

func TestNewCentralLoggerRejectsBadInput(t *testing.T) {
	_, err := logger.NewCentralLogger(nil)
	require.Error(t, err)

	_, err = logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestGlobalFallback(t *testing.T) {
	require.NotNil(t, logger.Global())
	require.NotNil(t, logger.Global().Module("test"))
}
