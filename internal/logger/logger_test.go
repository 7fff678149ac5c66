package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, toZapLevel("info"))
	assert.Equal(t, zapcore.WarnLevel, toZapLevel(" WARN "))
	assert.Equal(t, zapcore.ErrorLevel, toZapLevel("error"))
	assert.Equal(t, zapcore.DebugLevel, toZapLevel("verbose"))
}

func TestValidLevelAndFormat(t *testing.T) {
	assert.True(t, ValidLevel("Debug"))
	assert.False(t, ValidLevel("trace"))
	assert.True(t, ValidFormat("json"))
	assert.False(t, ValidFormat("xml"))
}

func TestJSONLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newZapLogger(WarnLevel, FormatJSON, zapcore.AddSync(&buf)).Component("mqtt")

	l.Infow("dropped_below_level")
	l.Warnw("broker_lost", "err", "eof")
	require.NoError(t, l.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "broker_lost", entry["msg"])
	assert.Equal(t, "mqtt", entry["component"])
	assert.Equal(t, "eof", entry["err"])
}

func TestConsoleLoggerWritesPlainLines(t *testing.T) {
	var buf bytes.Buffer
	l := newZapLogger(InfoLevel, FormatConsole, zapcore.AddSync(&buf))
	l.Infow("http_request", "status", 200)
	l.Debugw("hidden")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "http_request")
	assert.NotContains(t, out, "hidden")
}

func TestNewNop(t *testing.T) {
	assert.NotPanics(t, func() { NewNop().Errorw("ignored", "k", 1) })
}
