package telemetry_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/llmguard/internal/platform/telemetry"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger("info", "json", &buf)

	logger.Info("test message", "key", "value")

	var entry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &entry)
	require.NoError(t, err)

	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, telemetry.Service, entry["service"])
	assert.NotContains(t, entry, "source")
}

func TestNewLogger_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger("DEBUG", "json", &buf)

	logger.Debug("trace me")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry, "source")
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger("info", "TEXT", &buf)

	logger.Info("plain", "key", "value")

	assert.Contains(t, buf.String(), "msg=plain")
	assert.Contains(t, buf.String(), "service=llmguard")
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger("warn", "json", &buf)

	logger.Info("should not appear")

	assert.Empty(t, buf.String())
}

func TestScanner_TagsName(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	telemetry.SetDefault(telemetry.NewLogger("info", "json", &buf))
	defer slog.SetDefault(prev)

	telemetry.Scanner("anonymize").Info("scanned")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "anonymize", entry["scanner"])
	assert.Equal(t, "scanned", entry["msg"])
}
