package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot/subgate/pkg/logger"
)

func TestNew_JSONDefaults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))

	log.Debug("hidden")
	log.Info("visible", logger.Component("checker"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "visible", record["msg"])
	assert.Equal(t, "checker", record["component"])
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"), "debug must be filtered at info level")
}

func TestNew_DevelopmentPreset(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithDevelopment("subgate"), logger.WithOutput(&buf))

	log.Debug("trace detail")

	out := buf.String()
	assert.Contains(t, out, "trace detail")
	assert.Contains(t, out, "service=subgate")
	assert.Contains(t, out, "env=development")
}

func TestWithLevelString(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevelString("error"))

	log.Warn("suppressed")
	log.Error("kept", logger.Error(errors.New("boom")))

	assert.NotContains(t, buf.String(), "suppressed")
	assert.Contains(t, buf.String(), "boom")
}

func TestAttrHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.String("error", "nil"), logger.Error(nil))
	assert.Equal(t, slog.Int64("group_id", -100500), logger.GroupID(-100500))
	assert.Equal(t, slog.String("invoice_id", "inv-1"), logger.InvoiceID("inv-1"))
}
