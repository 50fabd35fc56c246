package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormatAddsServiceFields(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(Config{
		ServiceName: "fulfillment",
		Env:         "docker",
		Output:      &buf,
	})
	require.NoError(t, err)

	logger.Info("hello")
	Sync(logger)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "hello", entry["msg"])
	require.Equal(t, "fulfillment", entry["service"])
	require.Equal(t, "docker", entry["env"])
	require.Equal(t, "info", entry["level"])
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(Config{ServiceName: "fulfillment", Env: "docker", Level: "warn", Output: &buf})
	require.NoError(t, err)

	logger.Info("skipped")
	require.Zero(t, buf.Len())

	logger.Warn("kept")
	require.Contains(t, buf.String(), "kept")
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	require.ErrorContains(t, err, "invalid log level")

	_, err = New(Config{Format: "xml"})
	require.ErrorContains(t, err, "invalid log format")
}
