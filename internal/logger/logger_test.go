package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestInit_JSONFieldNames(t *testing.T) {
	Init("prod", "warn")
	t.Cleanup(func() { Init("local", "info") })

	var buf bytes.Buffer
	Log.SetOutput(&buf)

	Provider("nyt_news").Warn("Provider failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "Provider failed", line["message"])
	require.Equal(t, "warning", line["level"])
	require.Equal(t, "nyt_news", line["provider"])
	require.Contains(t, line, "timestamp")
}

func TestInit_Level(t *testing.T) {
	t.Setenv("DEBUG", "")

	Init("local", "error")
	require.Equal(t, logrus.ErrorLevel, Log.GetLevel())

	Init("local", "nonsense")
	require.Equal(t, logrus.InfoLevel, Log.GetLevel())

	t.Setenv("DEBUG", "true")
	Init("local", "error")
	require.Equal(t, logrus.DebugLevel, Log.GetLevel())
}
