package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogLevel(t *testing.T) {
	for in, want := range map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"INFO":    logrus.InfoLevel,
		"warning": logrus.WarnLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"bogus":   logrus.InfoLevel,
		"":        logrus.InfoLevel,
	} {
		assert.Equal(t, want, getLogLevel(in), in)
	}
}

func TestInitLogger(t *testing.T) {
	log := InitLogger("debug", "text")

	assert.Same(t, log, Log)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	assert.IsType(t, &logrus.JSONFormatter{}, InitLogger("info", "").Formatter)
}

func TestInitLogger_ServiceField(t *testing.T) {
	log := InitLogger("info", "json")
	var buf bytes.Buffer
	log.Out = &buf

	log.WithField("owner", "u1").Info("Saved")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, ServiceName, entry["service"])
	assert.Equal(t, "u1", entry["owner"])
	assert.Equal(t, "Saved", entry["msg"])
}
