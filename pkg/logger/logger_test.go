package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := newLogger()

	assert.NotNil(t, logger)
	formatter, ok := logger.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)

	assert.Equal(t, time.RFC3339Nano, formatter.TimestampFormat)
	assert.True(t, formatter.FullTimestamp)
}

func TestGetLogger_FallsBackToGlobal(t *testing.T) {
	entry := G(context.Background())
	assert.Equal(t, L.Logger, entry.Logger)

	//nolint:staticcheck
	assert.Equal(t, L, GetLogger(nil))
}

func TestGetLogger_WithContextLogger(t *testing.T) {
	custom := logrus.NewEntry(logrus.New()).WithField("component", "installer")
	ctx := WithLogger(context.Background(), custom)

	got := GetLogger(ctx)
	assert.Equal(t, "installer", got.Data["component"])
}

func TestDebugRequested(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"antikit", true},
		{"*", true},
		{"express, antikit", true},
		{"other", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, debugRequested(tt.value))
		})
	}
}

func TestSetLogFormatJSON(t *testing.T) {
	original := L.Logger.Formatter
	originalOut := L.Logger.Out
	originalLevel := L.Logger.GetLevel()
	t.Cleanup(func() {
		L.Logger.Formatter = original
		L.Logger.SetOutput(originalOut)
		L.Logger.SetLevel(originalLevel)
	})

	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetLogFormat("json")
	require.NoError(t, SetLogLevel("info"))

	L.WithField("skill", "git-commit").Info("installed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "installed", record["message"])
	assert.Equal(t, "info", record["logLevel"])
	assert.Equal(t, "git-commit", record["skill"])
}

func TestSetLogLevelInvalid(t *testing.T) {
	assert.Error(t, SetLogLevel("loud"))
}
