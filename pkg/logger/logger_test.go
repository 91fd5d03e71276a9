package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logLine struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
	Token any    `json:"token"`
}

func TestSlogLoggerEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.Debug("discarding response", "token", 42)
	log.Error("connection failed", "token", 7)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second logLine
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))

	assert.Equal(t, "DEBUG", first.Level)
	assert.Equal(t, "discarding response", first.Msg)
	assert.EqualValues(t, 42, first.Token)
	assert.Equal(t, "ERROR", second.Level)
}

func TestZerologLoggerEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(zerolog.New(&buf))

	log.Warn("slow continue", "token", 3, "elapsed", "2s")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "slow continue", line["message"])
	assert.EqualValues(t, 3, line["token"])
	assert.Equal(t, "2s", line["elapsed"])
}

func TestZerologLoggerToleratesOddArgs(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(zerolog.New(&buf))

	// A trailing key with no value must not panic or drop the message.
	log.Info("lonely key", "token")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "lonely key", line["message"])
}
