package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "missionlogs",
			want:    filepath.Join("missionlogs", "missionctl.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./missionlogs",
			want:    filepath.Join(".", "missionlogs", "missionctl.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "missionctl"),
			want:    filepath.Join("/var", "log", "missionctl", "missionctl.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, "missionctl", sessionStart))
		})
	}
}

func TestNewFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "missionctl.log")
	w := NewFileWriter(path, 1, 2)
	assert.Equal(t, 1, w.MaxSize)
	assert.Equal(t, 2, w.MaxBackups)

	_, err := w.Write([]byte("line one\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\n", string(data))
}

func TestNewZerolog(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, "WARN")

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Msg("shown")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "missionctl", entry["component"])
	assert.Contains(t, entry, "time")
}

func TestNewZerolog_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, "chatty")

	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewGraylogWriter(t *testing.T) {
	// UDP needs no listener, so dialing a local port succeeds.
	w, err := NewGraylogWriter("127.0.0.1:12201")
	require.NoError(t, err)
	assert.NotNil(t, w)
}
