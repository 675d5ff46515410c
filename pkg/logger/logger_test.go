package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"flatnas/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureDefault(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewWithConfig(Config{Output: &buf, Level: level})
	require.NoError(t, err)

	prev := GetDefault()
	SetDefault(l)
	t.Cleanup(func() { SetDefault(prev) })
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := captureDefault(t, WARN)

	Info("hidden")
	Warn("shown %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN: shown 1")
}

func TestFieldsAreSortedAndScoped(t *testing.T) {
	buf := captureDefault(t, DEBUG)

	WithFields(map[string]any{"user": "alice", "ip": "10.0.0.1"}).
		WithError(errors.New("boom")).
		Error("login failed")
	Info("plain")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "login failed | error=boom | ip=10.0.0.1 | user=alice")
	assert.NotContains(t, string(lines[1]), "user=")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" Warning "))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestLogAppError(t *testing.T) {
	buf := captureDefault(t, DEBUG)

	appErr := apperrors.NewSaveFailed("alice", errors.New("disk full"))
	LogAppErrorWithContext(appErr, LevelForStatus(appErr.StatusCode), map[string]any{"path": "/api/save"})

	out := buf.String()
	assert.Contains(t, out, "ERROR:")
	assert.Contains(t, out, "extra_path=/api/save")
	assert.Contains(t, out, "disk full")
}

func TestLevelForStatus(t *testing.T) {
	assert.Equal(t, ERROR, LevelForStatus(500))
	assert.Equal(t, WARN, LevelForStatus(429))
	assert.Equal(t, WARN, LevelForStatus(401))
	assert.Equal(t, DEBUG, LevelForStatus(404))
}

func TestFileOutputCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "flatnas.log")
	l, err := NewWithConfig(DefaultConfig(path))
	require.NoError(t, err)
	defer l.Close()

	l.Info("to file")
	assert.FileExists(t, path)
}
