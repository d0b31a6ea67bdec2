package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew_json(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Service: "sensorgate", Level: zerolog.InfoLevel, Format: FormatJSON, Out: &buf})
	require.NoError(t, err)
	defer func() {
		_ = l.Close()
	}()

	l.Debug("hidden")
	l.Info("client connected", Field{Key: "remote", Value: "10.0.0.2:5000"})
	l.With(Field{Key: "session", Value: 3}).Error("write failed", Err(errors.New("broken pipe")))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "sensorgate", lines[0]["service"])
	assert.Equal(t, "client connected", lines[0]["message"])
	assert.Equal(t, "10.0.0.2:5000", lines[0]["remote"])

	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, float64(3), lines[1]["session"])
	assert.Equal(t, "broken pipe", lines[1]["error"])
}

func TestNew_console(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Service: "sensorgate", Level: zerolog.DebugLevel, Format: FormatConsole, Out: &buf})
	require.NoError(t, err)

	l.Debug("payload received")
	assert.Contains(t, buf.String(), "payload received")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}

func TestNew_autoWithBufferIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Service: "s", Level: zerolog.InfoLevel, Format: FormatAuto, Out: &buf})
	require.NoError(t, err)

	l.Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
}

func TestNew_withDir(t *testing.T) {
	var buf bytes.Buffer
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := New(Options{Service: "sensorgate", Level: zerolog.InfoLevel, Format: FormatJSON, Out: &buf, Dir: dir})
	require.NoError(t, err)

	l.Warn("capacity reached")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	name := filepath.Join(dir, "sensorgate_"+time.Now().Format(dateLayout)+".log")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "capacity reached")
	assert.Contains(t, buf.String(), "capacity reached")
}

func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("nothing")
	assert.NotNil(t, l.With(Field{Key: "k", Value: 1}))
	assert.NoError(t, l.Close())
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)

	level, err = ParseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatAuto, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestDailyFileWriter_rotatesOnNewDay(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 7, 23, 59, 0, 0, time.Local)
	w, err := newDailyFileWriter("svc", dir, func() time.Time { return now })
	require.NoError(t, err)

	first := w.CurrentLogFile()
	assert.Equal(t, filepath.Join(dir, "svc_2024-03-07.log"), first)

	_, err = w.Write([]byte("a\n"))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = w.Write([]byte("b\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "svc_2024-03-08.log"), w.CurrentLogFile())

	require.NoError(t, w.Close())
	assert.Equal(t, "", w.CurrentLogFile())

	_, err = w.Write([]byte("c\n"))
	assert.Error(t, err)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "svc_2024-03-08.log"))
	require.NoError(t, err)
	assert.Equal(t, "b\n", string(data))
}

func TestNewDailyFileWriter_missingDir(t *testing.T) {
	_, err := NewDailyFileWriter("svc", filepath.Join(t.TempDir(), "missing", "dir"))
	assert.Error(t, err)
}
