package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConsoleLevelFollowsVerbose(t *testing.T) {
	var quiet bytes.Buffer
	log, closeFn, err := New(Options{Console: &quiet})
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown")
	require.NoError(t, closeFn())
	assert.NotContains(t, quiet.String(), "hidden")
	assert.Contains(t, quiet.String(), "shown")

	var loud bytes.Buffer
	log, closeFn, err = New(Options{Console: &loud, Verbose: true})
	require.NoError(t, err)
	log.Debug("details")
	require.NoError(t, closeFn())
	assert.Contains(t, loud.String(), "details")
}

func TestLogfileReceivesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	var console bytes.Buffer
	log, closeFn, err := New(Options{Console: &console, Logfile: path})
	require.NoError(t, err)
	log.Debug("fetched batch", zap.Int("ids", 3))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "fetched batch", entry["msg"])
	assert.EqualValues(t, 3, entry["ids"])
	assert.Empty(t, console.String())
}

func TestLogfileOpenError(t *testing.T) {
	_, _, err := New(Options{Logfile: filepath.Join(t.TempDir(), "missing", "run.log")})
	require.Error(t, err)
}
