//nolint:paralleltest // Tests modify package-level session log state, cannot run in parallel
package spilink

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cleanupSessionLog ensures session log state is clean after tests.
func cleanupSessionLog(t *testing.T) {
	t.Helper()
	logMu.Lock()
	defer logMu.Unlock()
	if sessionLogFile != nil {
		_ = sessionLogFile.Close()
	}
	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogWriter = nil
}

func TestInitSessionLog_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { cleanupSessionLog(t) })

	path, err := InitSessionLog(dir)
	require.NoError(t, err)
	assert.Equal(t, path, GetSessionLogPath())
	assert.Equal(t, dir, filepath.Dir(path))

	_, err = os.Stat(path)
	require.NoError(t, err)

	matched, err := regexp.MatchString(`^spilink_\d{8}_\d{6}\.log$`, filepath.Base(path))
	require.NoError(t, err)
	assert.True(t, matched, "unexpected filename %s", path)
}

func TestInitSessionLog_WorkingDirectory(t *testing.T) {
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() {
		cleanupSessionLog(t)
		_ = os.Chdir(origDir)
	})

	path, err := InitSessionLog("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(path), path)
}

func TestSessionLog_HeaderBodyFooter(t *testing.T) {
	t.Cleanup(func() { cleanupSessionLog(t) })

	origEnabled := debugEnabled.Load()
	t.Cleanup(func() { debugEnabled.Store(origEnabled) })
	SetDebugEnabled(false)

	path, err := InitSessionLog(t.TempDir())
	require.NoError(t, err)

	Debugf("overflow dropped %d bytes", 12)
	require.NoError(t, CloseSessionLog())
	assert.Empty(t, GetSessionLogPath())

	content, err := os.ReadFile(path) //nolint:gosec // path is from InitSessionLog
	require.NoError(t, err)

	text := string(content)
	assert.True(t, strings.HasPrefix(text, "# spilink session log"))
	assert.Contains(t, text, "DEBUG: overflow dropped 12 bytes")
	assert.Contains(t, text, "# session ended")
}

func TestInitSessionLog_ReplacesOpenLog(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { cleanupSessionLog(t) })

	first, err := InitSessionLog(dir)
	require.NoError(t, err)
	require.NoError(t, os.Remove(first))

	second, err := InitSessionLog(dir)
	require.NoError(t, err)
	assert.Equal(t, second, GetSessionLogPath())
	require.NoError(t, CloseSessionLog())
}

func TestInitSessionLog_BadDirectory(t *testing.T) {
	_, err := InitSessionLog(filepath.Join(t.TempDir(), "missing", "dir"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create session log")
	assert.Empty(t, GetSessionLogPath())
}

func TestCloseSessionLog_NotOpen(t *testing.T) {
	cleanupSessionLog(t)
	require.NoError(t, CloseSessionLog())
}

func TestWriteSessionHeader_ContentFormat(t *testing.T) {
	var buf strings.Builder
	writeSessionHeader(&buf)

	content := buf.String()
	assert.True(t, strings.HasPrefix(content, "# spilink session log"))
	for _, field := range []string{"# started:", "# pid:", "# platform:", "# go:", "# args:"} {
		assert.Contains(t, content, field)
	}
}
