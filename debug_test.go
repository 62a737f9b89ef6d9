//nolint:paralleltest // Tests modify package-level debug state, cannot run in parallel
package spilink

import (
	"bytes"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureDebug swaps the session writer and console output for buffers.
func captureDebug(t *testing.T, enabled bool) (session, console *bytes.Buffer) {
	t.Helper()

	origEnabled := debugEnabled.Load()
	origOutput := debugOutput

	logMu.Lock()
	origWriter := sessionLogWriter
	session = &bytes.Buffer{}
	sessionLogWriter = session
	logMu.Unlock()

	console = &bytes.Buffer{}
	debugOutput = console
	debugEnabled.Store(enabled)

	t.Cleanup(func() {
		logMu.Lock()
		sessionLogWriter = origWriter
		logMu.Unlock()
		debugOutput = origOutput
		debugEnabled.Store(origEnabled)
	})
	return session, console
}

func TestDebugf_WritesToSessionLog(t *testing.T) {
	session, console := captureDebug(t, false)

	Debugf("dropped frame %d", 42)

	assert.Contains(t, session.String(), "DEBUG: dropped frame 42\n")
	assert.Empty(t, console.String(), "console stays quiet when disabled")
}

func TestDebugf_IncludesTimestamp(t *testing.T) {
	session, _ := captureDebug(t, false)

	Debugf("tick")

	matched, err := regexp.MatchString(`^\d{2}:\d{2}:\d{2}\.\d{3} DEBUG: tick`, session.String())
	require.NoError(t, err)
	assert.True(t, matched, "got: %s", session.String())
}

func TestDebugf_ConsoleWhenEnabled(t *testing.T) {
	_, console := captureDebug(t, true)

	Debugf("sync 0x%04X", 0xA5A5)

	assert.Equal(t, "DEBUG: sync 0xA5A5\n", console.String())
}

func TestDebugln_JoinsOperands(t *testing.T) {
	session, console := captureDebug(t, true)

	Debugln("frame", 3, "dropped", true)

	assert.Contains(t, session.String(), "DEBUG: frame 3 dropped true\n")
	assert.Equal(t, "DEBUG: frame 3 dropped true\n", console.String())
}

func TestDebugf_NoSinks(t *testing.T) {
	origEnabled := debugEnabled.Load()
	t.Cleanup(func() { debugEnabled.Store(origEnabled) })

	logMu.Lock()
	origWriter := sessionLogWriter
	sessionLogWriter = nil
	logMu.Unlock()
	t.Cleanup(func() {
		logMu.Lock()
		sessionLogWriter = origWriter
		logMu.Unlock()
	})

	SetDebugEnabled(false)
	Debugf("nobody listens %d", 1)
	Debugln("nobody", "listens")
}

func TestSetDebugEnabled(t *testing.T) {
	origEnabled := debugEnabled.Load()
	t.Cleanup(func() { debugEnabled.Store(origEnabled) })

	SetDebugEnabled(true)
	assert.True(t, DebugEnabled())

	SetDebugEnabled(false)
	assert.False(t, DebugEnabled())
}

func TestDebugf_ConcurrentWriters(t *testing.T) {
	session, _ := captureDebug(t, false)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range 50 {
				Debugf("writer %d line %d", id, j)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(session.String()), "\n")
	assert.Len(t, lines, 400)
	for _, line := range lines {
		assert.Contains(t, line, "DEBUG: writer ")
	}
}

func TestDebugOutput_DefaultsToStderr(t *testing.T) {
	var w io.Writer = os.Stderr
	assert.Equal(t, w, debugOutput)
}
