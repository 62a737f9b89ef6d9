// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package spilink

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-spilink/internal/syncutil"
)

var (
	debugEnabled atomic.Bool

	// logMu serializes writes from the tick, completion and client paths.
	logMu syncutil.Mutex

	// debugOutput is stderr so a CLI piping link data through stdout is not
	// corrupted by diagnostics.
	debugOutput io.Writer = os.Stderr
)

func init() {
	if os.Getenv("SPILINK_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled.Store(true)
	}
}

// Debugf logs a formatted debug message. The session log, when open, always
// receives it; the console only when debug output is enabled.
func Debugf(format string, args ...any) {
	if !debugEnabled.Load() && !sessionLogOpen() {
		return
	}
	writeDebug(fmt.Sprintf(format, args...))
}

// Debugln logs its operands like fmt.Sprintln, without the trailing newline.
func Debugln(args ...any) {
	if !debugEnabled.Load() && !sessionLogOpen() {
		return
	}
	msg := fmt.Sprintln(args...)
	writeDebug(msg[:len(msg)-1])
}

// SetDebugEnabled toggles console debug output.
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// DebugEnabled reports whether console debug output is on.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

func writeDebug(message string) {
	logMu.Lock()
	defer logMu.Unlock()

	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", timestamp, message)
	}
	if debugEnabled.Load() {
		_, _ = fmt.Fprintf(debugOutput, "DEBUG: %s\n", message)
	}
}
