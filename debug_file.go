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
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Session log state, guarded by logMu.
var (
	sessionLogFile   *os.File
	sessionLogPath   string
	sessionLogWriter io.Writer
)

// InitSessionLog opens a timestamped log file that receives every debug
// line regardless of SetDebugEnabled. An empty dir means the working
// directory. It returns the file path.
func InitSessionLog(dir string) (string, error) {
	path := "spilink_" + time.Now().Format("20060102_150405") + ".log"
	if dir != "" {
		path = filepath.Join(dir, path)
	}

	logFile, err := os.Create(path) //nolint:gosec // filename is constructed internally
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	logMu.Lock()
	defer logMu.Unlock()

	if sessionLogFile != nil {
		_ = sessionLogFile.Close()
	}
	sessionLogFile = logFile
	sessionLogPath = path
	sessionLogWriter = logFile

	writeSessionHeader(logFile)
	return path, nil
}

// CloseSessionLog writes a footer and closes the session log, if any.
func CloseSessionLog() error {
	logMu.Lock()
	defer logMu.Unlock()

	if sessionLogFile == nil {
		return nil
	}

	_, _ = fmt.Fprintf(sessionLogWriter, "\n# session ended %s\n", time.Now().Format("15:04:05.000"))

	err := sessionLogFile.Close()
	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogWriter = nil
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the open session log path, or "".
func GetSessionLogPath() string {
	logMu.Lock()
	defer logMu.Unlock()
	return sessionLogPath
}

func sessionLogOpen() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return sessionLogWriter != nil
}

func writeSessionHeader(w io.Writer) {
	fields := [][2]string{
		{"started", time.Now().Format(time.RFC3339)},
		{"pid", strconv.Itoa(os.Getpid())},
		{"platform", runtime.GOOS + "/" + runtime.GOARCH},
		{"go", runtime.Version()},
		{"args", strings.Join(os.Args, " ")},
	}
	_, _ = io.WriteString(w, "# spilink session log\n")
	for _, f := range fields {
		_, _ = fmt.Fprintf(w, "# %-9s %s\n", f[0]+":", f[1])
	}
	_, _ = io.WriteString(w, "\n")
}
