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

package detection

import (
	"path/filepath"
	"strings"
)

// DefaultBlocklist returns USB VID:PID pairs that are never probed. Probing
// opens the port, which resets some boards (e.g. toggling DTR on Arduino
// bootloaders), so devices known to misbehave on open belong here.
func DefaultBlocklist() []string {
	return []string{}
}

// IsBlocked reports whether vidpid appears in blocklist, ignoring case and
// surrounding space.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.TrimSpace(vidpid)
	if vidpid == "" {
		return false
	}
	for _, blocked := range blocklist {
		if strings.EqualFold(vidpid, strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

var (
	vidKeys = []string{"VID:", "VENDOR=", "VID="}
	pidKeys = []string{"PID:", "PRODUCT=", "PID="}
)

// ParseVIDPID extracts an uppercase "VID:PID" pair from descriptors such as
// "VID:1234 PID:5678", "vendor=1234 product=5678" or "1234:5678". It
// returns "" when no pair is found.
func ParseVIDPID(descriptor string) string {
	descriptor = strings.ToUpper(descriptor)

	vid := hexAfterKey(descriptor, vidKeys)
	pid := hexAfterKey(descriptor, pidKeys)
	if vid != "" && pid != "" {
		return vid + ":" + pid
	}

	if left, right, ok := strings.Cut(descriptor, ":"); ok && !strings.Contains(right, ":") {
		if isHex(left) && isHex(right) {
			return descriptor
		}
	}
	return ""
}

func hexAfterKey(s string, keys []string) string {
	for _, key := range keys {
		if idx := strings.Index(s, key); idx >= 0 {
			return extractHex(s[idx+len(key):])
		}
	}
	return ""
}

// extractHex returns the first run of uppercase hex digits in s.
func extractHex(s string) string {
	start := strings.IndexFunc(s, isUpperHexDigit)
	if start < 0 {
		return ""
	}
	rest := s[start:]
	if end := strings.IndexFunc(rest, func(r rune) bool { return !isUpperHexDigit(r) }); end >= 0 {
		return rest[:end]
	}
	return rest
}

func isUpperHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isUpperHexDigit(r) && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// IsPathIgnored reports whether devicePath matches one of ignorePaths after
// cleaning. The comparison is case-insensitive so COM ports match on Windows.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	device := normalizedPath(devicePath)
	for _, ignore := range ignorePaths {
		if ignore != "" && normalizedPath(ignore) == device {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
