// go-spilink
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-spilink.
//
// go-spilink is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-spilink is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-spilink; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package uart

import (
	"runtime"
	"testing"
	"time"
)

// TestPlatformDetection tests the Windows check
func TestPlatformDetection(t *testing.T) {
	t.Parallel()

	if got, want := isWindows(), runtime.GOOS == "windows"; got != want {
		t.Errorf("isWindows() = %v, want %v", got, want)
	}
}

// TestDefaultFrameTimeout tests the per-platform reply deadline
func TestDefaultFrameTimeout(t *testing.T) {
	t.Parallel()

	want := 100 * time.Millisecond
	if runtime.GOOS == "windows" {
		want = 250 * time.Millisecond
	}
	if got := defaultFrameTimeout(); got != want {
		t.Errorf("defaultFrameTimeout() = %v, want %v", got, want)
	}
}

// TestFrameTimeoutCoversTransfer checks the default deadline leaves room for
// a full frame at the default line rate.
func TestFrameTimeoutCoversTransfer(t *testing.T) {
	t.Parallel()

	const bitsPerByte = 10 // 8N1
	frameTime := time.Duration(1546*bitsPerByte) * time.Second / DefaultBaudRate
	if defaultFrameTimeout() < 2*frameTime {
		t.Errorf("default frame timeout %v is too short for a %v frame", defaultFrameTimeout(), frameTime)
	}
}
