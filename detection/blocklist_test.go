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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	list := []string{" 1a86:7523 ", "0403:6001"}
	assert.True(t, IsBlocked("1A86:7523", list))
	assert.True(t, IsBlocked("0403:6001", list))
	assert.False(t, IsBlocked("10C4:EA60", list))
	assert.False(t, IsBlocked("", []string{""}))
	assert.False(t, IsBlocked("1A86:7523", nil))
}

func TestParseVIDPID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "VID:1A86 PID:7523", want: "1A86:7523"},
		{in: "usb vid=0403 pid=6001 serial=A1", want: "0403:6001"},
		{in: "vendor=10c4 product=ea60", want: "10C4:EA60"},
		{in: "1a86:7523", want: "1A86:7523"},
		{in: "PID:7523", want: ""},
		{in: "not a descriptor", want: ""},
		{in: "12:34:56", want: ""},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseVIDPID(tt.in))
		})
	}
}

func TestExtractHex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1A86", extractHex("1A86 PID"))
	assert.Equal(t, "7523", extractHex(" 7523"))
	assert.Equal(t, "", extractHex("XYZ"))
	assert.Equal(t, "EA60", extractHex("EA60"))
}

func TestIsHex(t *testing.T) {
	t.Parallel()

	assert.True(t, isHex("1a86"))
	assert.True(t, isHex("EA60"))
	assert.False(t, isHex(""))
	assert.False(t, isHex("12G4"))
}

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		device  string
		ignore  []string
		ignored bool
	}{
		{name: "exact", device: "/dev/spidev2.1", ignore: []string{"/dev/spidev2.1"}, ignored: true},
		{name: "unclean", device: "/dev/spidev2.1", ignore: []string{"/dev//spidev2.1"}, ignored: true},
		{name: "case", device: "COM3", ignore: []string{"com3"}, ignored: true},
		{name: "other", device: "/dev/spidev2.0", ignore: []string{"/dev/spidev2.1"}, ignored: false},
		{name: "empty entries", device: "/dev/ttyUSB0", ignore: []string{""}, ignored: false},
		{name: "empty device", device: "", ignore: []string{""}, ignored: false},
		{name: "no list", device: "/dev/ttyUSB0", ignored: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.ignored, IsPathIgnored(tt.device, tt.ignore))
		})
	}
}
