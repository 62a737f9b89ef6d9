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

package frame

import "errors"

var (
	// ErrBadSync marks a frame whose sync field is not SyncMarker.
	ErrBadSync = errors.New("frame sync mismatch")
	// ErrBadLength marks a frame whose length exceeds MaxPayload.
	ErrBadLength = errors.New("frame length out of range")
	// ErrShortBuffer is returned when a buffer cannot hold a whole frame.
	ErrShortBuffer = errors.New("buffer shorter than frame")
	// ErrOverflow marks an accepted payload that did not fit the sink.
	ErrOverflow = errors.New("payload does not fit receive buffer")
)

// Validate checks the sync marker and then the length field.
// A bad sync is reported whatever the rest of the frame holds.
func (f *Frame) Validate() error {
	if f.Sync != SyncMarker {
		return ErrBadSync
	}
	if f.Length > MaxPayload {
		return ErrBadLength
	}
	return nil
}
