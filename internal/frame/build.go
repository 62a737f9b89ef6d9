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

import "fmt"

// PayloadSource is the transmit side a frame is filled from.
type PayloadSource interface {
	Len() int
	Read(p []byte) int
}

// PayloadSink is the receive side a frame's payload is delivered to.
// Write must be all-or-nothing.
type PayloadSink interface {
	Write(p []byte) int
}

// Build fills f with up to MaxPayload bytes from src and returns the
// payload length. Unused payload bytes are zeroed.
func Build(f *Frame, src PayloadSource, status Status) int {
	n := min(src.Len(), MaxPayload)

	clear(f.Data[:])
	n = src.Read(f.Data[:n])

	f.Sync = SyncMarker
	f.Status = status
	f.Length = uint16(n) //nolint:gosec // bounded by MaxPayload
	return n
}

// Accept validates f and delivers its payload to dst. The payload lands
// whole or not at all; when dst lacks room the entire payload is dropped
// and ErrOverflow is returned. An empty payload is accepted without
// touching dst.
func Accept(f *Frame, dst PayloadSink) (int, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	payload := f.Payload()
	if len(payload) == 0 {
		return 0, nil
	}
	if n := dst.Write(payload); n != len(payload) {
		return 0, fmt.Errorf("%w: dropped %d bytes", ErrOverflow, len(payload))
	}
	return len(payload), nil
}
