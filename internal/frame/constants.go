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

// Wire layout of a link frame. Every exchange moves Size bytes in each
// direction regardless of how much payload is meaningful.
const (
	SyncMarker uint16 = 0xA5A5 // Constant marker at offset 0

	MaxPayload = 1540 // Payload area, always transmitted in full

	syncOffset   = 0
	statusOffset = 2
	lengthOffset = 4
	dataOffset   = 6

	HeaderSize = dataOffset              // sync + status + length
	Size       = HeaderSize + MaxPayload // Total on-wire frame size
)

// Status advertises whether the sending side can accept more payload.
type Status int16

const (
	// StatusRxUnable means the sender cannot take more data right now.
	StatusRxUnable Status = 0
	// StatusRxAble means the sender can take more data.
	StatusRxAble Status = 1
)

// String returns a short name for the status.
func (s Status) String() string {
	switch s {
	case StatusRxUnable:
		return "rx-unable"
	case StatusRxAble:
		return "rx-able"
	default:
		return "unknown"
	}
}
