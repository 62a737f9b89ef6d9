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

	"github.com/ZaparooProject/go-spilink/internal/frame"
)

// Wire constants
const (
	// FrameSize is the number of bytes clocked in each direction per exchange.
	FrameSize = frame.Size
	// MaxPayload is the largest payload a single frame carries.
	MaxPayload = frame.MaxPayload
	// SyncMarker opens every valid frame.
	SyncMarker = frame.SyncMarker
)

// FrameStatus is the receive-readiness flag a side advertises in each frame.
type FrameStatus = frame.Status

// Advertised receive readiness
const (
	StatusRxUnable = frame.StatusRxUnable
	StatusRxAble   = frame.StatusRxAble
)

// EncodeFrame returns a complete wire frame carrying payload. It is meant for
// peers, simulators and tests; the engine builds frames from its tx buffer.
func EncodeFrame(payload []byte, status FrameStatus) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadLength, len(payload))
	}
	f := frame.Frame{
		Sync:   SyncMarker,
		Status: status,
		Length: uint16(len(payload)), //nolint:gosec // bounded by MaxPayload
	}
	copy(f.Data[:], payload)

	wire := make([]byte, FrameSize)
	if err := f.Encode(wire); err != nil {
		return nil, err
	}
	return wire, nil
}

// DecodeFrame validates a wire frame and returns a copy of its payload and
// the status it advertises.
func DecodeFrame(wire []byte) ([]byte, FrameStatus, error) {
	var f frame.Frame
	if err := f.Decode(wire); err != nil {
		return nil, 0, err
	}
	if err := f.Validate(); err != nil {
		return nil, 0, err
	}
	return append([]byte(nil), f.Payload()...), f.Status, nil
}
