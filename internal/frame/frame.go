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

// Package frame implements the fixed-size frame exchanged on every link
// cycle: codec, construction from a transmit queue and validation of
// received frames.
package frame

import (
	"encoding/binary"
	"fmt"
)

// Frame is the decoded form of one wire frame.
type Frame struct {
	Sync   uint16
	Status Status
	Length uint16
	Data   [MaxPayload]byte
}

// Header is the fixed prefix of a frame, used for tracing.
type Header struct {
	Sync   uint16
	Status Status
	Length uint16
}

// String formats the header for logs.
func (h Header) String() string {
	return fmt.Sprintf("sync=0x%04X status=%s len=%d", h.Sync, h.Status, h.Length)
}

// Header returns the frame's header fields.
func (f *Frame) Header() Header {
	return Header{Sync: f.Sync, Status: f.Status, Length: f.Length}
}

// Encode writes the frame into dst field by field. dst must hold at least
// Size bytes; the whole payload area is written whatever Length says.
func (f *Frame) Encode(dst []byte) error {
	if len(dst) < Size {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, Size, len(dst))
	}
	binary.LittleEndian.PutUint16(dst[syncOffset:], f.Sync)
	binary.LittleEndian.PutUint16(dst[statusOffset:], uint16(f.Status))
	binary.LittleEndian.PutUint16(dst[lengthOffset:], f.Length)
	copy(dst[dataOffset:Size], f.Data[:])
	return nil
}

// Decode reads a frame from src. Fields are taken as they are; call Validate
// before trusting Length.
func (f *Frame) Decode(src []byte) error {
	if len(src) < Size {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, Size, len(src))
	}
	f.Sync = binary.LittleEndian.Uint16(src[syncOffset:])
	f.Status = Status(int16(binary.LittleEndian.Uint16(src[statusOffset:]))) //nolint:gosec // status is a signed 16-bit wire field
	f.Length = binary.LittleEndian.Uint16(src[lengthOffset:])
	copy(f.Data[:], src[dataOffset:Size])
	return nil
}

// PeekHeader decodes only the header of an encoded frame.
func PeekHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, HeaderSize, len(src))
	}
	return Header{
		Sync:   binary.LittleEndian.Uint16(src[syncOffset:]),
		Status: Status(int16(binary.LittleEndian.Uint16(src[statusOffset:]))), //nolint:gosec // see Decode
		Length: binary.LittleEndian.Uint16(src[lengthOffset:]),
	}, nil
}

// Payload returns the meaningful part of Data. Length is clamped so an
// unvalidated frame cannot cause a panic.
func (f *Frame) Payload() []byte {
	return f.Data[:min(int(f.Length), MaxPayload)]
}

// Clear zeroes every field.
func (f *Frame) Clear() {
	*f = Frame{}
}
