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

import (
	"errors"
	"testing"
)

// =============================================================================
// Fuzz Tests for Frame Decoding
// =============================================================================
// Inbound frames come straight off the bus; a desynchronized or noisy peer can
// put anything in them. Decoding and validation must never panic and must
// never hand out more than MaxPayload bytes.
//
// Run with: go test -fuzz=FuzzDecodeValidate -fuzztime=30s ./internal/frame/

// FuzzDecodeValidate decodes arbitrary bytes and checks the validation rules.
func FuzzDecodeValidate(f *testing.F) {
	valid := make([]byte, Size)
	valid[0], valid[1] = 0xA5, 0xA5
	valid[4] = 3
	copy(valid[HeaderSize:], "abc")
	f.Add(valid)

	f.Add([]byte{})
	f.Add([]byte{0xA5, 0xA5, 0x00, 0x00, 0xFF, 0xFF})
	f.Add(make([]byte, Size))

	f.Fuzz(func(t *testing.T, buf []byte) {
		var fr Frame
		if err := fr.Decode(buf); err != nil {
			if !errors.Is(err, ErrShortBuffer) || len(buf) >= Size {
				t.Fatalf("unexpected decode error: %v", err)
			}
			return
		}

		err := fr.Validate()
		switch {
		case fr.Sync != SyncMarker:
			if !errors.Is(err, ErrBadSync) {
				t.Fatalf("sync 0x%04X accepted", fr.Sync)
			}
		case fr.Length > MaxPayload:
			if !errors.Is(err, ErrBadLength) {
				t.Fatalf("length %d accepted", fr.Length)
			}
		default:
			if err != nil {
				t.Fatalf("valid frame rejected: %v", err)
			}
		}

		if len(fr.Payload()) > MaxPayload {
			t.Fatalf("payload of %d bytes", len(fr.Payload()))
		}

		out := make([]byte, Size)
		if err := fr.Encode(out); err != nil {
			t.Fatalf("encode: %v", err)
		}
	})
}
