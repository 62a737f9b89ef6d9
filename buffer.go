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
	"io"

	"github.com/ZaparooProject/go-spilink/internal/ring"
	"github.com/ZaparooProject/go-spilink/internal/syncutil"
)

// lockedBuffer pairs a ring buffer with the mutex that serializes its one
// producer against its one consumer. It satisfies frame.PayloadSource and
// frame.PayloadSink so the engine can build and accept frames through it.
type lockedBuffer struct {
	buf *ring.Buffer
	mu  syncutil.Mutex
}

func newLockedBuffer(capacity int) (*lockedBuffer, error) {
	buf, err := ring.New(capacity)
	if err != nil {
		return nil, err
	}
	return &lockedBuffer{buf: buf}, nil
}

func (b *lockedBuffer) Write(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Read(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Read(p)
}

func (b *lockedBuffer) Fill(r io.Reader, n int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Fill(r, n) //nolint:wrapcheck // ring errors are already wrapped
}

func (b *lockedBuffer) Drain(w io.Writer, limit int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Drain(w, limit) //nolint:wrapcheck // ring errors are already wrapped
}

func (b *lockedBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func (b *lockedBuffer) Free() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Free()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func (b *lockedBuffer) State() ring.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.State()
}

// BufferState is a diagnostic snapshot of a ring buffer.
type BufferState = ring.State
