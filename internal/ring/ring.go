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

// Package ring implements the fixed-capacity byte queue that sits on each
// direction of a link. Writes are all-or-nothing and reads are best-effort.
//
// A Buffer is not safe for concurrent use; its owner serializes access.
package ring

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrInvalidCapacity is returned by New for a non-positive capacity.
	ErrInvalidCapacity = errors.New("ring buffer capacity must be positive")
	// ErrBufferFull indicates a write that does not fit the free space.
	ErrBufferFull = errors.New("ring buffer full")
)

// Buffer is a circular byte queue over a fixed backing array.
//
// begin and end are tracked independently; every mutation keeps
// end == (begin+size) % capacity.
type Buffer struct {
	data     []byte
	capacity int
	size     int
	begin    int
	end      int
}

// State is a snapshot of a Buffer's indices.
type State struct {
	Capacity int
	Size     int
	Begin    int
	End      int
}

// String formats the snapshot for debug output.
func (s State) String() string {
	return fmt.Sprintf("capacity=%d size=%d begin=%d end=%d", s.Capacity, s.Size, s.Begin, s.End)
}

// New allocates a buffer holding at most capacity bytes.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Buffer{
		data:     make([]byte, capacity),
		capacity: capacity,
	}, nil
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return b.capacity
}

// Len returns the number of bytes available for reading.
func (b *Buffer) Len() int {
	return b.size
}

// Free returns the number of bytes that can currently be written.
func (b *Buffer) Free() int {
	return b.capacity - b.size
}

// State returns a snapshot of the indices.
func (b *Buffer) State() State {
	return State{Capacity: b.capacity, Size: b.size, Begin: b.begin, End: b.end}
}

// Reset empties the buffer and rewinds both indices. The backing storage is
// left as is.
func (b *Buffer) Reset() {
	b.size = 0
	b.begin = 0
	b.end = 0
}

// Write appends all of p or nothing. It returns len(p) when p fit and 0 when
// it did not, in which case the buffer is unchanged. A zero return for a
// non-empty p means "full, try again later", never partial progress.
func (b *Buffer) Write(p []byte) int {
	n := len(p)
	if n == 0 || n > b.Free() {
		return 0
	}

	first, second := b.writeSegments(n)
	copy(first, p)
	copy(second, p[len(first):])

	b.commitWrite(n)
	return n
}

// Read removes up to len(p) bytes into p and returns how many were copied.
func (b *Buffer) Read(p []byte) int {
	n := min(len(p), b.size)
	if n == 0 {
		return 0
	}

	first, second := b.readSegments(n)
	copy(p, first)
	copy(p[len(first):], second)

	b.commitRead(n)
	return n
}

// Fill copies exactly n bytes from r into the buffer. The copy is committed
// only if every step succeeds: on any read error the indices are left
// untouched and 0 is returned, even if some bytes already landed in the
// backing storage. n larger than Free yields ErrBufferFull without reading r.
func (b *Buffer) Fill(r io.Reader, n int) (int, error) {
	if n <= 0 || r == nil {
		return 0, nil
	}
	if n > b.Free() {
		return 0, ErrBufferFull
	}

	first, second := b.writeSegments(n)
	if _, err := io.ReadFull(r, first); err != nil {
		return 0, fmt.Errorf("ring fill: %w", err)
	}
	if len(second) > 0 {
		if _, err := io.ReadFull(r, second); err != nil {
			return 0, fmt.Errorf("ring fill: %w", err)
		}
	}

	b.commitWrite(n)
	return n, nil
}

// Drain copies up to limit bytes into w. The bytes are consumed only if every
// write step succeeds in full; otherwise the buffer keeps them and Drain
// reports 0, even though w may already hold part of the data.
func (b *Buffer) Drain(w io.Writer, limit int) (int, error) {
	n := min(limit, b.size)
	if n <= 0 || w == nil {
		return 0, nil
	}

	first, second := b.readSegments(n)
	if err := writeFull(w, first); err != nil {
		return 0, fmt.Errorf("ring drain: %w", err)
	}
	if len(second) > 0 {
		if err := writeFull(w, second); err != nil {
			return 0, fmt.Errorf("ring drain: %w", err)
		}
	}

	b.commitRead(n)
	return n, nil
}

// writeSegments returns the storage ranges [end, capacity) and [0, rest)
// that n bytes will occupy. n must not exceed Free.
func (b *Buffer) writeSegments(n int) (first, second []byte) {
	tail := b.capacity - b.end
	if n <= tail {
		return b.data[b.end : b.end+n], nil
	}
	return b.data[b.end:], b.data[:n-tail]
}

// readSegments returns the storage ranges holding the next n bytes.
// n must not exceed Len.
func (b *Buffer) readSegments(n int) (first, second []byte) {
	tail := b.capacity - b.begin
	if n <= tail {
		return b.data[b.begin : b.begin+n], nil
	}
	return b.data[b.begin:], b.data[:n-tail]
}

func (b *Buffer) commitWrite(n int) {
	b.end = (b.end + n) % b.capacity
	b.size += n
}

func (b *Buffer) commitRead(n int) {
	b.begin = (b.begin + n) % b.capacity
	b.size -= n
}

func writeFull(w io.Writer, p []byte) error {
	n, err := w.Write(p)
	if err != nil {
		return err //nolint:wrapcheck // wrapped by caller
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}
