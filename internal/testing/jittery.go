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

package testing

import (
	"io"
	"math/rand/v2"
	"time"
)

// JitterConfig shapes how a JitteryStream delivers bytes.
type JitterConfig struct {
	MaxLatency    time.Duration // Upper bound of the random delay before each read
	StallDuration time.Duration // Pause once StallAfter bytes have been delivered
	StallAfter    int           // 0 disables the stall
	MinFragment   int           // Smallest non-empty read
	Chunk         int           // Cut reads at multiples of this offset (USB packet size), 0 disables
	Seed          uint64        // 0 picks a random seed
	Fragment      bool          // Return a random share of what is buffered
}

// DefaultJitterConfig fragments reads at random with up to 2ms latency.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		MaxLatency:  2 * time.Millisecond,
		Fragment:    true,
		MinFragment: 1,
	}
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // test fixture
	}
	return rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)) //nolint:gosec // test fixture
}

// JitteryStream wraps a byte stream so reads behave like a USB serial
// bridge under load: delayed, split at arbitrary points, and sometimes
// paused mid-frame. Writes pass through. Bytes are never lost or reordered.
type JitteryStream struct {
	backend   io.ReadWriter
	rng       *rand.Rand
	held      []byte
	config    JitterConfig
	delivered int
	stalled   bool
}

// NewJitteryStream wraps backend.
func NewJitteryStream(backend io.ReadWriter, config JitterConfig) *JitteryStream {
	config.MinFragment = max(config.MinFragment, 1)
	return &JitteryStream{
		backend: backend,
		config:  config,
		rng:     newRand(config.Seed),
	}
}

// Write implements io.Writer.
func (j *JitteryStream) Write(data []byte) (int, error) {
	return j.backend.Write(data) //nolint:wrapcheck // pass-through
}

// Read implements io.Reader.
func (j *JitteryStream) Read(buf []byte) (int, error) {
	if j.config.MaxLatency > 0 {
		time.Sleep(time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1)))
	}

	if len(j.held) == 0 {
		tmp := make([]byte, max(len(buf), 64))
		n, err := j.backend.Read(tmp)
		if n == 0 {
			return 0, err //nolint:wrapcheck // pass-through
		}
		j.held = append(j.held, tmp[:n]...)
	}

	n := j.limit(min(len(buf), len(j.held)))
	copy(buf, j.held[:n])
	j.held = j.held[n:]
	j.delivered += n
	return n, nil
}

// limit decides how many of n available bytes this read returns.
func (j *JitteryStream) limit(n int) int {
	if j.config.StallAfter > 0 && !j.stalled {
		if j.delivered >= j.config.StallAfter {
			j.stalled = true
			time.Sleep(j.config.StallDuration)
		} else {
			n = min(n, j.config.StallAfter-j.delivered)
		}
	}

	if c := j.config.Chunk; c > 0 {
		n = min(n, c-j.delivered%c)
	}

	if j.config.Fragment && n > j.config.MinFragment {
		n = j.config.MinFragment + j.rng.IntN(n-j.config.MinFragment+1)
	}
	return n
}

// Delivered returns the number of bytes handed to readers so far.
func (j *JitteryStream) Delivered() int {
	return j.delivered
}

// Discard drops bytes read from the backend but not yet delivered.
func (j *JitteryStream) Discard() {
	j.held = j.held[:0]
}
