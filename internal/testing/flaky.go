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

package testing

import (
	"errors"
	"math/rand/v2"
	"sync/atomic"

	"github.com/ZaparooProject/go-spilink"
	"github.com/ZaparooProject/go-spilink/internal/syncutil"
)

// ErrInjected is the cause of every fault a FlakyTransport produces.
var ErrInjected = errors.New("injected fault")

// FaultConfig sets per-exchange fault probabilities in [0, 1].
type FaultConfig struct {
	RejectRate   float64 // Exchange returns a busy error
	FailRate     float64 // Exchange completes with a transfer error
	CorruptRate  float64 // A reply byte in the header is flipped
	GarbageRate  float64 // The whole reply is replaced with random bytes
	DisconnectAt int64   // Nth exchange reports a device-gone error; 0 disables
	Seed         uint64
}

// FaultCounts reports how many faults were injected.
type FaultCounts struct {
	Rejected  int64
	Failed    int64
	Corrupted int64
	Garbage   int64
}

// FlakyTransport wraps a transport and injects faults into its exchanges.
type FlakyTransport struct {
	inner  spilink.Transport
	rng    *rand.Rand
	config FaultConfig
	counts FaultCounts
	calls  int64
	rngMu  syncutil.Mutex
}

// NewFlakyTransport wraps inner.
func NewFlakyTransport(inner spilink.Transport, config FaultConfig) *FlakyTransport {
	return &FlakyTransport{
		inner:  inner,
		config: config,
		rng:    newRand(config.Seed),
	}
}

func (f *FlakyTransport) roll(rate float64) bool {
	if rate <= 0 {
		return false
	}
	f.rngMu.Lock()
	defer f.rngMu.Unlock()
	return f.rng.Float64() < rate
}

// Exchange implements spilink.Transport.
func (f *FlakyTransport) Exchange(tx, rx []byte, done func(error)) error {
	call := atomic.AddInt64(&f.calls, 1)

	if f.config.DisconnectAt > 0 && call >= f.config.DisconnectAt {
		return spilink.NewTransportError("exchange", "flaky", ErrInjected, spilink.ErrorTypePermanent)
	}
	if f.roll(f.config.RejectRate) {
		atomic.AddInt64(&f.counts.Rejected, 1)
		return spilink.NewTransportError("exchange", "flaky", spilink.ErrTransportBusy, spilink.ErrorTypeTransient)
	}

	return f.inner.Exchange(tx, rx, func(err error) {
		if err == nil {
			err = f.mangle(rx)
		}
		done(err)
	})
}

func (f *FlakyTransport) mangle(rx []byte) error {
	switch {
	case f.roll(f.config.FailRate):
		atomic.AddInt64(&f.counts.Failed, 1)
		return spilink.NewTransportReadError("exchange", "flaky", ErrInjected)
	case f.roll(f.config.GarbageRate):
		atomic.AddInt64(&f.counts.Garbage, 1)
		f.rngMu.Lock()
		for i := range rx {
			rx[i] = byte(f.rng.UintN(256))
		}
		f.rngMu.Unlock()
	case f.roll(f.config.CorruptRate):
		atomic.AddInt64(&f.counts.Corrupted, 1)
		f.rngMu.Lock()
		rx[f.rng.IntN(spilink.FrameSize-spilink.MaxPayload)] ^= 0xFF
		f.rngMu.Unlock()
	}
	return nil
}

// Counts returns the faults injected so far.
func (f *FlakyTransport) Counts() FaultCounts {
	return FaultCounts{
		Rejected:  atomic.LoadInt64(&f.counts.Rejected),
		Failed:    atomic.LoadInt64(&f.counts.Failed),
		Corrupted: atomic.LoadInt64(&f.counts.Corrupted),
		Garbage:   atomic.LoadInt64(&f.counts.Garbage),
	}
}

// Close implements spilink.Transport.
func (f *FlakyTransport) Close() error {
	return f.inner.Close() //nolint:wrapcheck // pass-through
}

// IsConnected implements spilink.Transport.
func (f *FlakyTransport) IsConnected() bool {
	return f.inner.IsConnected()
}

// Type implements spilink.Transport.
func (f *FlakyTransport) Type() spilink.TransportType {
	return f.inner.Type()
}

func (*FlakyTransport) String() string {
	return "flaky"
}

var _ spilink.Transport = (*FlakyTransport)(nil)
