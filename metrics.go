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
	"sync/atomic"
)

// Metrics is a point-in-time snapshot of engine counters.
type Metrics struct {
	Ticks              int64 // Tick calls
	TicksSkipped       int64 // Ticks that found an exchange in flight
	NoDevice           int64 // Ticks with no transport attached
	SubmitFailures     int64 // Exchanges the transport rejected
	ExchangesStarted   int64 // Exchanges the transport accepted
	ExchangesCompleted int64 // Completions that ended an in-flight exchange
	TransferErrors     int64 // Completions reporting a transfer error
	StaleCompletions   int64 // Completions for abandoned exchanges
	Abandoned          int64 // In-flight exchanges abandoned by Detach
	FramesSent         int64 // Outbound frames carrying payload
	FramesReceived     int64 // Inbound frames whose payload was accepted
	BytesSent          int64 // Payload bytes handed to the transport
	BytesReceived      int64 // Payload bytes accepted into the rx buffer
	BadSync            int64 // Inbound frames dropped for a sync mismatch
	BadLength          int64 // Inbound frames dropped for an oversize length
	Overflows          int64 // Valid inbound frames dropped for lack of rx space
	BytesDropped       int64 // Payload bytes lost to overflow
}

// String renders the counters that matter most when watching a live link.
func (m Metrics) String() string {
	return fmt.Sprintf(
		"ticks=%d skipped=%d exchanges=%d/%d sent=%dB recv=%dB "+
			"bad_sync=%d bad_len=%d overflow=%d no_device=%d submit_fail=%d xfer_err=%d",
		m.Ticks, m.TicksSkipped, m.ExchangesCompleted, m.ExchangesStarted,
		m.BytesSent, m.BytesReceived, m.BadSync, m.BadLength, m.Overflows,
		m.NoDevice, m.SubmitFailures, m.TransferErrors)
}

// engineCounters holds the live atomic counters behind Metrics.
type engineCounters struct {
	ticks              int64
	ticksSkipped       int64
	noDevice           int64
	submitFailures     int64
	exchangesStarted   int64
	exchangesCompleted int64
	transferErrors     int64
	staleCompletions   int64
	abandoned          int64
	framesSent         int64
	framesReceived     int64
	bytesSent          int64
	bytesReceived      int64
	badSync            int64
	badLength          int64
	overflows          int64
	bytesDropped       int64
}

func (c *engineCounters) snapshot() Metrics {
	return Metrics{
		Ticks:              atomic.LoadInt64(&c.ticks),
		TicksSkipped:       atomic.LoadInt64(&c.ticksSkipped),
		NoDevice:           atomic.LoadInt64(&c.noDevice),
		SubmitFailures:     atomic.LoadInt64(&c.submitFailures),
		ExchangesStarted:   atomic.LoadInt64(&c.exchangesStarted),
		ExchangesCompleted: atomic.LoadInt64(&c.exchangesCompleted),
		TransferErrors:     atomic.LoadInt64(&c.transferErrors),
		StaleCompletions:   atomic.LoadInt64(&c.staleCompletions),
		Abandoned:          atomic.LoadInt64(&c.abandoned),
		FramesSent:         atomic.LoadInt64(&c.framesSent),
		FramesReceived:     atomic.LoadInt64(&c.framesReceived),
		BytesSent:          atomic.LoadInt64(&c.bytesSent),
		BytesReceived:      atomic.LoadInt64(&c.bytesReceived),
		BadSync:            atomic.LoadInt64(&c.badSync),
		BadLength:          atomic.LoadInt64(&c.badLength),
		Overflows:          atomic.LoadInt64(&c.overflows),
		BytesDropped:       atomic.LoadInt64(&c.bytesDropped),
	}
}
