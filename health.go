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

import "strings"

// DefaultHealthThreshold is the streak length, in ticks, after which a
// condition is reported. At the default 1 kHz cadence this is one second.
const DefaultHealthThreshold = 1000

// Health reports sustained failure conditions. Single dropped frames are
// normal on a noisy bus and only show up in Metrics; a flag here means the
// condition has persisted for at least the configured threshold.
type Health struct {
	// TransportMissing: consecutive ticks found no transport or had the
	// submission rejected.
	TransportMissing bool
	// SyncLost: consecutive inbound frames failed validation. The peer is
	// absent, out of phase, or speaking another protocol.
	SyncLost bool
	// ConsumerStalled: consecutive valid frames were dropped because the
	// client is not draining the rx buffer.
	ConsumerStalled bool

	MissingStreak  int64
	SyncLossStreak int64
	OverflowStreak int64
}

// OK reports whether no condition is flagged.
func (h Health) OK() bool {
	return !h.TransportMissing && !h.SyncLost && !h.ConsumerStalled
}

func (h Health) String() string {
	if h.OK() {
		return "ok"
	}
	var parts []string
	if h.TransportMissing {
		parts = append(parts, "transport-missing")
	}
	if h.SyncLost {
		parts = append(parts, "sync-lost")
	}
	if h.ConsumerStalled {
		parts = append(parts, "consumer-stalled")
	}
	return strings.Join(parts, ",")
}

// healthTracker counts streaks. Callers hold the engine lock.
type healthTracker struct {
	threshold int64
	missing   int64
	syncLoss  int64
	overflow  int64
}

func (h *healthTracker) transportMissing() int64 {
	h.missing++
	return h.missing
}

func (h *healthTracker) transportOK() {
	h.missing = 0
}

func (h *healthTracker) frameRejected() int64 {
	h.syncLoss++
	return h.syncLoss
}

func (h *healthTracker) frameValid() {
	h.syncLoss = 0
}

func (h *healthTracker) overflowed() int64 {
	h.overflow++
	return h.overflow
}

func (h *healthTracker) consumed() {
	h.overflow = 0
}

func (h *healthTracker) reset() {
	h.missing = 0
	h.syncLoss = 0
	h.overflow = 0
}

func (h *healthTracker) report() Health {
	return Health{
		TransportMissing: h.missing >= h.threshold,
		SyncLost:         h.syncLoss >= h.threshold,
		ConsumerStalled:  h.overflow >= h.threshold,
		MissingStreak:    h.missing,
		SyncLossStreak:   h.syncLoss,
		OverflowStreak:   h.overflow,
	}
}

// shouldLog limits per-frame diagnostics during a streak: the first
// occurrence, then once per threshold.
func (h *healthTracker) shouldLog(streak int64) bool {
	return streak == 1 || (h.threshold > 0 && streak%h.threshold == 0)
}
