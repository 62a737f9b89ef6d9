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

package polling

import (
	"fmt"
	"time"
)

// Config holds trigger pacing configuration.
type Config struct {
	// Logf receives stall diagnostics. Nil discards them.
	Logf func(format string, args ...any)
	// Interval between Tick calls, 1 ms by default.
	Interval time.Duration
	// StallThreshold is how late a tick may arrive before it is counted as a
	// stall. Suspend/resume and scheduler starvation show up this way.
	// Zero or negative disables stall detection.
	StallThreshold time.Duration
}

// DefaultConfig returns the 1 kHz configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval:       time.Millisecond,
		StallThreshold: 2 * time.Second,
	}
}

// DetectStall reports whether elapsed, the time since the previous tick,
// exceeds the interval by more than the stall threshold.
func (c *Config) DetectStall(elapsed time.Duration) bool {
	if c.StallThreshold <= 0 {
		return false
	}
	return elapsed > c.Interval+c.StallThreshold
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidConfig, c.Interval)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("interval=%v stall_threshold=%v", c.Interval, c.StallThreshold)
}

func (c *Config) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}
