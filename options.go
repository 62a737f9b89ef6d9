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
	"time"
)

// Defaults: 16 KiB outbound, 64 KiB inbound, one
// exchange attempt per millisecond.
const (
	DefaultTxCapacity = 16 * 1024
	DefaultRxCapacity = 64 * 1024
	DefaultInterval   = time.Millisecond
	defaultTraceDepth = 16
)

// Option configures a Link.
type Option func(*linkConfig) error

type linkConfig struct {
	transport          Transport
	txCapacity         int
	rxCapacity         int
	interval           time.Duration
	stallThreshold     time.Duration
	healthThreshold    int64
	traceDepth         int
	advertiseReadiness bool
}

func defaultLinkConfig() *linkConfig {
	return &linkConfig{
		txCapacity:      DefaultTxCapacity,
		rxCapacity:      DefaultRxCapacity,
		interval:        DefaultInterval,
		stallThreshold:  2 * time.Second,
		healthThreshold: DefaultHealthThreshold,
		traceDepth:      defaultTraceDepth,
	}
}

// WithTxCapacity sets the outbound buffer size in bytes.
func WithTxCapacity(n int) Option {
	return func(c *linkConfig) error {
		c.txCapacity = n
		return nil
	}
}

// WithRxCapacity sets the inbound buffer size in bytes.
func WithRxCapacity(n int) Option {
	return func(c *linkConfig) error {
		c.rxCapacity = n
		return nil
	}
}

// WithInterval sets the exchange cadence.
func WithInterval(d time.Duration) Option {
	return func(c *linkConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidParameter, d)
		}
		c.interval = d
		return nil
	}
}

// WithStallThreshold sets how late a tick may fire before the trigger
// counts a stall (host suspend, scheduler starvation).
func WithStallThreshold(d time.Duration) Option {
	return func(c *linkConfig) error {
		c.stallThreshold = d
		return nil
	}
}

// WithAdvertiseReadiness makes outbound frames advertise RX_ABLE whenever the
// rx buffer can hold a full frame. By default every frame advertises
// RX_UNABLE.
func WithAdvertiseReadiness(enabled bool) Option {
	return func(c *linkConfig) error {
		c.advertiseReadiness = enabled
		return nil
	}
}

// WithHealthThreshold sets the streak length at which Health flags a
// condition.
func WithHealthThreshold(ticks int64) Option {
	return func(c *linkConfig) error {
		if ticks < 1 {
			return fmt.Errorf("%w: health threshold must be at least 1, got %d", ErrInvalidParameter, ticks)
		}
		c.healthThreshold = ticks
		return nil
	}
}

// WithTraceDepth sets how many frame headers are kept for dropped-frame logs.
func WithTraceDepth(entries int) Option {
	return func(c *linkConfig) error {
		c.traceDepth = entries
		return nil
	}
}

// WithTransport attaches t when the link is created.
func WithTransport(t Transport) Option {
	return func(c *linkConfig) error {
		c.transport = t
		return nil
	}
}
