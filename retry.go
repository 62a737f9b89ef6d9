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
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// RetryConfig controls how transport opens are retried.
type RetryConfig struct {
	// MaxAttempts bounds calls to the retried function; 0 calls it once.
	MaxAttempts int
	// InitialBackoff is the delay after the first failure.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay.
	MaxBackoff time.Duration
	// BackoffMultiplier grows the delay after each failure.
	BackoffMultiplier float64
	// Jitter adds up to this fraction of the delay at random.
	Jitter float64
	// RetryTimeout bounds the whole sequence; 0 means no bound.
	RetryTimeout time.Duration
}

// DefaultRetryConfig returns the configuration used to open and re-open
// transports.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      10 * time.Second,
	}
}

// RetryableFunc is one attempt.
type RetryableFunc func() error

// RetryWithConfig calls retryFunc until it succeeds, returns an error that
// IsRetryable rejects, or attempts run out. The last attempt's error is
// returned, also when ctx ends during a backoff.
func RetryWithConfig(ctx context.Context, config *RetryConfig, retryFunc RetryableFunc) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts <= 0 {
		return retryFunc()
	}

	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	schedule := newBackoffSchedule(config)
	var lastErr error
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return fmt.Errorf("retry context cancelled: %w", ctx.Err())
		}

		lastErr = retryFunc()
		if lastErr == nil || !IsRetryable(lastErr) || attempt >= config.MaxAttempts {
			return lastErr
		}

		timer := time.NewTimer(schedule.next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
}

// backoffSchedule yields jittered, exponentially growing delays.
type backoffSchedule struct {
	config  *RetryConfig
	current time.Duration
}

func newBackoffSchedule(config *RetryConfig) *backoffSchedule {
	return &backoffSchedule{config: config, current: config.InitialBackoff}
}

func (b *backoffSchedule) next() time.Duration {
	sleep := jittered(b.current, b.config.Jitter)
	b.current = min(time.Duration(float64(b.current)*b.config.BackoffMultiplier), b.config.MaxBackoff)
	return sleep
}

// jittered adds up to factor*base of random delay.
func jittered(base time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return base
	}
	var randBytes [8]byte
	if _, err := rand.Read(randBytes[:]); err != nil {
		return base
	}
	frac := float64(binary.LittleEndian.Uint64(randBytes[:])) / float64(1<<64)
	return base + time.Duration(frac*factor*float64(base))
}
