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
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-spilink/internal/syncutil"
)

// ReopenFunc opens a fresh transport to the same device, e.g. after a USB
// serial adapter was unplugged and plugged back in.
type ReopenFunc func(ctx context.Context) (Transport, error)

// ReattachMetrics counts reattach activity.
type ReattachMetrics struct {
	Attempts  int64 // ReopenFunc calls
	Successes int64 // Reattaches that ended with a transport attached
	Failures  int64 // Reattaches that gave up
}

// Reattacher restores a link's transport after it went missing.
type Reattacher struct {
	link   *Link
	reopen ReopenFunc
	retry  *RetryConfig
	mu     syncutil.Mutex

	attempts  int64
	successes int64
	failures  int64
}

// NewReattacher creates a reattacher for link. A nil retry config uses
// DefaultRetryConfig.
func NewReattacher(link *Link, reopen ReopenFunc, retry *RetryConfig) *Reattacher {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &Reattacher{
		link:   link,
		reopen: reopen,
		retry:  retry,
	}
}

// Reattach closes and detaches the current transport, if any, then opens a
// new one with backoff and attaches it. Buffered data is untouched.
func (r *Reattacher) Reattach(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old := r.link.Detach(); old != nil {
		if err := old.Close(); err != nil {
			Debugf("reattach: closing old %s transport: %v", old.Type(), err)
		}
	}

	var transport Transport
	err := RetryWithConfig(ctx, r.retry, func() error {
		atomic.AddInt64(&r.attempts, 1)
		t, err := r.reopen(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return NewTransportError("reopen", "", err, ErrorTypeTransient)
		}
		transport = t
		return nil
	})
	if err != nil {
		atomic.AddInt64(&r.failures, 1)
		return fmt.Errorf("reattach: %w", err)
	}

	if err := r.link.Attach(transport); err != nil {
		_ = transport.Close()
		atomic.AddInt64(&r.failures, 1)
		return fmt.Errorf("reattach: %w", err)
	}

	atomic.AddInt64(&r.successes, 1)
	Debugf("reattached %s transport", transport.Type())
	return nil
}

// Run checks link health every checkEvery and reattaches whenever the
// transport has been missing for the health threshold. It returns when ctx
// ends.
func (r *Reattacher) Run(ctx context.Context, checkEvery time.Duration) error {
	if checkEvery <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidParameter)
	}

	ticker := time.NewTicker(checkEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // plain cancellation
		case <-ticker.C:
			if !r.link.Health().TransportMissing {
				continue
			}
			if err := r.Reattach(ctx); err != nil {
				Debugf("%v", err)
			}
		}
	}
}

// GetMetrics returns reattach counters.
func (r *Reattacher) GetMetrics() ReattachMetrics {
	return ReattachMetrics{
		Attempts:  atomic.LoadInt64(&r.attempts),
		Successes: atomic.LoadInt64(&r.successes),
		Failures:  atomic.LoadInt64(&r.failures),
	}
}
