// Copyright 2025 The Zaparoo Project Contributors.
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
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-spilink/internal/syncutil"
)

// Ticker is driven by a Trigger. Tick must not block; errors are counted and
// never stop the trigger.
type Ticker interface {
	Tick() error
}

// TickerFunc adapts a function to Ticker.
type TickerFunc func() error

// Tick calls f.
func (f TickerFunc) Tick() error {
	return f()
}

// TriggerMetrics contains pacing metrics
type TriggerMetrics struct {
	Ticks           int64         // Total number of ticks delivered
	TickErrors      int64         // Ticks that returned an error
	Stalls          int64         // Ticks that arrived later than the stall threshold
	LastTickLatency time.Duration // Duration of the last Tick call
	MaxTickLatency  time.Duration // Longest Tick call seen
}

// Trigger calls Tick on a fixed cadence on its own goroutine.
type Trigger struct {
	ticker   Ticker
	config   *Config
	stopChan chan struct{}
	done     chan struct{}

	lifecycle syncutil.Mutex // serializes Start and Stop

	// Metrics (atomic access)
	ticks           int64
	tickErrors      int64
	stalls          int64
	lastTickLatency int64 // in nanoseconds
	maxTickLatency  int64 // in nanoseconds

	state int64 // TriggerState
}

// NewTrigger creates a stopped trigger. A nil config or one failing
// Validate falls back to DefaultConfig.
func NewTrigger(ticker Ticker, config *Config) *Trigger {
	if config == nil || config.Validate() != nil {
		config = DefaultConfig()
	}
	cfg := *config
	return &Trigger{
		ticker: ticker,
		config: &cfg,
	}
}

// Start begins ticking. Starting a running trigger is a no-op.
func (t *Trigger) Start(_ context.Context) error {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	switch TriggerState(atomic.LoadInt64(&t.state)) {
	case TriggerRunning:
		return nil
	case TriggerStopping:
		return ErrTriggerStopping
	case TriggerStopped:
	}

	t.stopChan = make(chan struct{})
	t.done = make(chan struct{})
	atomic.StoreInt64(&t.state, int64(TriggerRunning))
	go t.tickLoop(t.stopChan, t.done)
	return nil
}

// Stop halts ticking and waits for the tick goroutine to exit. If ctx ends
// first the trigger is left Stopping and finishes on its own.
func (t *Trigger) Stop(ctx context.Context) error {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	if TriggerState(atomic.LoadInt64(&t.state)) != TriggerRunning {
		return nil
	}

	atomic.StoreInt64(&t.state, int64(TriggerStopping))
	close(t.stopChan)

	select {
	case <-t.done:
		atomic.StoreInt64(&t.state, int64(TriggerStopped))
		return nil
	case <-ctx.Done():
		done := t.done
		go func() {
			<-done
			atomic.CompareAndSwapInt64(&t.state, int64(TriggerStopping), int64(TriggerStopped))
		}()
		return fmt.Errorf("stop trigger: %w", ctx.Err())
	}
}

func (t *Trigger) tickLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	last := time.Now()
	t.performTick()

	for {
		select {
		case now := <-ticker.C:
			if elapsed := now.Sub(last); t.config.DetectStall(elapsed) {
				atomic.AddInt64(&t.stalls, 1)
				t.config.logf("trigger stalled: %v since previous tick (interval %v)",
					elapsed, t.config.Interval)
			}
			last = now
			t.performTick()
		case <-stop:
			return
		}
	}
}

func (t *Trigger) performTick() {
	start := time.Now()
	err := t.ticker.Tick()
	latency := time.Since(start).Nanoseconds()

	atomic.AddInt64(&t.ticks, 1)
	atomic.StoreInt64(&t.lastTickLatency, latency)
	for {
		prev := atomic.LoadInt64(&t.maxTickLatency)
		if latency <= prev || atomic.CompareAndSwapInt64(&t.maxTickLatency, prev, latency) {
			break
		}
	}
	if err != nil {
		atomic.AddInt64(&t.tickErrors, 1)
	}
}

// State returns the lifecycle state.
func (t *Trigger) State() TriggerState {
	return TriggerState(atomic.LoadInt64(&t.state))
}

// Config returns a copy of the trigger configuration.
func (t *Trigger) Config() *Config {
	cfg := *t.config
	return &cfg
}

// GetMetrics returns current pacing metrics
func (t *Trigger) GetMetrics() TriggerMetrics {
	return TriggerMetrics{
		Ticks:           atomic.LoadInt64(&t.ticks),
		TickErrors:      atomic.LoadInt64(&t.tickErrors),
		Stalls:          atomic.LoadInt64(&t.stalls),
		LastTickLatency: time.Duration(atomic.LoadInt64(&t.lastTickLatency)),
		MaxTickLatency:  time.Duration(atomic.LoadInt64(&t.maxTickLatency)),
	}
}
