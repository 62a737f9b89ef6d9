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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTicker struct {
	err   error
	block chan struct{}
	ticks atomic.Int64
}

func (c *countingTicker) Tick() error {
	c.ticks.Add(1)
	if c.block != nil {
		<-c.block
	}
	return c.err
}

func fastConfig() *Config {
	return &Config{Interval: time.Millisecond}
}

func TestTrigger_TicksWhileRunning(t *testing.T) {
	t.Parallel()

	ticker := &countingTicker{}
	trig := NewTrigger(ticker, fastConfig())
	assert.Equal(t, TriggerStopped, trig.State())

	require.NoError(t, trig.Start(context.Background()))
	assert.Equal(t, TriggerRunning, trig.State())

	assert.Eventually(t, func() bool { return ticker.ticks.Load() >= 5 },
		time.Second, time.Millisecond)

	require.NoError(t, trig.Stop(context.Background()))
	assert.Equal(t, TriggerStopped, trig.State())

	stopped := ticker.ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, ticker.ticks.Load(), "no ticks after Stop returns")

	m := trig.GetMetrics()
	assert.Equal(t, stopped, m.Ticks)
	assert.Zero(t, m.TickErrors)
	assert.GreaterOrEqual(t, m.MaxTickLatency, m.LastTickLatency)
}

func TestTrigger_StartIsIdempotent(t *testing.T) {
	t.Parallel()

	ticker := &countingTicker{}
	trig := NewTrigger(ticker, fastConfig())

	require.NoError(t, trig.Start(context.Background()))
	require.NoError(t, trig.Start(context.Background()))
	require.NoError(t, trig.Stop(context.Background()))
	require.NoError(t, trig.Stop(context.Background()))
	assert.Equal(t, TriggerStopped, trig.State())
}

func TestTrigger_Restart(t *testing.T) {
	t.Parallel()

	ticker := &countingTicker{}
	trig := NewTrigger(ticker, fastConfig())

	require.NoError(t, trig.Stop(context.Background()), "stop before start is a no-op")

	for range 3 {
		require.NoError(t, trig.Start(context.Background()))
		before := ticker.ticks.Load()
		assert.Eventually(t, func() bool { return ticker.ticks.Load() > before },
			time.Second, time.Millisecond)
		require.NoError(t, trig.Stop(context.Background()))
	}
}

func TestTrigger_ErrorsAreCountedNotFatal(t *testing.T) {
	t.Parallel()

	ticker := &countingTicker{err: errors.New("no transport attached")}
	trig := NewTrigger(ticker, fastConfig())

	require.NoError(t, trig.Start(context.Background()))
	assert.Eventually(t, func() bool { return trig.GetMetrics().TickErrors >= 3 },
		time.Second, time.Millisecond)
	assert.Equal(t, TriggerRunning, trig.State())
	require.NoError(t, trig.Stop(context.Background()))
}

func TestTrigger_StopTimesOutOnStuckTick(t *testing.T) {
	t.Parallel()

	ticker := &countingTicker{block: make(chan struct{})}
	trig := NewTrigger(ticker, fastConfig())
	require.NoError(t, trig.Start(context.Background()))

	assert.Eventually(t, func() bool { return ticker.ticks.Load() >= 1 },
		time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := trig.Stop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, TriggerStopping, trig.State())
	require.ErrorIs(t, trig.Start(context.Background()), ErrTriggerStopping)

	close(ticker.block)
	assert.Eventually(t, func() bool { return trig.State() == TriggerStopped },
		time.Second, time.Millisecond)
}

func TestTrigger_TickerFunc(t *testing.T) {
	t.Parallel()

	var n atomic.Int64
	trig := NewTrigger(TickerFunc(func() error {
		n.Add(1)
		return nil
	}), fastConfig())

	require.NoError(t, trig.Start(context.Background()))
	assert.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, time.Millisecond)
	require.NoError(t, trig.Stop(context.Background()))
}

func TestNewTrigger_InvalidConfigFallsBack(t *testing.T) {
	t.Parallel()

	trig := NewTrigger(&countingTicker{}, &Config{Interval: 0})
	assert.Equal(t, time.Millisecond, trig.Config().Interval)

	trig = NewTrigger(&countingTicker{}, nil)
	assert.Equal(t, DefaultConfig().Interval, trig.Config().Interval)
}

func TestTrigger_ConfigIsCopied(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	trig := NewTrigger(&countingTicker{}, cfg)
	cfg.Interval = time.Hour
	assert.Equal(t, time.Millisecond, trig.Config().Interval)
}
