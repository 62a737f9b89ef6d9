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
	"testing"

	"github.com/ZaparooProject/go-spilink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlakyTransport_PassThrough(t *testing.T) {
	t.Parallel()

	mock := spilink.NewMockTransport()
	f := NewFlakyTransport(mock, FaultConfig{Seed: 1})

	var got error
	called := false
	require.NoError(t, f.Exchange(make([]byte, spilink.FrameSize), make([]byte, spilink.FrameSize),
		func(err error) { called, got = true, err }))

	assert.True(t, called)
	require.NoError(t, got)
	assert.Equal(t, FaultCounts{}, f.Counts())
	assert.Equal(t, spilink.TransportMock, f.Type())
	assert.True(t, f.IsConnected())
}

func TestFlakyTransport_AlwaysRejects(t *testing.T) {
	t.Parallel()

	mock := spilink.NewMockTransport()
	f := NewFlakyTransport(mock, FaultConfig{RejectRate: 1, Seed: 2})

	err := f.Exchange(make([]byte, spilink.FrameSize), make([]byte, spilink.FrameSize),
		func(error) { t.Error("rejected exchange must not complete") })
	require.ErrorIs(t, err, spilink.ErrTransportBusy)
	assert.True(t, spilink.IsRetryable(err))
	assert.Equal(t, int64(1), f.Counts().Rejected)
	assert.Zero(t, mock.CallCount())
}

func TestFlakyTransport_AlwaysFails(t *testing.T) {
	t.Parallel()

	f := NewFlakyTransport(spilink.NewMockTransport(), FaultConfig{FailRate: 1, Seed: 3})

	var got error
	require.NoError(t, f.Exchange(make([]byte, spilink.FrameSize), make([]byte, spilink.FrameSize),
		func(err error) { got = err }))
	require.ErrorIs(t, got, ErrInjected)
	assert.False(t, spilink.IsFatal(got))
	assert.Equal(t, int64(1), f.Counts().Failed)
}

func TestFlakyTransport_Garbage(t *testing.T) {
	t.Parallel()

	f := NewFlakyTransport(spilink.NewMockTransport(), FaultConfig{GarbageRate: 1, Seed: 4})

	rx := make([]byte, spilink.FrameSize)
	require.NoError(t, f.Exchange(make([]byte, spilink.FrameSize), rx, func(error) {}))
	assert.Equal(t, int64(1), f.Counts().Garbage)

	_, _, err := spilink.DecodeFrame(rx)
	assert.Error(t, err)
}

func TestFlakyTransport_Disconnect(t *testing.T) {
	t.Parallel()

	f := NewFlakyTransport(spilink.NewMockTransport(), FaultConfig{DisconnectAt: 2, Seed: 5})
	buf := make([]byte, spilink.FrameSize)

	require.NoError(t, f.Exchange(buf, buf, func(error) {}))
	err := f.Exchange(buf, buf, func(error) {})
	require.ErrorIs(t, err, ErrInjected)
	assert.True(t, spilink.IsFatal(err))
}

func TestFlakyTransport_SeedIsDeterministic(t *testing.T) {
	t.Parallel()

	run := func() FaultCounts {
		f := NewFlakyTransport(spilink.NewMockTransport(), FaultConfig{
			RejectRate: 0.2, FailRate: 0.2, CorruptRate: 0.2, Seed: 42,
		})
		buf := make([]byte, spilink.FrameSize)
		for range 200 {
			_ = f.Exchange(buf, make([]byte, spilink.FrameSize), func(error) {})
		}
		return f.Counts()
	}

	first := run()
	assert.Equal(t, first, run())
	assert.Positive(t, first.Rejected)
	assert.Positive(t, first.Failed)
	assert.Positive(t, first.Corrupted)
}
