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
	"errors"
	"fmt"
	"io"
	"runtime"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelsMatchLeafPackages(t *testing.T) {
	t.Parallel()

	_, err := New(WithTxCapacity(-1))
	require.ErrorIs(t, err, ErrInvalidCapacity)

	link, err := New(WithTxCapacity(4))
	require.NoError(t, err)
	_, err = link.Send([]byte("12345"))
	require.ErrorIs(t, err, ErrBufferFull)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "timeout", err: ErrTransportTimeout, want: true},
		{name: "read", err: ErrTransportRead, want: true},
		{name: "write", err: ErrTransportWrite, want: true},
		{name: "busy", err: ErrTransportBusy, want: true},
		{name: "short transfer", err: ErrShortTransfer, want: true},
		{name: "device not found", err: ErrDeviceNotFound, want: true},
		{name: "wrapped timeout", err: fmt.Errorf("exchange: %w", ErrTransportTimeout), want: true},
		{name: "closed", err: ErrTransportClosed, want: false},
		{name: "invalid parameter", err: ErrInvalidParameter, want: false},
		{name: "bad sync", err: ErrBadSync, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{
			name: "transient transport error",
			err:  NewTransportError("exchange", "/dev/spidev2.1", errors.New("x"), ErrorTypeTransient),
			want: true,
		},
		{
			name: "permanent transport error",
			err:  NewTransportError("exchange", "/dev/spidev2.1", ErrTransportTimeout, ErrorTypePermanent),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "closed", err: ErrTransportClosed, want: true},
		{name: "eof", err: io.EOF, want: true},
		{name: "closed pipe", err: fmt.Errorf("write: %w", io.ErrClosedPipe), want: true},
		{name: "timeout", err: ErrTransportTimeout, want: false},
		{name: "EIO", err: syscall.EIO, want: true},
		{name: "ENODEV", err: fmt.Errorf("tx: %w", syscall.ENODEV), want: true},
		{name: "ENXIO", err: syscall.ENXIO, want: true},
		{name: "EAGAIN", err: syscall.EAGAIN, want: false},
		{name: "permanent", err: NewTransportClosedError("exchange", "ttyUSB0"), want: true},
		{
			name: "transient wrapping device gone",
			err:  NewTransportReadError("exchange", "ttyUSB0", syscall.ENODEV),
			want: true,
		},
		{name: "transient", err: NewTimeoutError("exchange", "ttyUSB0"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestIsFatal_WindowsErrnos(t *testing.T) {
	t.Parallel()

	want := runtime.GOOS == "windows"
	assert.Equal(t, want, IsFatal(winGenFailure))
	assert.Equal(t, want, IsFatal(winNoSuchDevice))
}

func TestTransportError_Error(t *testing.T) {
	t.Parallel()

	withPort := NewTimeoutError("exchange", "/dev/spidev2.1")
	assert.Equal(t, "exchange /dev/spidev2.1: transport timeout", withPort.Error())

	noPort := NewTransportError("close", "", errors.New("busy"), ErrorTypePermanent)
	assert.Equal(t, "close: busy", noPort.Error())
}

func TestTransportConstructors(t *testing.T) {
	t.Parallel()

	cause := errors.New("device says no")

	w := NewTransportWriteError("exchange", "p", cause)
	require.ErrorIs(t, w, ErrTransportWrite)
	require.ErrorIs(t, w, cause)
	assert.True(t, w.Retryable)
	assert.Equal(t, ErrorTypeTransient, w.Type)

	r := NewTransportReadError("exchange", "p", cause)
	require.ErrorIs(t, r, ErrTransportRead)
	require.ErrorIs(t, r, cause)

	s := NewShortTransferError("exchange", "p", 100, 1546)
	require.ErrorIs(t, s, ErrShortTransfer)
	assert.Contains(t, s.Error(), "100 of 1546 bytes")

	c := NewTransportClosedError("exchange", "p")
	assert.False(t, c.Retryable)
	assert.Equal(t, ErrorTypePermanent, c.Type)

	to := NewTimeoutError("exchange", "p")
	assert.True(t, to.Retryable)
	assert.Equal(t, ErrorTypeTimeout, to.Type)
}

func TestErrorType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "transient", ErrorTypeTransient.String())
	assert.Equal(t, "permanent", ErrorTypePermanent.String())
	assert.Equal(t, "timeout", ErrorTypeTimeout.String())
	assert.Equal(t, "ErrorType(9)", ErrorType(9).String())
}

func TestTransportError_As(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("tick: %w", NewTimeoutError("exchange", "ttyACM0"))

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "ttyACM0", te.Port)
	assert.Equal(t, "exchange", te.Op)
}
