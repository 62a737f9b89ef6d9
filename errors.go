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

	"github.com/ZaparooProject/go-spilink/internal/frame"
	"github.com/ZaparooProject/go-spilink/internal/ring"
)

// Buffer and frame errors. These are absorbed by the engine (counted and
// logged) except where a client call returns them directly.
var (
	ErrInvalidCapacity = ring.ErrInvalidCapacity
	ErrBufferFull      = ring.ErrBufferFull

	ErrBadSync    = frame.ErrBadSync
	ErrBadLength  = frame.ErrBadLength
	ErrShortFrame = frame.ErrShortBuffer
	ErrOverflow   = frame.ErrOverflow
)

// Engine and transport errors
var (
	ErrNoDevice          = errors.New("no transport attached")
	ErrSubmitFailed      = errors.New("exchange submission failed")
	ErrTransferFailed    = errors.New("frame exchange failed")
	ErrTransportBusy     = errors.New("transport busy")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrTransportAttached = errors.New("transport already attached")
	ErrTransportTimeout  = errors.New("transport timeout")
	ErrTransportWrite    = errors.New("transport write failed")
	ErrTransportRead     = errors.New("transport read failed")
	ErrShortTransfer     = errors.New("short frame transfer")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrInvalidParameter  = errors.New("invalid parameter")
)

// ErrorType classifies a transport failure for retry and detach decisions.
type ErrorType int

const (
	// ErrorTypeTransient failures may clear on the next tick.
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent failures mean the transport is unusable.
	ErrorTypePermanent
	// ErrorTypeTimeout marks an exchange that never completed.
	ErrorTypeTimeout
)

// String returns the error type name.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// TransportError is a classified failure of one transport operation.
type TransportError struct {
	Err  error
	Op   string // "exchange", "open", "close"
	Port string // spidev path or serial port, may be empty
	Type ErrorType

	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Port == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Port + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an exchange or reattach that failed with err
// may succeed if attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrTransportBusy),
		errors.Is(err, ErrShortTransfer),
		errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, ErrTransferFailed):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the device or connection is
// gone and the transport should be detached. This is distinct from
// IsRetryable which concerns a single exchange.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		if te.Type == ErrorTypePermanent {
			return true
		}
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// Errno values a USB serial bridge reports on Windows after it is
// unplugged. syscall only names them on windows builds.
const (
	winAccessDenied syscall.Errno = 5
	winGenFailure   syscall.Errno = 31
	winNoSuchDevice syscall.Errno = 433
)

// isDeviceGoneError checks for OS-level errors raised when a spidev node or
// USB serial adapter disappears mid-transfer.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	gone := []syscall.Errno{syscall.EIO, syscall.ENXIO, syscall.ENODEV}
	if runtime.GOOS == "windows" {
		gone = append(gone, winAccessDenied, winGenFailure, winNoSuchDevice)
	}
	for _, e := range gone {
		if errno == e {
			return true
		}
	}
	return false
}

// Constructors

// NewTransportError classifies err. Transient and timeout errors are retryable.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError reports an exchange that got no reply in time.
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewTransportWriteError wraps a failed bus write as ErrTransportWrite.
func NewTransportWriteError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportWrite, cause), ErrorTypeTransient)
}

// NewTransportReadError wraps a failed bus read as ErrTransportRead.
func NewTransportReadError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportRead, cause), ErrorTypeTransient)
}

// NewShortTransferError reports a transfer that moved fewer than a full
// frame's bytes.
func NewShortTransferError(op, port string, got, want int) *TransportError {
	return NewTransportError(op, port,
		fmt.Errorf("%w: %d of %d bytes", ErrShortTransfer, got, want), ErrorTypeTransient)
}

// NewTransportClosedError is returned by Exchange after Close.
func NewTransportClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}
