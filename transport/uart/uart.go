// go-spilink
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-spilink.
//
// go-spilink is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-spilink is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-spilink; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package uart carries link frames over a serial port. A UART is not a
// clocked bus, so an exchange writes the host frame in full and then reads
// exactly one frame back from the peer.
package uart

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-spilink"
	"github.com/ZaparooProject/go-spilink/internal/xfer"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is fast enough for a frame each way in about 35ms.
	DefaultBaudRate = 921600

	// readPoll bounds each blocking read so the frame deadline is honoured.
	readPoll = 20 * time.Millisecond
)

// Option configures New.
type Option func(*config)

type config struct {
	baud         int
	frameTimeout time.Duration
}

// WithBaudRate sets the line rate.
func WithBaudRate(baud int) Option {
	return func(c *config) {
		if baud > 0 {
			c.baud = baud
		}
	}
}

// WithFrameTimeout bounds how long an exchange waits for the reply frame.
func WithFrameTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.frameTimeout = d
		}
	}
}

// Transport implements spilink.Transport over a serial port.
type Transport struct {
	port         serial.Port
	queue        *xfer.Queue
	portName     string
	frameTimeout time.Duration
	connected    atomic.Bool
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == "windows"
}

// defaultFrameTimeout allows for USB serial drivers on Windows, which
// deliver bytes in larger, later batches.
func defaultFrameTimeout() time.Duration {
	if isWindows() {
		return 250 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// New opens portName at 8N1.
func New(portName string, opts ...Option) (*Transport, error) {
	cfg := config{baud: DefaultBaudRate, frameTimeout: defaultFrameTimeout()}
	for _, opt := range opts {
		opt(&cfg)
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: cfg.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(readPoll); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}

	spilink.Debugf("uart: opened %s at %d baud", portName, cfg.baud)
	return newTransport(port, portName, cfg.frameTimeout), nil
}

func newTransport(port serial.Port, portName string, frameTimeout time.Duration) *Transport {
	t := &Transport{
		port:         port,
		portName:     portName,
		frameTimeout: frameTimeout,
	}
	t.connected.Store(true)
	t.queue = xfer.New(portName, t.transfer)
	return t
}

// Exchange queues one frame exchange.
func (t *Transport) Exchange(tx, rx []byte, done func(error)) error {
	if len(rx) < len(tx) {
		return fmt.Errorf("%w: rx is %d bytes, tx %d", spilink.ErrInvalidParameter, len(rx), len(tx))
	}
	if !t.connected.Load() {
		return spilink.NewTransportClosedError("exchange", t.portName)
	}
	return t.queue.Submit(tx, rx, done)
}

// transfer runs on the queue goroutine.
func (t *Transport) transfer(tx, rx []byte) error {
	// Bytes left over from an exchange that timed out would shift every
	// later frame.
	if err := t.port.ResetInputBuffer(); err != nil {
		return t.classify(spilink.NewTransportReadError("reset input", t.portName, err), err)
	}

	if err := t.writeFrame(tx); err != nil {
		return err
	}
	return t.readFrame(rx[:len(tx)])
}

func (t *Transport) writeFrame(tx []byte) error {
	for off := 0; off < len(tx); {
		n, err := t.port.Write(tx[off:])
		if err != nil {
			return t.classify(spilink.NewTransportWriteError("write frame", t.portName, err), err)
		}
		if n == 0 {
			return spilink.NewShortTransferError("write frame", t.portName, off, len(tx))
		}
		off += n
	}
	return t.drainWithRetry()
}

// readFrame fills rx or fails once frameTimeout passes. Zero-byte reads are
// read timeouts.
func (t *Transport) readFrame(rx []byte) error {
	deadline := time.Now().Add(t.frameTimeout)
	got := 0
	for got < len(rx) {
		if !t.connected.Load() {
			return spilink.NewTransportClosedError("read frame", t.portName)
		}
		n, err := t.port.Read(rx[got:])
		if err != nil && !isInterruptedSystemCall(err) {
			return t.classify(spilink.NewTransportReadError("read frame", t.portName, err), err)
		}
		got += n
		if got < len(rx) && n == 0 && time.Now().After(deadline) {
			if got == 0 {
				return spilink.NewTimeoutError("read frame", t.portName)
			}
			return spilink.NewShortTransferError("read frame", t.portName, got, len(rx))
		}
	}
	return nil
}

// classify upgrades wrapped to a permanent error when cause means the port
// is gone.
func (t *Transport) classify(wrapped *spilink.TransportError, cause error) error {
	if !t.connected.Load() || spilink.IsFatal(cause) {
		wrapped.Type = spilink.ErrorTypePermanent
		wrapped.Retryable = false
	}
	return wrapped
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry waits for the written frame to leave the port, retrying
// when a signal interrupts the wait.
func (t *Transport) drainWithRetry() error {
	const maxRetries = 3
	delay := 2 * time.Millisecond

	var err error
	for attempt := range maxRetries {
		if err = t.port.Drain(); err == nil {
			return nil
		}
		if !isInterruptedSystemCall(err) {
			break
		}
		if attempt < maxRetries-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return t.classify(spilink.NewTransportWriteError("drain", t.portName, err), err)
}

// Close waits for a running exchange and closes the port.
func (t *Transport) Close() error {
	if !t.connected.CompareAndSwap(true, false) {
		return nil
	}
	t.queue.Close()
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close UART port %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected returns true until Close is called.
func (t *Transport) IsConnected() bool {
	return t.connected.Load()
}

// Type returns the transport type
func (*Transport) Type() spilink.TransportType {
	return spilink.TransportUART
}

func (t *Transport) String() string {
	return t.portName
}

var _ spilink.Transport = (*Transport)(nil)
