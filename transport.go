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

	"github.com/ZaparooProject/go-spilink/internal/syncutil"
)

// Transport clocks one frame out and one frame in per exchange. The bus is
// full-duplex: tx and rx are both FrameSize bytes and move simultaneously.
//
// Exchange either rejects the submission by returning an error, in which
// case done is never called, or accepts it and calls done exactly once,
// possibly on another goroutine, after rx has been filled. The caller keeps
// tx and rx untouched until done runs.
type Transport interface {
	// Exchange submits a full-duplex frame transfer.
	Exchange(tx, rx []byte, done func(error)) error

	// Close releases the bus. Exchange fails afterwards.
	Close() error

	// IsConnected reports whether Close has not been called and the device
	// has not gone away.
	IsConnected() bool

	// Type names the bus.
	Type() TransportType
}

// TransportType names the kind of bus a transport drives.
type TransportType string

const (
	// TransportSPI represents a spidev full-duplex bus
	TransportSPI TransportType = "spi"
	// TransportUART represents a serial link carrying whole frames
	TransportUART TransportType = "uart"
	// TransportVirtual represents an in-process simulated peer
	TransportVirtual TransportType = "virtual"
	// TransportMock is MockTransport.
	TransportMock TransportType = "mock"
)

// transportPort returns a printable port name for t, if it has one.
func transportPort(t Transport) string {
	if s, ok := t.(fmt.Stringer); ok {
		return s.String()
	}
	return ""
}

type mockExchange struct {
	rx   []byte
	done func(error)
}

// MockTransport implements Transport for unit tests. By default every
// exchange completes immediately with the configured response frame; with
// SetManual(true) exchanges are held until CompleteNext is called.
type MockTransport struct {
	submitErr   error
	transferErr error
	response    []byte
	sent        [][]byte
	pending     []mockExchange
	delay       time.Duration
	calls       int
	mu          syncutil.Mutex
	connected   bool
	manual      bool
}

// NewMockTransport creates a connected mock that answers with an empty,
// valid frame.
func NewMockTransport() *MockTransport {
	empty, _ := EncodeFrame(nil, StatusRxAble)
	return &MockTransport{
		connected: true,
		response:  empty,
	}
}

// Exchange records tx and either completes or queues the exchange.
func (m *MockTransport) Exchange(tx, rx []byte, done func(error)) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return NewTransportClosedError("exchange", "mock")
	}
	m.calls++
	if m.submitErr != nil {
		err := m.submitErr
		m.mu.Unlock()
		return err
	}
	m.sent = append(m.sent, append([]byte(nil), tx...))

	if m.manual {
		m.pending = append(m.pending, mockExchange{rx: rx, done: done})
		m.mu.Unlock()
		return nil
	}

	response := m.response
	transferErr := m.transferErr
	delay := m.delay
	m.mu.Unlock()

	if delay <= 0 {
		copy(rx, response)
		done(transferErr)
		return nil
	}

	go func() {
		time.Sleep(delay)
		copy(rx, response)
		done(transferErr)
	}()
	return nil
}

// CompleteNext fills the oldest held exchange with response and completes it
// with err. It reports false when nothing is pending.
func (m *MockTransport) CompleteNext(response []byte, err error) bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	next := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()

	copy(next.rx, response)
	next.done(err)
	return true
}

// Pending returns the number of held exchanges.
func (m *MockTransport) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Close marks the transport disconnected.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// IsConnected returns true if the transport is connected
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Type returns the transport type
func (*MockTransport) Type() TransportType {
	return TransportMock
}

func (*MockTransport) String() string {
	return "mock"
}

// SetResponse sets the raw bytes copied into rx on completion.
func (m *MockTransport) SetResponse(response []byte) {
	m.mu.Lock()
	m.response = append([]byte(nil), response...)
	m.mu.Unlock()
}

// SetSubmitError makes Exchange reject submissions with err; nil clears it.
func (m *MockTransport) SetSubmitError(err error) {
	m.mu.Lock()
	m.submitErr = err
	m.mu.Unlock()
}

// SetTransferError makes accepted exchanges complete with err.
func (m *MockTransport) SetTransferError(err error) {
	m.mu.Lock()
	m.transferErr = err
	m.mu.Unlock()
}

// SetDelay completes exchanges asynchronously after delay.
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// SetManual holds exchanges until CompleteNext.
func (m *MockTransport) SetManual(manual bool) {
	m.mu.Lock()
	m.manual = manual
	m.mu.Unlock()
}

// CallCount returns the number of Exchange calls made while connected.
func (m *MockTransport) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Sent returns copies of every accepted outbound frame.
func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// Reset clears counters and history and reconnects the mock.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.calls = 0
	m.sent = nil
	m.pending = nil
	m.connected = true
	m.mu.Unlock()
}
