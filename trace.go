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
	"strings"
	"time"

	"github.com/ZaparooProject/go-spilink/internal/frame"
)

// TraceDirection tells which way a traced frame travelled.
type TraceDirection string

const (
	TraceTX TraceDirection = "TX"
	TraceRX TraceDirection = "RX"
)

// TraceEntry is one frame header seen on the bus. Only the header is kept;
// payload never enters the trace.
type TraceEntry struct {
	At        time.Time
	Failure   string // set when the exchange produced no inbound frame
	Direction TraceDirection
	Raw       []byte // header bytes as they were on the wire
	Header    frame.Header
	Exchange  uint64
}

func (e TraceEntry) String() string {
	return fmt.Sprintf("%s %s", e.At.Format("15:04:05.000"), e.line())
}

func (e TraceEntry) line() string {
	arrow := ">"
	if e.Direction == TraceRX {
		arrow = "<"
	}
	if e.Failure != "" {
		return fmt.Sprintf("%s #%d failed: %s", arrow, e.Exchange, e.Failure)
	}
	return fmt.Sprintf("%s #%d %s [% X]", arrow, e.Exchange, e.Header, e.Raw)
}

// TraceableError carries the frame headers exchanged just before an inbound
// frame was dropped. Retrieve it with errors.As or GetTrace:
//
//	if te := spilink.GetTrace(err); te != nil {
//		log.Print(te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

func (e *TraceableError) Error() string {
	return e.Err.Error()
}

func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace renders the trace one header per line, oldest first.
func (e *TraceableError) FormatTrace() string {
	source := e.Transport
	if e.Port != "" {
		source += " " + e.Port
	}
	if len(e.Trace) == 0 {
		return fmt.Sprintf("%s: no frames traced", source)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "%s: last %d frame headers\n", source, len(e.Trace))
	for _, entry := range e.Trace {
		sb.WriteString("  ")
		sb.WriteString(entry.line())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// TraceBuffer is a fixed window over the most recent frame headers. It is
// not safe for concurrent use; the engine records under its own lock.
type TraceBuffer struct {
	transport string
	port      string
	entries   []TraceEntry
	next      int
	count     int
}

// NewTraceBuffer returns a window of depth entries (16 if depth < 1).
func NewTraceBuffer(transport, port string, depth int) *TraceBuffer {
	if depth < 1 {
		depth = defaultTraceDepth
	}
	return &TraceBuffer{
		transport: transport,
		port:      port,
		entries:   make([]TraceEntry, depth),
	}
}

// SetSource relabels the buffer after a transport is attached.
func (tb *TraceBuffer) SetSource(transport, port string) {
	tb.transport = transport
	tb.port = port
}

// RecordTX traces the header of an outbound wire frame.
func (tb *TraceBuffer) RecordTX(exchange uint64, wire []byte) {
	tb.record(TraceTX, exchange, wire, "")
}

// RecordRX traces the header of an inbound wire frame.
func (tb *TraceBuffer) RecordRX(exchange uint64, wire []byte) {
	tb.record(TraceRX, exchange, wire, "")
}

// RecordFailure notes an exchange that completed with err instead of a frame.
func (tb *TraceBuffer) RecordFailure(exchange uint64, err error) {
	tb.record(TraceRX, exchange, nil, err.Error())
}

func (tb *TraceBuffer) record(dir TraceDirection, exchange uint64, wire []byte, failure string) {
	entry := TraceEntry{
		At:        time.Now(),
		Direction: dir,
		Exchange:  exchange,
		Failure:   failure,
	}
	if failure == "" {
		n := min(len(wire), frame.HeaderSize)
		entry.Raw = append([]byte(nil), wire[:n]...)
		entry.Header, _ = frame.PeekHeader(wire) // zero header for a short slice
	}

	tb.entries[tb.next] = entry
	tb.next = (tb.next + 1) % len(tb.entries)
	if tb.count < len(tb.entries) {
		tb.count++
	}
}

// Len returns the number of entries held.
func (tb *TraceBuffer) Len() int {
	return tb.count
}

// Entries returns the held entries, oldest first.
func (tb *TraceBuffer) Entries() []TraceEntry {
	out := make([]TraceEntry, 0, tb.count)
	start := (tb.next - tb.count + len(tb.entries)) % len(tb.entries)
	for i := range tb.count {
		out = append(out, tb.entries[(start+i)%len(tb.entries)])
	}
	return out
}

// WrapError attaches a snapshot of the window to err. A nil err stays nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:       err,
		Transport: tb.transport,
		Port:      tb.port,
		Trace:     tb.Entries(),
	}
}

// Clear empties the window.
func (tb *TraceBuffer) Clear() {
	clear(tb.entries)
	tb.next = 0
	tb.count = 0
}

// HasTrace reports whether err carries a frame trace.
func HasTrace(err error) bool {
	return GetTrace(err) != nil
}

// GetTrace returns the trace carried by err, or nil.
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
