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

	"github.com/ZaparooProject/go-spilink/internal/frame"
	"github.com/ZaparooProject/go-spilink/internal/syncutil"
)

// EngineState is the transaction state of the engine.
type EngineState int

const (
	// StateIdle means no exchange is in flight; the next Tick may start one.
	StateIdle EngineState = iota
	// StateExchanging means an exchange was accepted and has not completed.
	StateExchanging
)

func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExchanging:
		return "exchanging"
	default:
		return fmt.Sprintf("EngineState(%d)", int(s))
	}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Engine runs the transaction cycle: on each Tick it drains the tx buffer
// into an outbound frame, hands both wire buffers to the transport and, when
// the exchange completes, validates the inbound frame and moves its payload
// into the rx buffer. At most one exchange is outstanding.
//
// Lock order is engine, then buffer. Client calls on the buffers never take
// the engine lock, and no lock is held across Transport.Exchange.
type Engine struct {
	transport Transport
	tx        *lockedBuffer
	rx        *lockedBuffer
	trace     *TraceBuffer
	idle      chan struct{} // closed while not busy

	out     frame.Frame
	in      frame.Frame
	outWire []byte
	inWire  []byte

	health     healthTracker
	counters   engineCounters
	gen        uint64
	peerStatus FrameStatus
	mu         syncutil.Mutex

	busy               bool
	pendingOut         bool // outWire holds a built frame the transport has not accepted
	advertiseReadiness bool
}

func newEngine(tx, rx *lockedBuffer, cfg *linkConfig) *Engine {
	e := &Engine{
		tx:                 tx,
		rx:                 rx,
		trace:              NewTraceBuffer("", "", cfg.traceDepth),
		idle:               closedChan,
		outWire:            make([]byte, frame.Size),
		inWire:             make([]byte, frame.Size),
		peerStatus:         StatusRxUnable,
		advertiseReadiness: cfg.advertiseReadiness,
		health:             healthTracker{threshold: cfg.healthThreshold},
	}
	return e
}

// Tick starts one exchange if the engine is idle. It returns nil without
// doing anything while an exchange is in flight, ErrNoDevice when no
// transport is attached, and an error wrapping ErrSubmitFailed when the
// transport rejects the submission. A rejected frame is kept and offered
// again on the next Tick.
//
// The engine is marked busy before Exchange is called, since the transport
// may complete synchronously. When the submission is rejected the mark is
// undone before Tick returns; a concurrent Tick in that window is counted
// as skipped.
func (e *Engine) Tick() error {
	atomic.AddInt64(&e.counters.ticks, 1)

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		atomic.AddInt64(&e.counters.ticksSkipped, 1)
		return nil
	}

	t := e.transport
	if t == nil {
		streak := e.health.transportMissing()
		e.mu.Unlock()
		atomic.AddInt64(&e.counters.noDevice, 1)
		if e.health.shouldLog(streak) {
			Debugf("tick: no transport attached (%d consecutive)", streak)
		}
		return ErrNoDevice
	}

	if !e.pendingOut {
		e.buildOutboundLocked()
	}

	e.gen++
	gen := e.gen
	e.busy = true
	e.idle = make(chan struct{})
	out, in := e.outWire, e.inWire
	e.mu.Unlock()

	err := t.Exchange(out, in, func(err error) {
		e.onExchangeComplete(gen, err)
	})
	if err == nil {
		atomic.AddInt64(&e.counters.exchangesStarted, 1)
		return nil
	}

	atomic.AddInt64(&e.counters.submitFailures, 1)

	e.mu.Lock()
	if e.busy && e.gen == gen {
		e.setIdleLocked()
	}
	streak := e.health.transportMissing()
	fatal := IsFatal(err) && e.transport == t
	if fatal {
		e.dropTransportLocked()
	}
	e.mu.Unlock()

	if e.health.shouldLog(streak) {
		Debugf("tick: exchange rejected by %s transport: %v", t.Type(), err)
	}
	if fatal {
		closeDetached(t, err)
	}
	return fmt.Errorf("%w: %w", ErrSubmitFailed, err)
}

// buildOutboundLocked drains up to MaxPayload bytes from tx into the
// outbound wire buffer.
func (e *Engine) buildOutboundLocked() {
	n := frame.Build(&e.out, e.tx, e.outboundStatusLocked())
	_ = e.out.Encode(e.outWire) // outWire is always frame.Size
	e.pendingOut = true

	if n > 0 {
		atomic.AddInt64(&e.counters.framesSent, 1)
		atomic.AddInt64(&e.counters.bytesSent, int64(n))
	}
}

func (e *Engine) outboundStatusLocked() FrameStatus {
	if !e.advertiseReadiness {
		return StatusRxUnable
	}
	if e.rx.Free() >= frame.MaxPayload {
		return StatusRxAble
	}
	return StatusRxUnable
}

// onExchangeComplete runs once per accepted exchange, on whatever goroutine
// the transport chooses.
func (e *Engine) onExchangeComplete(gen uint64, err error) {
	e.mu.Lock()

	if !e.busy || gen != e.gen {
		e.mu.Unlock()
		atomic.AddInt64(&e.counters.staleCompletions, 1)
		Debugf("completion for abandoned exchange %d ignored", gen)
		return
	}

	atomic.AddInt64(&e.counters.exchangesCompleted, 1)
	e.pendingOut = false
	e.health.transportOK()
	e.trace.RecordTX(gen, e.outWire)

	if err != nil {
		atomic.AddInt64(&e.counters.transferErrors, 1)
		e.trace.RecordFailure(gen, err)
		t := e.transport
		fatal := t != nil && IsFatal(err)
		// Idle first: this exchange is finished, not abandoned.
		e.setIdleLocked()
		if fatal {
			e.dropTransportLocked()
		}
		e.mu.Unlock()

		Debugf("exchange %d failed: %v", gen, err)
		if fatal {
			closeDetached(t, err)
		}
		return
	}

	e.trace.RecordRX(gen, e.inWire)
	_ = e.in.Decode(e.inWire) // inWire is always frame.Size
	n, acceptErr := frame.Accept(&e.in, e.rx)
	logErr := e.recordInboundLocked(n, acceptErr)
	e.setIdleLocked()
	e.mu.Unlock()

	if logErr != nil {
		Debugf("%v\n%s", logErr, GetTrace(logErr).FormatTrace())
	}
}

// recordInboundLocked updates counters and health for one inbound frame. It
// returns a traced error when the outcome deserves a log line.
func (e *Engine) recordInboundLocked(n int, err error) error {
	var streak int64

	switch {
	case err == nil:
		e.health.frameValid()
		e.peerStatus = e.in.Status
		if n > 0 {
			e.health.consumed()
			atomic.AddInt64(&e.counters.framesReceived, 1)
			atomic.AddInt64(&e.counters.bytesReceived, int64(n))
		}
		return nil

	case errors.Is(err, frame.ErrOverflow):
		e.health.frameValid()
		e.peerStatus = e.in.Status
		streak = e.health.overflowed()
		atomic.AddInt64(&e.counters.overflows, 1)
		atomic.AddInt64(&e.counters.bytesDropped, int64(e.in.Length))

	case errors.Is(err, frame.ErrBadSync):
		streak = e.health.frameRejected()
		atomic.AddInt64(&e.counters.badSync, 1)

	case errors.Is(err, frame.ErrBadLength):
		streak = e.health.frameRejected()
		atomic.AddInt64(&e.counters.badLength, 1)

	default:
		streak = e.health.frameRejected()
	}

	if !e.health.shouldLog(streak) {
		return nil
	}
	return e.trace.WrapError(fmt.Errorf("inbound frame dropped (%s, %d consecutive): %w",
		e.in.Header(), streak, err))
}

func (e *Engine) setIdleLocked() {
	e.busy = false
	if e.idle != closedChan {
		close(e.idle)
		e.idle = closedChan
	}
}

// dropTransportLocked detaches the current transport, abandoning any
// in-flight exchange.
func (e *Engine) dropTransportLocked() {
	e.transport = nil
	if !e.busy {
		return
	}
	e.gen++
	e.outWire = make([]byte, frame.Size)
	e.inWire = make([]byte, frame.Size)
	e.pendingOut = false
	atomic.AddInt64(&e.counters.abandoned, 1)
	e.setIdleLocked()
}

// closeDetached closes a transport the engine dropped after a fatal error.
// It runs on its own goroutine because the caller may be the transport's
// own completion path.
func closeDetached(t Transport, cause error) {
	Debugf("detaching %s transport after fatal error: %v", t.Type(), cause)
	go func() {
		if err := t.Close(); err != nil {
			Debugf("close detached transport: %v", err)
		}
	}()
}

// Attach installs t as the engine's transport.
func (e *Engine) Attach(t Transport) error {
	if t == nil {
		return fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.transport != nil {
		return ErrTransportAttached
	}
	e.transport = t
	e.health.transportOK()
	e.trace.SetSource(string(t.Type()), transportPort(t))
	return nil
}

// Detach removes and returns the current transport without closing it. An
// exchange still in flight is abandoned: its completion will be ignored and
// it keeps the old wire buffers, so it can never write into buffers a later
// exchange uses. The outbound payload of an abandoned exchange may or may
// not have reached the peer.
func (e *Engine) Detach() Transport {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.transport
	e.dropTransportLocked()
	return t
}

// Transport returns the attached transport, or nil.
func (e *Engine) Transport() Transport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transport
}

// State returns the current transaction state.
func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return StateExchanging
	}
	return StateIdle
}

// WaitIdle blocks until no exchange is in flight or ctx is done.
func (e *Engine) WaitIdle(ctx context.Context) error {
	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for idle engine: %w", ctx.Err())
	}
}

// PeerClearToSend reports whether the last valid inbound frame advertised
// that the peer can accept data.
func (e *Engine) PeerClearToSend() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peerStatus == StatusRxAble
}

// Metrics returns a snapshot of the engine counters.
func (e *Engine) Metrics() Metrics {
	return e.counters.snapshot()
}

// Health reports sustained failure conditions.
func (e *Engine) Health() Health {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health.report()
}

// reset clears both buffers, frame state and streaks once the engine is
// idle. It retries if an exchange starts between waiting and locking.
func (e *Engine) reset(ctx context.Context) error {
	for {
		if err := e.WaitIdle(ctx); err != nil {
			return err
		}

		e.mu.Lock()
		if e.busy {
			e.mu.Unlock()
			continue
		}
		e.tx.Reset()
		e.rx.Reset()
		e.out.Clear()
		e.in.Clear()
		e.pendingOut = false
		e.peerStatus = StatusRxUnable
		e.health.reset()
		e.trace.Clear()
		e.mu.Unlock()
		return nil
	}
}
