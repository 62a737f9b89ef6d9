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
	"fmt"
	"io"

	"github.com/ZaparooProject/go-spilink/polling"
)

// Status is what a client can learn about the link without blocking.
type Status struct {
	// RxBytesAvailable is the number of bytes Receive would return now.
	RxBytesAvailable int
	// TxBytesQueued is the number of bytes waiting to be framed.
	TxBytesQueued int
	// TxBytesFree is the largest Send that would currently succeed.
	TxBytesFree int
	// PeerClearToSend is the status advertised by the peer's last valid frame.
	PeerClearToSend bool
}

// Link is the client-facing side of the packetized byte stream: two ring
// buffers, the engine that moves them across the bus, and the trigger that
// paces it.
type Link struct {
	engine  *Engine
	tx      *lockedBuffer
	rx      *lockedBuffer
	trigger *polling.Trigger
}

// New creates a link. It is closed until Open is called.
func New(opts ...Option) (*Link, error) {
	cfg := defaultLinkConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply link option: %w", err)
		}
	}

	tx, err := newLockedBuffer(cfg.txCapacity)
	if err != nil {
		return nil, fmt.Errorf("tx buffer: %w", err)
	}
	rx, err := newLockedBuffer(cfg.rxCapacity)
	if err != nil {
		return nil, fmt.Errorf("rx buffer: %w", err)
	}

	engine := newEngine(tx, rx, cfg)
	if cfg.transport != nil {
		if err := engine.Attach(cfg.transport); err != nil {
			return nil, err
		}
	}

	triggerCfg := polling.DefaultConfig()
	triggerCfg.Interval = cfg.interval
	triggerCfg.StallThreshold = cfg.stallThreshold
	triggerCfg.Logf = Debugf

	return &Link{
		engine:  engine,
		tx:      tx,
		rx:      rx,
		trigger: polling.NewTrigger(engine, triggerCfg),
	}, nil
}

// Send queues p for transmission. It is all-or-nothing: when p does not fit
// in the free space of the tx buffer nothing is queued and ErrBufferFull is
// returned.
func (l *Link) Send(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if n := l.tx.Write(p); n == len(p) {
		return n, nil
	}
	return 0, fmt.Errorf("%w: %d bytes requested", ErrBufferFull, len(p))
}

// SendFrom queues exactly n bytes read from r. If r fails or runs short the
// tx buffer is left as it was.
func (l *Link) SendFrom(r io.Reader, n int) (int, error) {
	return l.tx.Fill(r, n)
}

// Receive returns up to limit bytes of received payload, oldest first. The
// result is empty when nothing is buffered.
func (l *Link) Receive(limit int) []byte {
	n := min(limit, l.rx.Len())
	if n <= 0 {
		return []byte{}
	}
	buf := make([]byte, n)
	return buf[:l.rx.Read(buf)]
}

// ReceiveTo writes up to limit bytes of received payload to w. Bytes are
// consumed only if w accepts all of them.
func (l *Link) ReceiveTo(w io.Writer, limit int) (int, error) {
	return l.rx.Drain(w, limit)
}

// GetStatus reports buffer occupancy and the peer's advertised readiness.
func (l *Link) GetStatus() Status {
	return Status{
		RxBytesAvailable: l.rx.Len(),
		TxBytesQueued:    l.tx.Len(),
		TxBytesFree:      l.tx.Free(),
		PeerClearToSend:  l.engine.PeerClearToSend(),
	}
}

// Open resets both buffers and the frame state once no exchange is in
// flight, then starts the periodic trigger if it is not already running.
func (l *Link) Open(ctx context.Context) error {
	if err := l.engine.reset(ctx); err != nil {
		return fmt.Errorf("open link: %w", err)
	}
	if err := l.trigger.Start(ctx); err != nil {
		return fmt.Errorf("open link: %w", err)
	}
	Debugf("link opened (%s)", l.trigger.Config())
	return nil
}

// Close stops the trigger and waits, bounded by ctx, for an in-flight
// exchange to finish. Buffered data is kept; the transport stays attached.
func (l *Link) Close(ctx context.Context) error {
	if err := l.trigger.Stop(ctx); err != nil {
		return fmt.Errorf("close link: %w", err)
	}
	if err := l.engine.WaitIdle(ctx); err != nil {
		return fmt.Errorf("close link: %w", err)
	}
	Debugf("link closed: %s", l.engine.Metrics())
	return nil
}

// Attach installs the transport exchanges run over.
func (l *Link) Attach(t Transport) error {
	return l.engine.Attach(t)
}

// Detach removes the transport and returns it unclosed; see Engine.Detach.
func (l *Link) Detach() Transport {
	return l.engine.Detach()
}

// Metrics returns engine counters.
func (l *Link) Metrics() Metrics {
	return l.engine.Metrics()
}

// TriggerMetrics returns pacing counters.
func (l *Link) TriggerMetrics() polling.TriggerMetrics {
	return l.trigger.GetMetrics()
}

// Health reports sustained failure conditions.
func (l *Link) Health() Health {
	return l.engine.Health()
}

// Engine exposes the transaction engine, e.g. to drive Tick manually.
func (l *Link) Engine() *Engine {
	return l.engine
}

// Running reports whether the trigger is running.
func (l *Link) Running() bool {
	return l.trigger.State() == polling.TriggerRunning
}

// BufferStates returns ring diagnostics for the tx and rx buffers.
func (l *Link) BufferStates() (tx, rx BufferState) {
	return l.tx.State(), l.rx.State()
}

// Shutdown closes the link, then detaches and closes its transport.
func (l *Link) Shutdown(ctx context.Context) error {
	closeErr := l.Close(ctx)
	if t := l.Detach(); t != nil {
		if err := t.Close(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("close transport: %w", err)
		}
	}
	return closeErr
}
