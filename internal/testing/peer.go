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

// Package testing provides simulated peers and fault injection for link
// tests. Nothing here touches hardware.
package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/ZaparooProject/go-spilink"
	"github.com/ZaparooProject/go-spilink/internal/frame"
	"github.com/ZaparooProject/go-spilink/internal/ring"
	"github.com/ZaparooProject/go-spilink/internal/syncutil"
	"github.com/ZaparooProject/go-spilink/internal/xfer"
)

// DefaultPeerOutbox is the size of the peer's outbound queue.
const DefaultPeerOutbox = 64 * 1024

// VirtualPeer plays the device end of the bus. Each exchange it answers with
// a frame built from its outbox and, if the host frame is valid, collects
// the host's payload. In echo mode collected payload is queued straight back
// to the host, so it comes back one exchange later.
type VirtualPeer struct {
	outbox   *ring.Buffer
	corrupt  func(wire []byte)
	received []byte
	out      frame.Frame
	in       frame.Frame

	exchanges int64
	rejected  int64
	echoDrops int64

	status frame.Status
	mu     syncutil.Mutex
	echo   bool
}

// NewVirtualPeer returns a peer that advertises RX_ABLE and has nothing to
// send.
func NewVirtualPeer() *VirtualPeer {
	outbox, err := ring.New(DefaultPeerOutbox)
	if err != nil {
		panic(err)
	}
	return &VirtualPeer{
		outbox: outbox,
		status: frame.StatusRxAble,
	}
}

// Exchange answers one host frame. host and reply are both frame-sized; the
// reply is built before host is looked at, as on a real full-duplex bus.
func (p *VirtualPeer) Exchange(host, reply []byte) error {
	if len(host) < frame.Size || len(reply) < frame.Size {
		return fmt.Errorf("%w: exchange needs %d byte buffers", spilink.ErrShortFrame, frame.Size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	frame.Build(&p.out, p.outbox, p.status)
	_ = p.out.Encode(reply)
	if p.corrupt != nil {
		p.corrupt(reply[:frame.Size])
	}

	atomic.AddInt64(&p.exchanges, 1)
	_ = p.in.Decode(host)
	if err := p.in.Validate(); err != nil {
		atomic.AddInt64(&p.rejected, 1)
		return nil
	}

	payload := p.in.Payload()
	p.received = append(p.received, payload...)
	if p.echo && len(payload) > 0 && p.outbox.Write(payload) == 0 {
		atomic.AddInt64(&p.echoDrops, 1)
	}
	return nil
}

// Queue adds data for the peer to send. It is all-or-nothing and reports
// whether data fit.
func (p *VirtualPeer) Queue(data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.Write(data) == len(data)
}

// Pending returns the number of bytes the peer has yet to send.
func (p *VirtualPeer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.Len()
}

// Received returns a copy of all payload collected from the host.
func (p *VirtualPeer) Received() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.received)
}

// TakeReceived returns and forgets collected payload.
func (p *VirtualPeer) TakeReceived() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.received
	p.received = nil
	return out
}

// SetEcho turns loopback of host payload on or off.
func (p *VirtualPeer) SetEcho(echo bool) {
	p.mu.Lock()
	p.echo = echo
	p.mu.Unlock()
}

// SetStatus sets the status the peer advertises.
func (p *VirtualPeer) SetStatus(status spilink.FrameStatus) {
	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
}

// SetCorruption installs fn to mangle each reply after it is encoded. nil
// restores clean replies.
func (p *VirtualPeer) SetCorruption(fn func(wire []byte)) {
	p.mu.Lock()
	p.corrupt = fn
	p.mu.Unlock()
}

// Exchanges returns the number of host frames seen.
func (p *VirtualPeer) Exchanges() int64 {
	return atomic.LoadInt64(&p.exchanges)
}

// Rejected returns the number of host frames that failed validation.
func (p *VirtualPeer) Rejected() int64 {
	return atomic.LoadInt64(&p.rejected)
}

// EchoDrops returns the number of echoed payloads lost to a full outbox.
func (p *VirtualPeer) EchoDrops() int64 {
	return atomic.LoadInt64(&p.echoDrops)
}

// CorruptSync overwrites the sync marker.
func CorruptSync(wire []byte) {
	wire[0] ^= 0xFF
}

// CorruptLength sets a length beyond the payload area.
func CorruptLength(wire []byte) {
	wire[4] = 0xFF
	wire[5] = 0xFF
}

// PeerTransport connects a VirtualPeer to a link as a spilink.Transport.
// Completions arrive on a worker goroutine, like the hardware transports.
type PeerTransport struct {
	peer      *VirtualPeer
	queue     *xfer.Queue
	connected atomic.Bool
}

// Transport returns a new transport bound to p.
func (p *VirtualPeer) Transport() *PeerTransport {
	t := &PeerTransport{peer: p}
	t.connected.Store(true)
	t.queue = xfer.New("virtual", p.Exchange)
	return t
}

// Exchange implements spilink.Transport.
func (t *PeerTransport) Exchange(tx, rx []byte, done func(error)) error {
	if !t.connected.Load() {
		return spilink.NewTransportClosedError("exchange", "virtual")
	}
	return t.queue.Submit(tx, rx, done)
}

// Close implements spilink.Transport.
func (t *PeerTransport) Close() error {
	if t.connected.CompareAndSwap(true, false) {
		t.queue.Close()
	}
	return nil
}

// IsConnected implements spilink.Transport.
func (t *PeerTransport) IsConnected() bool {
	return t.connected.Load()
}

// Type implements spilink.Transport.
func (*PeerTransport) Type() spilink.TransportType {
	return spilink.TransportVirtual
}

func (*PeerTransport) String() string {
	return "virtual"
}

// Stream presents a VirtualPeer as a byte stream, the way a serial bridge
// would carry frames. Writing a whole host frame makes one reply frame
// readable. Read returns 0, nil when nothing is available, matching a
// serial port read timeout.
type Stream struct {
	peer    *VirtualPeer
	partial []byte
	replies bytes.Buffer
	mu      syncutil.Mutex
}

// Stream returns a new byte-stream view of p.
func (p *VirtualPeer) Stream() *Stream {
	return &Stream{peer: p}
}

// Write implements io.Writer.
func (s *Stream) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partial = append(s.partial, data...)
	for len(s.partial) >= frame.Size {
		reply := make([]byte, frame.Size)
		if err := s.peer.Exchange(s.partial[:frame.Size], reply); err != nil {
			return 0, err
		}
		s.replies.Write(reply)
		s.partial = s.partial[frame.Size:]
	}
	return len(data), nil
}

// Read implements io.Reader.
func (s *Stream) Read(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replies.Len() == 0 {
		return 0, nil
	}
	return s.replies.Read(buf) //nolint:wrapcheck // bytes.Buffer only fails at EOF, excluded above
}

// Discard drops unread replies and any partial host frame.
func (s *Stream) Discard() {
	s.mu.Lock()
	s.partial = nil
	s.replies.Reset()
	s.mu.Unlock()
}

// Buffered returns the number of reply bytes waiting to be read.
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replies.Len()
}

var _ spilink.Transport = (*PeerTransport)(nil)
