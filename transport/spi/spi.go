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

// Package spi provides a spidev transport for the link. Every exchange is a
// single chip-select assertion clocking one frame out and one frame in.
package spi

import (
	"fmt"
	"sync/atomic"

	"github.com/ZaparooProject/go-spilink"
	"github.com/ZaparooProject/go-spilink/internal/xfer"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// DefaultSpeed is the bus clock used unless WithSpeed overrides it.
	DefaultSpeed = 4 * physic.MegaHertz

	defaultMode = spi.Mode0
	wordBits    = 8
)

// Option configures New.
type Option func(*config)

type config struct {
	speed physic.Frequency
	mode  spi.Mode
}

// WithSpeed sets the bus clock.
func WithSpeed(f physic.Frequency) Option {
	return func(c *config) {
		if f > 0 {
			c.speed = f
		}
	}
}

// WithMode sets the clock polarity and phase.
func WithMode(m spi.Mode) Option {
	return func(c *config) {
		c.mode = m
	}
}

// Transport implements spilink.Transport over a periph.io SPI port.
type Transport struct {
	port      spi.PortCloser
	conn      spi.Conn
	queue     *xfer.Queue
	portName  string
	maxTx     int // driver limit per transfer; 0 means unlimited
	connected atomic.Bool
}

// New opens portName (for example "/dev/spidev2.1" or "SPI2.1") as a
// full-duplex master.
func New(portName string, opts ...Option) (*Transport, error) {
	cfg := config{speed: DefaultSpeed, mode: defaultMode}
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	c, err := port.Connect(cfg.speed, cfg.mode, wordBits)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI %s at %s: %w", portName, cfg.speed, err)
	}

	spilink.Debugf("spi: opened %s at %s mode %d", portName, cfg.speed, cfg.mode)
	return newTransport(port, c, portName), nil
}

func newTransport(port spi.PortCloser, c spi.Conn, portName string) *Transport {
	t := &Transport{
		port:     port,
		conn:     c,
		portName: portName,
		maxTx:    maxTxSize(c),
	}
	t.connected.Store(true)
	t.queue = xfer.New(portName, t.transfer)
	return t
}

// maxTxSize reports the driver's per-transfer limit. spidev defaults to a
// 4096 byte buffer, which a frame fits in, but some kernels are built with less.
func maxTxSize(c spi.Conn) int {
	if l, ok := c.(conn.Limits); ok {
		if n := l.MaxTxSize(); n > 0 {
			return n
		}
	}
	return 0
}

// Exchange queues one full-duplex frame transfer. It fails with
// spilink.ErrTransportBusy if the previous transfer has not completed.
func (t *Transport) Exchange(tx, rx []byte, done func(error)) error {
	if len(tx) != len(rx) {
		return fmt.Errorf("%w: tx is %d bytes, rx is %d", spilink.ErrInvalidParameter, len(tx), len(rx))
	}
	if !t.connected.Load() {
		return spilink.NewTransportClosedError("exchange", t.portName)
	}
	return t.queue.Submit(tx, rx, done)
}

// transfer runs on the queue goroutine.
func (t *Transport) transfer(tx, rx []byte) error {
	var err error
	if t.maxTx == 0 || len(tx) <= t.maxTx {
		err = t.conn.Tx(tx, rx)
	} else {
		err = t.conn.TxPackets(splitPackets(tx, rx, t.maxTx))
	}
	if err == nil {
		return nil
	}

	if !t.connected.Load() || spilink.IsFatal(err) {
		return spilink.NewTransportError("exchange", t.portName, err, spilink.ErrorTypePermanent)
	}
	return spilink.NewTransportError("exchange", t.portName,
		fmt.Errorf("%w: %w", spilink.ErrTransferFailed, err), spilink.ErrorTypeTransient)
}

// splitPackets cuts a transfer into chunks of at most limit bytes that are
// clocked under one chip-select assertion.
func splitPackets(tx, rx []byte, limit int) []spi.Packet {
	packets := make([]spi.Packet, 0, (len(tx)+limit-1)/limit)
	for off := 0; off < len(tx); off += limit {
		end := min(off+limit, len(tx))
		packets = append(packets, spi.Packet{
			W:           tx[off:end],
			R:           rx[off:end],
			BitsPerWord: wordBits,
			KeepCS:      end < len(tx),
		})
	}
	return packets
}

// Close waits for a running transfer and releases the port.
func (t *Transport) Close() error {
	if !t.connected.CompareAndSwap(true, false) {
		return nil
	}
	t.queue.Close()
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close SPI port %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected returns true until Close is called.
func (t *Transport) IsConnected() bool {
	return t.connected.Load()
}

// Type returns the transport type
func (*Transport) Type() spilink.TransportType {
	return spilink.TransportSPI
}

func (t *Transport) String() string {
	return t.portName
}

var _ spilink.Transport = (*Transport)(nil)
