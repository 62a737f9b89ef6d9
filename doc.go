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

// Package spilink carries a byte stream over a polled full-duplex bus such as
// SPI. Bytes written with Send are cut into fixed-size frames; on every tick
// the engine clocks one frame out and one frame in, and the payload of each
// valid inbound frame is appended to the receive buffer read with Receive.
//
// A frame is FrameSize bytes on the wire: a little-endian header of sync
// marker, receive-readiness status and payload length, followed by a payload
// area that is always transmitted in full. Frames that fail validation are
// dropped and counted; there is no retransmission and no resynchronization.
//
// Basic usage:
//
//	t, err := spi.New("/dev/spidev2.1")
//	if err != nil {
//		return err
//	}
//	link, err := spilink.New(spilink.WithTransport(t))
//	if err != nil {
//		return err
//	}
//	if err := link.Open(ctx); err != nil {
//		return err
//	}
//	defer link.Shutdown(context.Background())
//
//	_, err = link.Send([]byte("hello"))
//	reply := link.Receive(1024)
package spilink
