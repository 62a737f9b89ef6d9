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

package testing

import (
	"bytes"
	"testing"
	"time"

	"github.com/ZaparooProject/go-spilink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	wire, err := spilink.EncodeFrame(payload, spilink.StatusRxUnable)
	require.NoError(t, err)
	return wire
}

func TestVirtualPeer_CollectsHostPayload(t *testing.T) {
	t.Parallel()

	peer := NewVirtualPeer()
	reply := make([]byte, spilink.FrameSize)

	require.NoError(t, peer.Exchange(hostFrame(t, []byte("hello")), reply))
	require.NoError(t, peer.Exchange(hostFrame(t, []byte(" world")), reply))

	assert.Equal(t, []byte("hello world"), peer.Received())
	assert.Equal(t, int64(2), peer.Exchanges())
	assert.Equal(t, []byte("hello world"), peer.TakeReceived())
	assert.Empty(t, peer.Received())
}

func TestVirtualPeer_RepliesFromOutbox(t *testing.T) {
	t.Parallel()

	peer := NewVirtualPeer()
	require.True(t, peer.Queue([]byte{1, 2, 3}))
	assert.Equal(t, 3, peer.Pending())

	reply := make([]byte, spilink.FrameSize)
	require.NoError(t, peer.Exchange(hostFrame(t, nil), reply))

	payload, status, err := spilink.DecodeFrame(reply)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, payload)
	assert.Equal(t, spilink.StatusRxAble, status)
	assert.Zero(t, peer.Pending())
}

func TestVirtualPeer_SplitsLargeQueueAcrossFrames(t *testing.T) {
	t.Parallel()

	peer := NewVirtualPeer()
	data := bytes.Repeat([]byte{0x5A}, spilink.MaxPayload+10)
	require.True(t, peer.Queue(data))

	reply := make([]byte, spilink.FrameSize)
	require.NoError(t, peer.Exchange(hostFrame(t, nil), reply))
	first, _, err := spilink.DecodeFrame(reply)
	require.NoError(t, err)
	assert.Len(t, first, spilink.MaxPayload)

	require.NoError(t, peer.Exchange(hostFrame(t, nil), reply))
	second, _, err := spilink.DecodeFrame(reply)
	require.NoError(t, err)
	assert.Len(t, second, 10)
}

func TestVirtualPeer_EchoArrivesNextExchange(t *testing.T) {
	t.Parallel()

	peer := NewVirtualPeer()
	peer.SetEcho(true)
	reply := make([]byte, spilink.FrameSize)

	require.NoError(t, peer.Exchange(hostFrame(t, []byte("ping")), reply))
	payload, _, err := spilink.DecodeFrame(reply)
	require.NoError(t, err)
	assert.Empty(t, payload, "full-duplex reply is built before the host frame is seen")

	require.NoError(t, peer.Exchange(hostFrame(t, nil), reply))
	payload, _, err = spilink.DecodeFrame(reply)
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), payload)
}

func TestVirtualPeer_RejectsInvalidHostFrame(t *testing.T) {
	t.Parallel()

	peer := NewVirtualPeer()
	host := hostFrame(t, []byte("lost"))
	CorruptSync(host)

	require.NoError(t, peer.Exchange(host, make([]byte, spilink.FrameSize)))
	assert.Equal(t, int64(1), peer.Rejected())
	assert.Empty(t, peer.Received())
}

func TestVirtualPeer_Corruption(t *testing.T) {
	t.Parallel()

	peer := NewVirtualPeer()
	reply := make([]byte, spilink.FrameSize)

	peer.SetCorruption(CorruptLength)
	require.NoError(t, peer.Exchange(hostFrame(t, nil), reply))
	_, _, err := spilink.DecodeFrame(reply)
	require.ErrorIs(t, err, spilink.ErrBadLength)

	peer.SetCorruption(CorruptSync)
	require.NoError(t, peer.Exchange(hostFrame(t, nil), reply))
	_, _, err = spilink.DecodeFrame(reply)
	require.ErrorIs(t, err, spilink.ErrBadSync)

	peer.SetCorruption(nil)
	require.NoError(t, peer.Exchange(hostFrame(t, nil), reply))
	_, _, err = spilink.DecodeFrame(reply)
	require.NoError(t, err)
}

func TestVirtualPeer_ShortBuffers(t *testing.T) {
	t.Parallel()

	peer := NewVirtualPeer()
	err := peer.Exchange(make([]byte, 10), make([]byte, spilink.FrameSize))
	require.ErrorIs(t, err, spilink.ErrShortFrame)
}

func TestPeerTransport_CompletesAsynchronously(t *testing.T) {
	t.Parallel()

	peer := NewVirtualPeer()
	require.True(t, peer.Queue([]byte("from peer")))
	tr := peer.Transport()
	defer func() { _ = tr.Close() }()

	assert.Equal(t, spilink.TransportVirtual, tr.Type())
	assert.True(t, tr.IsConnected())

	rx := make([]byte, spilink.FrameSize)
	done := make(chan error, 1)
	require.NoError(t, tr.Exchange(hostFrame(t, []byte("from host")), rx, func(err error) { done <- err }))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("exchange did not complete")
	}

	payload, _, err := spilink.DecodeFrame(rx)
	require.NoError(t, err)
	assert.Equal(t, []byte("from peer"), payload)
	assert.Equal(t, []byte("from host"), peer.Received())
}

func TestPeerTransport_ClosedRejects(t *testing.T) {
	t.Parallel()

	tr := NewVirtualPeer().Transport()
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())

	err := tr.Exchange(make([]byte, spilink.FrameSize), make([]byte, spilink.FrameSize), func(error) {})
	require.ErrorIs(t, err, spilink.ErrTransportClosed)
}

func TestStream_ReplyPerWholeFrame(t *testing.T) {
	t.Parallel()

	peer := NewVirtualPeer()
	require.True(t, peer.Queue([]byte{0xAB}))
	stream := peer.Stream()

	host := hostFrame(t, []byte{0xCD})
	n, err := stream.Write(host[:100])
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Zero(t, stream.Buffered())

	n, err = stream.Read(make([]byte, 8))
	require.NoError(t, err)
	assert.Zero(t, n, "nothing to read reports a timeout-style empty read")

	_, err = stream.Write(host[100:])
	require.NoError(t, err)
	assert.Equal(t, spilink.FrameSize, stream.Buffered())

	reply := make([]byte, spilink.FrameSize)
	got := 0
	for got < len(reply) {
		n, err = stream.Read(reply[got:])
		require.NoError(t, err)
		got += n
	}
	payload, _, err := spilink.DecodeFrame(reply)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB}, payload)
	assert.Equal(t, []byte{0xCD}, peer.Received())

	_, err = stream.Write(host[:10])
	require.NoError(t, err)
	stream.Discard()
	assert.Zero(t, stream.Buffered())
}
