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

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-spilink"
	virt "github.com/ZaparooProject/go-spilink/internal/testing"
	"github.com/spf13/cobra"
)

var errLoopbackMismatch = errors.New("loopback data mismatch")

const quietPeriod = 250 * time.Millisecond

type loopbackOptions struct {
	size      int
	timeout   time.Duration
	faultRate float64
	seed      uint64
}

func newLoopbackCmd(a *app) *cobra.Command {
	lo := loopbackOptions{}
	cmd := &cobra.Command{
		Use:   "loopback",
		Short: "Echo a test pattern through a simulated peer",
		Long: `loopback runs the full link against an in-process peer that echoes every
byte it receives. With --fault-rate the bus rejects, fails and corrupts
exchanges at that rate; lost frames are then expected and only counted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.loopback(cmd.Context(), cmd.OutOrStdout(), lo)
		},
	}
	cmd.Flags().IntVar(&lo.size, "bytes", 256*1024, "bytes to send")
	cmd.Flags().DurationVar(&lo.timeout, "timeout", 30*time.Second, "give up after this long")
	cmd.Flags().Float64Var(&lo.faultRate, "fault-rate", 0, "probability of each injected fault per exchange")
	cmd.Flags().Uint64Var(&lo.seed, "seed", 1, "fault injection seed")
	return cmd
}

// pattern returns n bytes that do not repeat on frame boundaries.
func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*31 + i/251)
	}
	return p
}

func (a *app) loopback(ctx context.Context, out io.Writer, lo loopbackOptions) error {
	if lo.size <= 0 {
		return fmt.Errorf("bytes must be positive, got %d", lo.size)
	}
	if lo.faultRate < 0 || lo.faultRate > 1 {
		return fmt.Errorf("fault rate must be in [0, 1], got %v", lo.faultRate)
	}

	peer := virt.NewVirtualPeer()
	peer.SetEcho(true)
	var transport spilink.Transport = peer.Transport()
	var flaky *virt.FlakyTransport
	if lo.faultRate > 0 {
		flaky = virt.NewFlakyTransport(transport, virt.FaultConfig{
			RejectRate:  lo.faultRate,
			FailRate:    lo.faultRate,
			CorruptRate: lo.faultRate,
			Seed:        lo.seed,
		})
		transport = flaky
	}

	link, err := spilink.New(append(a.cfg.linkOptions(), spilink.WithTransport(transport))...)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, lo.timeout)
	defer cancel()
	if err := link.Open(ctx); err != nil {
		return err
	}
	defer shutdown(link)

	data := pattern(lo.size)
	sent := make(chan error, 1)
	start := time.Now()
	go func() { sent <- sendAll(ctx, link, data, a.cfg.Interval) }()

	got := make([]byte, 0, lo.size)
	lastRx := time.Now()
	var sendErr error
	sendDone := false
	for len(got) < lo.size {
		if chunk := link.Receive(chunkSize); len(chunk) > 0 {
			got = append(got, chunk...)
			lastRx = time.Now()
			continue
		}
		// Once everything is queued a quiet link means the rest was lost.
		if sendDone && link.GetStatus().TxBytesQueued == 0 && time.Since(lastRx) > quietPeriod {
			break
		}
		select {
		case <-ctx.Done():
		case sendErr = <-sent:
			sendDone = true
			sent = nil
			continue
		case <-time.After(a.cfg.Interval):
			continue
		}
		break
	}
	elapsed := time.Since(start)
	cancel()
	if !sendDone {
		sendErr = <-sent
	}
	if sendErr != nil && !errors.Is(sendErr, context.Canceled) && !errors.Is(sendErr, context.DeadlineExceeded) {
		return sendErr
	}

	_, _ = fmt.Fprintf(out, "sent:       %d bytes\n", lo.size)
	_, _ = fmt.Fprintf(out, "received:   %d bytes in %v\n", len(got), elapsed.Round(time.Millisecond))
	if secs := elapsed.Seconds(); secs > 0 {
		_, _ = fmt.Fprintf(out, "throughput: %.1f KiB/s\n", float64(len(got))/1024/secs)
	}
	_, _ = fmt.Fprintf(out, "metrics:    %s\n", link.Metrics())
	_, _ = fmt.Fprintf(out, "health:     %s\n", link.Health())
	if flaky != nil {
		c := flaky.Counts()
		_, _ = fmt.Fprintf(out, "faults:     rejected=%d failed=%d corrupted=%d\n",
			c.Rejected, c.Failed, c.Corrupted)
		return nil
	}

	if !bytes.Equal(got, data) {
		return fmt.Errorf("%w: %d of %d bytes echoed", errLoopbackMismatch, len(got), lo.size)
	}
	_, _ = fmt.Fprintln(out, "result:     ok")
	return nil
}
