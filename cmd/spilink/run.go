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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-spilink"
	"github.com/ZaparooProject/go-spilink/detection"
	"github.com/spf13/cobra"
)

const (
	chunkSize       = 4096
	reattachEvery   = 250 * time.Millisecond
	shutdownTimeout = 2 * time.Second
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Bridge stdin and stdout to a device",
		Long: `run opens the device (or the first one detected), writes everything read
from stdin into the link and copies everything received to stdout. It keeps
running after stdin closes until interrupted. An unplugged device is
reopened automatically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// connect opens a link on the configured device, detecting one if needed.
func (a *app) connect(ctx context.Context) (*spilink.Link, error) {
	mode, err := detection.ParseMode(a.cfg.DetectMode)
	if err != nil {
		return nil, err
	}

	opts := []spilink.ConnectOption{
		spilink.WithLinkOptions(a.cfg.linkOptions()...),
		spilink.WithTransportFactory(func(path string) (spilink.Transport, error) {
			return newTransport(a.cfg, path)
		}),
		spilink.WithTransportFromDeviceFactory(func(d detection.DeviceInfo) (spilink.Transport, error) {
			return newTransportFromDevice(a.cfg, d)
		}),
		spilink.WithDeviceDetector(func(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
			opts.Mode = mode
			return detection.DetectAll(ctx, opts)
		}),
	}
	if a.cfg.Transport != "" {
		opts = append(opts, spilink.WithDetectionTransports(a.cfg.Transport))
	}

	link, err := spilink.Connect(ctx, a.cfg.Device, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return link, nil
}

func (a *app) run(ctx context.Context, in io.Reader, out io.Writer) error {
	link, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer shutdown(link)

	device := portName(link.Engine().Transport(), a.cfg.Device)
	spilink.Debugf("bridging stdio over %s", device)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reattacher := spilink.NewReattacher(link, func(context.Context) (spilink.Transport, error) {
		return newTransport(a.cfg, device)
	}, nil)
	go func() { _ = reattacher.Run(ctx, reattachEvery) }()

	errs := make(chan error, 2)
	go func() { errs <- pumpIn(ctx, link, in, a.cfg.Interval) }()
	go func() { errs <- pumpOut(ctx, link, out, a.cfg.Interval) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // plain cancellation
		case err := <-errs:
			if err != nil {
				return err
			}
			// stdin reached EOF; keep delivering inbound data.
		}
	}
}

// pumpIn copies r into the link, waiting for tx space when the buffer is
// full.
func pumpIn(ctx context.Context, link *spilink.Link, r io.Reader, wait time.Duration) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if sendErr := sendAll(ctx, link, buf[:n], wait); sendErr != nil {
				return sendErr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}
}

// sendAll splits p so every piece fits the tx buffer and retries each one
// until it is accepted.
func sendAll(ctx context.Context, link *spilink.Link, p []byte, wait time.Duration) error {
	for len(p) > 0 {
		piece := p
		if free := link.GetStatus().TxBytesFree; len(piece) > free {
			piece = piece[:free]
		}
		if len(piece) > 0 {
			_, err := link.Send(piece)
			switch {
			case err == nil:
				p = p[len(piece):]
				continue
			case !errors.Is(err, spilink.ErrBufferFull):
				return fmt.Errorf("send: %w", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // plain cancellation
		case <-time.After(wait):
		}
	}
	return nil
}

// pumpOut copies received bytes to w until ctx ends.
func pumpOut(ctx context.Context, link *spilink.Link, w io.Writer, wait time.Duration) error {
	ticker := time.NewTicker(wait)
	defer ticker.Stop()

	for {
		for {
			n, err := link.ReceiveTo(w, chunkSize)
			if err != nil {
				return fmt.Errorf("write stdout: %w", err)
			}
			if n == 0 {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// portName recovers the path a transport was opened on.
func portName(t spilink.Transport, fallback string) string {
	if s, ok := t.(fmt.Stringer); ok && s.String() != "" {
		return s.String()
	}
	return fallback
}

func shutdown(link *spilink.Link) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := link.Shutdown(ctx); err != nil {
		spilink.Debugf("shutdown: %v", err)
	}
}
