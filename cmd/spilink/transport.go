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
	"errors"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-spilink"
	"github.com/ZaparooProject/go-spilink/detection"
	"github.com/ZaparooProject/go-spilink/transport/spi"
	"github.com/ZaparooProject/go-spilink/transport/uart"
	"periph.io/x/conn/v3/physic"
)

// transportKind picks spi or uart for path, honouring an explicit choice.
func transportKind(path, explicit string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	if strings.Contains(strings.ToLower(path), "spi") {
		return "spi"
	}
	return "uart"
}

// newTransport opens path with the transport cfg selects.
func newTransport(cfg *Config, path string) (spilink.Transport, error) {
	if path == "" {
		return nil, errors.New("empty device path")
	}

	switch transportKind(path, cfg.Transport) {
	case "spi":
		var opts []spi.Option
		if cfg.SpeedHz > 0 {
			opts = append(opts, spi.WithSpeed(physic.Frequency(cfg.SpeedHz)*physic.Hertz))
		}
		t, err := spi.New(path, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport for %s: %w", path, err)
		}
		return t, nil
	case "uart":
		t, err := uart.New(path, uart.WithBaudRate(cfg.Baud))
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport for %s: %w", path, err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Transport)
	}
}

// newTransportFromDevice opens a detected device.
func newTransportFromDevice(cfg *Config, device detection.DeviceInfo) (spilink.Transport, error) {
	local := *cfg
	local.Transport = device.Transport
	return newTransport(&local, device.Path)
}
