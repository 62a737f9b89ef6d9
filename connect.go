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

package spilink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-spilink/detection"
)

// TransportFactory opens a transport on a device path.
type TransportFactory func(path string) (Transport, error)

// TransportFromDeviceFactory opens a transport on a detected device.
type TransportFromDeviceFactory func(device detection.DeviceInfo) (Transport, error)

// DeviceDetector lists candidate devices; detection.DetectAll by default.
type DeviceDetector func(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error)

// ConnectOption configures Connect.
type ConnectOption func(*connectConfig) error

type connectConfig struct {
	transportFactory       TransportFactory
	transportDeviceFactory TransportFromDeviceFactory
	deviceDetector         DeviceDetector
	linkOptions            []Option
	transports             []string
	connectionRetries      int
	autoDetect             bool
}

// WithAutoDetection ignores the path and connects to the first detected device.
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithLinkOptions passes options through to New.
func WithLinkOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.linkOptions = append(c.linkOptions, opts...)
		return nil
	}
}

// WithTransportFactory sets how a device path is opened.
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithTransportFromDeviceFactory sets how a detected device is opened.
func WithTransportFromDeviceFactory(factory TransportFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportDeviceFactory = factory
		return nil
	}
}

// WithConnectionRetries sets the number of attempts made to open a device
// path. Auto-detected devices are tried once.
func WithConnectionRetries(maxAttempts int) ConnectOption {
	return func(c *connectConfig) error {
		if maxAttempts < 1 {
			return fmt.Errorf("connection retries must be at least 1, got %d", maxAttempts)
		}
		c.connectionRetries = maxAttempts
		return nil
	}
}

// WithDeviceDetector replaces detection.DetectAll during auto-detection.
func WithDeviceDetector(detector DeviceDetector) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceDetector = detector
		return nil
	}
}

// WithDetectionTransports limits auto-detection to the named transports.
func WithDetectionTransports(transports ...string) ConnectOption {
	return func(c *connectConfig) error {
		c.transports = append(c.transports, transports...)
		return nil
	}
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{connectionRetries: 3}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}
	return config, nil
}

// Connect opens a transport for path, or for the first detected device when
// path is empty or auto-detection is enabled, creates a link with that
// transport attached and opens it.
//
// Example usage:
//
//	link, err := spilink.Connect(ctx, "/dev/spidev2.1",
//	    spilink.WithTransportFactory(func(path string) (spilink.Transport, error) {
//	        return spi.New(path)
//	    }))
func Connect(ctx context.Context, path string, opts ...ConnectOption) (*Link, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, err
	}

	transport, err := createTransport(ctx, path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	linkOpts := append([]Option{WithTransport(transport)}, config.linkOptions...)
	link, err := New(linkOpts...)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	if err := link.Open(ctx); err != nil {
		_ = transport.Close()
		return nil, err
	}
	return link, nil
}

func createTransport(ctx context.Context, path string, config *connectConfig) (Transport, error) {
	if config.autoDetect || path == "" {
		return createAutoDetectedTransport(ctx, config)
	}
	return createManualTransport(ctx, path, config)
}

func createManualTransport(ctx context.Context, path string, config *connectConfig) (Transport, error) {
	if config.transportFactory == nil {
		return nil, errors.New("transport factory not provided")
	}

	retryConfig := &RetryConfig{
		MaxAttempts:       config.connectionRetries,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      10 * time.Second,
	}

	var transport Transport
	err := RetryWithConfig(ctx, retryConfig, func() error {
		t, err := config.transportFactory(path)
		if err != nil {
			return err
		}
		transport = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return transport, nil
}

func createAutoDetectedTransport(ctx context.Context, config *connectConfig) (Transport, error) {
	if config.transportDeviceFactory == nil {
		return nil, errors.New("transport device factory not provided")
	}

	opts := detection.DefaultOptions()
	opts.Mode = detection.Safe
	opts.Transports = config.transports

	detect := config.deviceDetector
	if detect == nil {
		detect = detection.DetectAll
	}

	devices, err := detect(ctx, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrDeviceNotFound
	}

	Debugf("connecting to %s", devices[0])
	return config.transportDeviceFactory(devices[0])
}
