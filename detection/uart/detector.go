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

// Package uart finds USB serial bridges a link peer may sit behind.
// Importing it registers the detector with the detection package.
package uart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-spilink"
	"github.com/ZaparooProject/go-spilink/detection"
	"github.com/ZaparooProject/go-spilink/transport/uart"
	"go.bug.st/serial/enumerator"
)

const probeTimeout = 2 * time.Second

// knownBridges are USB serial chips commonly used to carry the link.
var knownBridges = map[string]string{
	"10C4:EA60": "Silicon Labs CP210x",
	"0403:6001": "FTDI FT232R",
	"0403:6014": "FTDI FT232H",
	"1A86:7523": "QinHeng CH340",
	"1A86:55D4": "QinHeng CH9102",
	"067B:2303": "Prolific PL2303",
	"2E8A:000A": "Raspberry Pi Pico CDC",
}

var productKeywords = []string{"spilink", "uart bridge", "usb to uart", "usb-serial"}

// serialPort is one enumerated port with its USB metadata.
type serialPort struct {
	Path         string
	Product      string
	SerialNumber string
	VIDPID       string
	IsUSB        bool
}

// Seams for tests.
var (
	listPortsFn   = listPorts
	probeDeviceFn = probeDevice
)

type detector struct{}

// New creates a new UART detector
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "uart"
}

// Detect enumerates serial ports. Passive mode reports recognised bridges
// without opening them, safe mode opens recognised bridges, full mode
// exchanges an idle frame with every USB port and keeps the ones that answer.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := listPortsFn()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for i := range ports {
		if err := ctx.Err(); err != nil {
			return devices, fmt.Errorf("%w: %w", detection.ErrDetectionTimeout, err)
		}
		port := &ports[i]
		if port.VIDPID != "" && detection.IsBlocked(port.VIDPID, opts.Blocklist) {
			continue
		}
		if detection.IsPathIgnored(port.Path, opts.IgnorePaths) {
			continue
		}
		if device, ok := d.processPort(ctx, port, opts); ok {
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func (*detector) processPort(ctx context.Context, port *serialPort, opts *detection.Options) (detection.DeviceInfo, bool) {
	likely := isLikelyBridge(port)

	switch opts.Mode {
	case detection.Passive:
		if !likely {
			return detection.DeviceInfo{}, false
		}
		return createDeviceInfo(port, detection.Medium), true

	case detection.Safe:
		if !likely {
			return detection.DeviceInfo{}, false
		}
	case detection.Full:
		if !port.IsUSB && !likely {
			return detection.DeviceInfo{}, false
		}
	default:
		return detection.DeviceInfo{}, false
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	confidence, ok := probeDeviceFn(probeCtx, port.Path, opts.Mode)
	if !ok {
		spilink.Debugf("uart detect: %s did not answer", port.Path)
		return detection.DeviceInfo{}, false
	}
	return createDeviceInfo(port, confidence), true
}

func createDeviceInfo(port *serialPort, confidence detection.Confidence) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  "uart",
		Path:       port.Path,
		Name:       port.Product,
		Confidence: confidence,
		Metadata:   make(map[string]string),
	}
	if device.Name == "" {
		device.Name = knownBridges[port.VIDPID]
	}
	if device.Name == "" {
		device.Name = "Serial port " + port.Path
	}
	if port.VIDPID != "" {
		device.Metadata["vidpid"] = port.VIDPID
	}
	if port.Product != "" {
		device.Metadata["product"] = port.Product
	}
	if port.SerialNumber != "" {
		device.Metadata["serial"] = port.SerialNumber
	}
	return device
}

// isLikelyBridge reports whether port looks like a USB serial bridge the
// link is commonly run over.
func isLikelyBridge(port *serialPort) bool {
	if _, ok := knownBridges[strings.ToUpper(port.VIDPID)]; ok {
		return true
	}
	product := strings.ToLower(port.Product)
	for _, keyword := range productKeywords {
		if strings.Contains(product, keyword) {
			return true
		}
	}
	return false
}

func listPorts() ([]serialPort, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	ports := make([]serialPort, 0, len(details))
	for _, d := range details {
		port := serialPort{
			Path:         d.Name,
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
			IsUSB:        d.IsUSB,
		}
		if d.IsUSB {
			port.VIDPID = detection.ParseVIDPID(d.VID + ":" + d.PID)
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// probeDevice opens the port once. Failed probes are not retried: the port
// may belong to something else entirely.
func probeDevice(ctx context.Context, path string, mode detection.Mode) (detection.Confidence, bool) {
	t, err := uart.New(path)
	if err != nil {
		return detection.Low, false
	}
	defer func() { _ = t.Close() }()

	if mode != detection.Full {
		return detection.Medium, true
	}
	if _, err := spilink.ProbeTransport(ctx, t); err != nil {
		spilink.Debugf("uart detect: probe %s: %v", path, err)
		return detection.Low, false
	}
	return detection.High, true
}
