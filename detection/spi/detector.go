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

// Package spi finds spidev nodes a link peer may be wired to. Importing it
// registers the detector with the detection package.
package spi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/ZaparooProject/go-spilink"
	"github.com/ZaparooProject/go-spilink/detection"
	"github.com/ZaparooProject/go-spilink/transport/spi"
	"periph.io/x/conn/v3/physic"
)

const (
	envDevice = "SPILINK_SPI_DEVICE"
	envSpeed  = "SPILINK_SPI_SPEED_HZ"

	probeTimeout = 2 * time.Second
)

// Config describes one SPI device, as found in a config file or the
// environment.
type Config struct {
	Metadata map[string]string `json:"metadata,omitempty"`
	// Device path (e.g., "/dev/spidev2.1")
	Device string `json:"device"`
	Name   string `json:"name,omitempty"`
	// SpeedHz overrides the transport's default clock.
	SpeedHz int64 `json:"speed_hz,omitempty"`
}

func (c Config) transportOptions() []spi.Option {
	if c.SpeedHz <= 0 {
		return nil
	}
	return []spi.Option{spi.WithSpeed(physic.Frequency(c.SpeedHz) * physic.Hertz)}
}

// Seams for tests.
var (
	configPaths = func() []string {
		return []string{
			"spilink-spi.json",
			".spilink-spi.json",
			filepath.Join(os.Getenv("HOME"), ".config", "spilink", "spi.json"),
			"/etc/spilink/spi.json",
		}
	}
	devGlob = "/dev/spidev*"
	probeFn = probeDevice
)

type detector struct{}

// New creates a new SPI detector
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "spi"
}

// Detect lists configured and discovered spidev nodes. Safe mode opens each
// one; full mode also exchanges an idle frame and requires a valid reply.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	configs := gatherConfigs()
	if len(configs) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	var devices []detection.DeviceInfo
	for _, cfg := range configs {
		if err := ctx.Err(); err != nil {
			return devices, fmt.Errorf("%w: %w", detection.ErrDetectionTimeout, err)
		}
		if detection.IsPathIgnored(cfg.Device, opts.IgnorePaths) {
			continue
		}

		device := createDeviceInfo(cfg)
		if opts.Mode == detection.Passive {
			devices = append(devices, device)
			continue
		}

		confidence, ok := probeFn(ctx, cfg, opts.Mode)
		if !ok {
			spilink.Debugf("spi detect: %s did not answer", cfg.Device)
			continue
		}
		device.Confidence = confidence
		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// gatherConfigs merges file, environment and discovered devices, first
// source wins for a given path.
func gatherConfigs() []Config {
	var configs []Config
	configs = append(configs, loadConfigFile()...)
	if env, ok := loadEnvConfig(); ok {
		configs = append(configs, env)
	}
	if runtime.GOOS == "linux" {
		configs = append(configs, discoverDevices()...)
	}
	return deduplicateConfigs(configs)
}

func createDeviceInfo(cfg Config) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  "spi",
		Path:       cfg.Device,
		Name:       cfg.Name,
		Confidence: detection.Low,
		Metadata:   make(map[string]string, len(cfg.Metadata)+1),
	}
	for k, v := range cfg.Metadata {
		device.Metadata[k] = v
	}
	if cfg.SpeedHz > 0 {
		device.Metadata["speed_hz"] = strconv.FormatInt(cfg.SpeedHz, 10)
	}
	if device.Name == "" {
		device.Name = "SPI device " + filepath.Base(cfg.Device)
	}
	return device
}

// loadConfigFile reads the first config file that parses. A file may hold
// a single object or a list.
func loadConfigFile() []Config {
	for _, path := range configPaths() {
		data, err := os.ReadFile(path) // #nosec G304 -- fixed search path
		if err != nil {
			continue
		}

		var configs []Config
		if err := json.Unmarshal(data, &configs); err == nil {
			return configs
		}
		var single Config
		if err := json.Unmarshal(data, &single); err == nil && single.Device != "" {
			return []Config{single}
		}
		spilink.Debugf("spi detect: ignoring unparseable config %s", path)
	}
	return nil
}

func loadEnvConfig() (Config, bool) {
	device := os.Getenv(envDevice)
	if device == "" {
		return Config{}, false
	}
	cfg := Config{Device: device, Name: "SPI device from environment"}
	if hz, err := strconv.ParseInt(os.Getenv(envSpeed), 10, 64); err == nil && hz > 0 {
		cfg.SpeedHz = hz
	}
	return cfg, true
}

// discoverDevices lists spidev nodes this process may open.
func discoverDevices() []Config {
	matches, err := filepath.Glob(devGlob)
	if err != nil {
		return nil
	}

	var configs []Config
	for _, path := range matches {
		if !accessible(path) {
			spilink.Debugf("spi detect: %s not accessible", path)
			continue
		}
		configs = append(configs, Config{Device: path})
	}
	return configs
}

func deduplicateConfigs(configs []Config) []Config {
	seen := make(map[string]bool, len(configs))
	unique := configs[:0]
	for _, cfg := range configs {
		if cfg.Device == "" || seen[cfg.Device] {
			continue
		}
		seen[cfg.Device] = true
		unique = append(unique, cfg)
	}
	return unique
}

// probeDevice opens the device and, in full mode, checks that something on
// the other end speaks the frame protocol.
func probeDevice(ctx context.Context, cfg Config, mode detection.Mode) (detection.Confidence, bool) {
	t, err := spi.New(cfg.Device, cfg.transportOptions()...)
	if err != nil {
		return detection.Low, false
	}
	defer func() { _ = t.Close() }()

	if mode != detection.Full {
		return detection.Medium, true
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := spilink.ProbeTransport(probeCtx, t); err != nil {
		spilink.Debugf("spi detect: probe %s: %v", cfg.Device, err)
		return detection.Low, false
	}
	return detection.High, true
}
