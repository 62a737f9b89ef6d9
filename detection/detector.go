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

// Package detection discovers buses a link peer may be attached to. Bus
// specific detectors live in subpackages and register themselves on import:
//
//	import _ "github.com/ZaparooProject/go-spilink/detection/spi"
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ZaparooProject/go-spilink/internal/syncutil"
)

// Mode controls how intrusive detection may be.
type Mode int

const (
	// Passive only lists device nodes; nothing is opened.
	Passive Mode = iota
	// Safe opens candidates to confirm they are usable but clocks no data.
	Safe
	// Full exchanges one idle frame and looks for a valid reply.
	Full
)

func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Safe:
		return "safe"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a mode name as printed by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "passive":
		return Passive, nil
	case "safe", "":
		return Safe, nil
	case "full":
		return Full, nil
	default:
		return Safe, fmt.Errorf("unknown detection mode %q", s)
	}
}

// Confidence indicates how sure a detector is that a link peer is present.
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo describes a detected device.
type DeviceInfo struct {
	Metadata   map[string]string
	Transport  string
	Path       string
	Name       string
	Confidence Confidence
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s device at %s (confidence: %s)", d.Transport, d.Path, d.Confidence)
}

// Options configures detection.
type Options struct {
	// Blocklist holds USB VID:PID pairs never to probe.
	Blocklist []string
	// IgnorePaths holds device paths to skip.
	IgnorePaths []string
	// Transports limits detection to the named detectors; empty means all.
	Transports []string
	CacheTTL   time.Duration
	Timeout    time.Duration
	Mode       Mode
	// EnableCache reuses results per transport for CacheTTL.
	EnableCache bool
}

// DefaultOptions returns safe-mode options with caching.
func DefaultOptions() Options {
	return Options{
		Mode:        Safe,
		Timeout:     5 * time.Second,
		Blocklist:   DefaultBlocklist(),
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Detector discovers devices on one kind of bus.
type Detector interface {
	// Detect returns candidate devices, or ErrNoDevicesFound.
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	// Transport names the bus, e.g. "spi".
	Transport() string
}

var (
	ErrNoDevicesFound      = errors.New("no link devices found")
	ErrNoDetectors         = errors.New("no detectors available for specified transports")
	ErrDetectionTimeout    = errors.New("detection timeout")
	ErrUnsupportedPlatform = errors.New("platform not supported")
)

var (
	registryMu syncutil.RWMutex
	registry   []Detector
)

// RegisterDetector adds d to the detectors DetectAll consults.
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, d)
}

func detectorsFor(transports []string) []Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var selected []Detector
	for _, d := range registry {
		if len(transports) == 0 || containsFold(transports, d.Transport()) {
			selected = append(selected, d)
		}
	}
	return selected
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// DetectAll runs every selected detector concurrently and merges their
// results, highest confidence first. Detector errors are reported only when
// no device was found at all.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	detectors := detectorsFor(opts.Transports)
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	type result struct {
		err     error
		devices []DeviceInfo
	}
	results := make(chan result, len(detectors))

	for _, d := range detectors {
		go func(d Detector) {
			devices, err := detectWithCache(ctx, d, opts)
			results <- result{devices: devices, err: err}
		}(d)
	}

	var devices []DeviceInfo
	var errs []error
	for range detectors {
		select {
		case r := <-results:
			if r.err != nil {
				errs = append(errs, r.err)
				continue
			}
			devices = append(devices, r.devices...)
		case <-ctx.Done():
			return nil, ErrDetectionTimeout
		}
	}

	if len(devices) == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, ErrNoDevicesFound
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	return devices, nil
}

func detectWithCache(ctx context.Context, d Detector, opts *Options) ([]DeviceInfo, error) {
	if opts.EnableCache {
		if cached, ok := getCached(d.Transport(), opts.CacheTTL); ok {
			return filterDevices(cached, opts), nil
		}
	}

	devices, err := d.Detect(ctx, opts)
	if errors.Is(err, ErrNoDevicesFound) {
		devices, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s detection: %w", d.Transport(), err)
	}

	if opts.EnableCache {
		if len(devices) > 0 {
			setCached(d.Transport(), devices)
		} else {
			clearCacheForTransport(d.Transport())
		}
	}
	return devices, nil
}

// filterDevices applies ignore paths and the VID:PID blocklist to cached
// results, which may predate the current options.
func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}

	filtered := devices[:0:0]
	for _, device := range devices {
		if IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		if vidpid, ok := device.Metadata["vidpid"]; ok && IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		filtered = append(filtered, device)
	}
	return filtered
}

// ClearDetectionCache drops all cached results.
func ClearDetectionCache() {
	clearCache()
}

// ClearDetectionCacheForTransport drops cached results for one transport.
func ClearDetectionCacheForTransport(transport string) {
	clearCacheForTransport(transport)
}
