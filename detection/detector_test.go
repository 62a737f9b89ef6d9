//nolint:paralleltest // Tests share the detector registry and result cache
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

package detection

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	err       error
	transport string
	devices   []DeviceInfo
	delay     time.Duration
	calls     atomic.Int32
}

func (f *fakeDetector) Detect(_ context.Context, _ *Options) ([]DeviceInfo, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	return f.devices, f.err
}

func (f *fakeDetector) Transport() string { return f.transport }

// withRegistry installs detectors for the duration of the test.
func withRegistry(t *testing.T, detectors ...Detector) {
	t.Helper()
	registryMu.Lock()
	saved := registry
	registry = detectors
	registryMu.Unlock()
	ClearDetectionCache()

	t.Cleanup(func() {
		registryMu.Lock()
		registry = saved
		registryMu.Unlock()
		ClearDetectionCache()
	})
}

func TestMode_StringAndParse(t *testing.T) {
	for _, m := range []Mode{Passive, Safe, Full} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	parsed, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Safe, parsed)

	_, err = ParseMode("aggressive")
	require.Error(t, err)
	assert.Equal(t, "Mode(7)", Mode(7).String())
}

func TestDeviceInfo_String(t *testing.T) {
	d := DeviceInfo{Transport: "spi", Path: "/dev/spidev2.1", Confidence: High}
	assert.Equal(t, "spi device at /dev/spidev2.1 (confidence: high)", d.String())

	d.Confidence = Confidence(9)
	assert.Contains(t, d.String(), "confidence: unknown")
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, Safe, opts.Mode)
	assert.True(t, opts.EnableCache)
	assert.Equal(t, 30*time.Second, opts.CacheTTL)
	assert.NotNil(t, opts.Blocklist)
}

func TestDetectAll_MergesByConfidence(t *testing.T) {
	spi := &fakeDetector{transport: "spi", devices: []DeviceInfo{
		{Transport: "spi", Path: "/dev/spidev1.1", Confidence: Low},
	}}
	uart := &fakeDetector{transport: "uart", devices: []DeviceInfo{
		{Transport: "uart", Path: "/dev/ttyUSB0", Confidence: High},
	}}
	withRegistry(t, spi, uart)

	opts := &Options{Timeout: time.Second}
	devices, err := DetectAll(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "/dev/ttyUSB0", devices[0].Path)
	assert.Equal(t, "/dev/spidev1.1", devices[1].Path)
}

func TestDetectAll_FilterByTransport(t *testing.T) {
	spi := &fakeDetector{transport: "spi", devices: []DeviceInfo{{Transport: "spi", Path: "a"}}}
	uart := &fakeDetector{transport: "uart", devices: []DeviceInfo{{Transport: "uart", Path: "b"}}}
	withRegistry(t, spi, uart)

	devices, err := DetectAll(context.Background(), &Options{Transports: []string{"SPI"}})
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "a", devices[0].Path)
	assert.Zero(t, uart.calls.Load())
}

func TestDetectAll_NoDetectors(t *testing.T) {
	withRegistry(t)
	_, err := DetectAll(context.Background(), &Options{})
	require.ErrorIs(t, err, ErrNoDetectors)
}

func TestDetectAll_NothingFound(t *testing.T) {
	withRegistry(t, &fakeDetector{transport: "spi", err: ErrNoDevicesFound})
	_, err := DetectAll(context.Background(), &Options{})
	require.ErrorIs(t, err, ErrNoDevicesFound)
}

func TestDetectAll_ErrorsOnlyWithoutDevices(t *testing.T) {
	boom := errors.New("permission denied")
	failing := &fakeDetector{transport: "spi", err: boom}
	working := &fakeDetector{transport: "uart", devices: []DeviceInfo{{Path: "ok"}}}

	withRegistry(t, failing, working)
	devices, err := DetectAll(context.Background(), &Options{})
	require.NoError(t, err)
	assert.Len(t, devices, 1)

	withRegistry(t, failing)
	_, err = DetectAll(context.Background(), &Options{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "spi detection")
}

func TestDetectAll_Timeout(t *testing.T) {
	withRegistry(t, &fakeDetector{transport: "spi", delay: time.Second})
	_, err := DetectAll(context.Background(), &Options{Timeout: 10 * time.Millisecond})
	require.ErrorIs(t, err, ErrDetectionTimeout)
}

func TestDetectAll_UsesCache(t *testing.T) {
	spi := &fakeDetector{transport: "spi", devices: []DeviceInfo{
		{Transport: "spi", Path: "/dev/spidev2.1"},
		{Transport: "spi", Path: "/dev/spidev2.0"},
	}}
	withRegistry(t, spi)

	opts := &Options{EnableCache: true, CacheTTL: time.Minute}
	_, err := DetectAll(context.Background(), opts)
	require.NoError(t, err)
	_, err = DetectAll(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int32(1), spi.calls.Load())

	opts.IgnorePaths = []string{"/dev/spidev2.0"}
	devices, err := DetectAll(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, devices, 1, "ignore paths apply to cached results")
	assert.Equal(t, "/dev/spidev2.1", devices[0].Path)

	ClearDetectionCacheForTransport("spi")
	_, err = DetectAll(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), spi.calls.Load())
}

func TestCache_TTLAndCopy(t *testing.T) {
	ClearDetectionCache()
	t.Cleanup(ClearDetectionCache)

	devices := []DeviceInfo{{Path: "/dev/ttyUSB0"}}
	setCached("uart", devices)
	devices[0].Path = "mutated"

	got, ok := getCached("uart", time.Minute)
	require.True(t, ok)
	assert.Equal(t, "/dev/ttyUSB0", got[0].Path)

	_, ok = getCached("uart", 0)
	assert.False(t, ok, "zero TTL is always stale")

	_, ok = getCached("spi", time.Minute)
	assert.False(t, ok)
}

func TestFilterDevices_Blocklist(t *testing.T) {
	devices := []DeviceInfo{
		{Path: "/dev/ttyUSB0", Metadata: map[string]string{"vidpid": "1a86:7523"}},
		{Path: "/dev/ttyUSB1", Metadata: map[string]string{"vidpid": "0403:6001"}},
		{Path: "/dev/ttyS0"},
	}
	got := filterDevices(devices, &Options{Blocklist: []string{"1A86:7523"}})
	require.Len(t, got, 2)
	assert.Equal(t, "/dev/ttyUSB1", got[0].Path)
	assert.Len(t, devices, 3, "input untouched")
}
