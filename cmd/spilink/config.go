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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZaparooProject/go-spilink"
	"github.com/ZaparooProject/go-spilink/detection"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk CLI configuration. Flags override it.
type Config struct {
	Device             string        `yaml:"device"`
	Transport          string        `yaml:"transport"`
	DetectMode         string        `yaml:"detect_mode"`
	SessionLogDir      string        `yaml:"session_log_dir"`
	TxCapacity         int           `yaml:"tx_capacity"`
	RxCapacity         int           `yaml:"rx_capacity"`
	Interval           time.Duration `yaml:"interval"`
	SpeedHz            int64         `yaml:"speed_hz"`
	Baud               int           `yaml:"baud"`
	AdvertiseReadiness bool          `yaml:"advertise_readiness"`
	Debug              bool          `yaml:"debug"`
}

// DefaultPath returns ~/.config/spilink/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "spilink.yaml")
	}
	return filepath.Join(dir, "spilink", "config.yaml")
}

func defaultConfig() *Config {
	return &Config{
		DetectMode: detection.Safe.String(),
		TxCapacity: spilink.DefaultTxCapacity,
		RxCapacity: spilink.DefaultRxCapacity,
		Interval:   spilink.DefaultInterval,
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Transport {
	case "", "spi", "uart":
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if _, err := detection.ParseMode(c.DetectMode); err != nil {
		return err
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	return nil
}

// linkOptions translates the config into link options.
func (c *Config) linkOptions() []spilink.Option {
	return []spilink.Option{
		spilink.WithTxCapacity(c.TxCapacity),
		spilink.WithRxCapacity(c.RxCapacity),
		spilink.WithInterval(c.Interval),
		spilink.WithAdvertiseReadiness(c.AdvertiseReadiness),
	}
}
