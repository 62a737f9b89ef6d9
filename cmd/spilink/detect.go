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
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ZaparooProject/go-spilink/detection"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// detectedDevice is the yaml form of detection.DeviceInfo.
type detectedDevice struct {
	Metadata   map[string]string `yaml:"metadata,omitempty"`
	Transport  string            `yaml:"transport"`
	Path       string            `yaml:"path"`
	Name       string            `yaml:"name"`
	Confidence string            `yaml:"confidence"`
}

func newDetectCmd(a *app) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "List candidate link devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("mode") {
				mode = a.cfg.DetectMode
			}
			return a.detect(cmd.Context(), cmd.OutOrStdout(), mode)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "safe", "detection mode: passive, safe or full")
	return cmd
}

func (a *app) detect(ctx context.Context, out io.Writer, modeName string) error {
	mode, err := detection.ParseMode(modeName)
	if err != nil {
		return err
	}

	opts := detection.DefaultOptions()
	opts.Mode = mode
	opts.EnableCache = false
	if a.cfg.Transport != "" {
		opts.Transports = []string{a.cfg.Transport}
	}

	devices, err := detection.DetectAll(ctx, &opts)
	if err != nil && !errors.Is(err, detection.ErrNoDevicesFound) {
		return fmt.Errorf("detection failed: %w", err)
	}

	if a.output == "yaml" {
		return writeDevicesYAML(out, devices)
	}
	return writeDevicesTable(out, devices)
}

func writeDevicesYAML(out io.Writer, devices []detection.DeviceInfo) error {
	list := make([]detectedDevice, 0, len(devices))
	for _, d := range devices {
		list = append(list, detectedDevice{
			Transport:  d.Transport,
			Path:       d.Path,
			Name:       d.Name,
			Confidence: d.Confidence.String(),
			Metadata:   d.Metadata,
		})
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(list); err != nil {
		return fmt.Errorf("encode devices: %w", err)
	}
	return enc.Close()
}

func writeDevicesTable(out io.Writer, devices []detection.DeviceInfo) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(out, "no devices found")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TRANSPORT\tPATH\tNAME\tCONFIDENCE")
	for _, d := range devices {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Transport, d.Path, d.Name, d.Confidence)
	}
	return tw.Flush()
}
