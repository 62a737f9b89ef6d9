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
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-spilink"
	virt "github.com/ZaparooProject/go-spilink/internal/testing"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type statusReport struct {
	Transport string              `yaml:"transport"`
	Health    string              `yaml:"health"`
	Engine    string              `yaml:"engine"`
	Status    spilink.Status      `yaml:"status"`
	Metrics   spilink.Metrics     `yaml:"metrics"`
	Trigger   triggerReport       `yaml:"trigger"`
	TxBuffer  spilink.BufferState `yaml:"tx_buffer"`
	RxBuffer  spilink.BufferState `yaml:"rx_buffer"`
}

type triggerReport struct {
	Ticks      int64  `yaml:"ticks"`
	TickErrors int64  `yaml:"tick_errors"`
	Stalls     int64  `yaml:"stalls"`
	MaxLatency string `yaml:"max_latency"`
}

func newStatusCmd(a *app) *cobra.Command {
	var (
		duration time.Duration
		loopback bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Run the link briefly and print its diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.status(cmd.Context(), cmd.OutOrStdout(), duration, loopback)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", time.Second, "how long to run before reporting")
	cmd.Flags().BoolVar(&loopback, "loopback", false, "use the simulated echo peer instead of a device")
	return cmd
}

func (a *app) status(ctx context.Context, out io.Writer, duration time.Duration, loopback bool) error {
	var (
		link *spilink.Link
		err  error
	)
	if loopback {
		peer := virt.NewVirtualPeer()
		peer.SetEcho(true)
		link, err = spilink.New(append(a.cfg.linkOptions(), spilink.WithTransport(peer.Transport()))...)
		if err == nil {
			err = link.Open(ctx)
		}
	} else {
		link, err = a.connect(ctx)
	}
	if err != nil {
		return err
	}
	defer shutdown(link)

	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // plain cancellation
	case <-time.After(duration):
	}

	report := buildStatusReport(link)
	if a.output == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode status: %w", err)
		}
		return enc.Close()
	}

	_, _ = fmt.Fprintf(out, "transport: %s\n", report.Transport)
	_, _ = fmt.Fprintf(out, "engine:    %s\n", report.Engine)
	_, _ = fmt.Fprintf(out, "health:    %s\n", report.Health)
	_, _ = fmt.Fprintf(out, "tx:        %d queued, %d free\n", report.Status.TxBytesQueued, report.Status.TxBytesFree)
	_, _ = fmt.Fprintf(out, "rx:        %d available\n", report.Status.RxBytesAvailable)
	_, _ = fmt.Fprintf(out, "peer cts:  %v\n", report.Status.PeerClearToSend)
	_, _ = fmt.Fprintf(out, "metrics:   %s\n", report.Metrics)
	_, _ = fmt.Fprintf(out, "trigger:   ticks=%d errors=%d stalls=%d max_latency=%s\n",
		report.Trigger.Ticks, report.Trigger.TickErrors, report.Trigger.Stalls, report.Trigger.MaxLatency)
	return nil
}

func buildStatusReport(link *spilink.Link) statusReport {
	tm := link.TriggerMetrics()
	tx, rx := link.BufferStates()
	transport := "none"
	if t := link.Engine().Transport(); t != nil {
		transport = string(t.Type())
		if name := portName(t, ""); name != "" && name != transport {
			transport += " " + name
		}
	}
	return statusReport{
		Transport: transport,
		Health:    link.Health().String(),
		Engine:    link.Engine().State().String(),
		Status:    link.GetStatus(),
		Metrics:   link.Metrics(),
		TxBuffer:  tx,
		RxBuffer:  rx,
		Trigger: triggerReport{
			Ticks:      tm.Ticks,
			TickErrors: tm.TickErrors,
			Stalls:     tm.Stalls,
			MaxLatency: tm.MaxTickLatency.String(),
		},
	}
}
