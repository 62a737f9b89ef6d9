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

// Command spilink drives a link from the command line: bridge stdin and
// stdout to a device, run an in-process loopback, list candidate devices or
// print link diagnostics.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/go-spilink"
	_ "github.com/ZaparooProject/go-spilink/detection/spi"
	_ "github.com/ZaparooProject/go-spilink/detection/uart"
	"github.com/spf13/cobra"
)

// app holds state shared by every subcommand.
type app struct {
	cfg        *Config
	cfgFile    string
	device     string
	transport  string
	output     string
	sessionLog string
	debug      bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "spilink",
		Short: "Packetized byte stream over a polled full-duplex bus",
		Long: `spilink moves a byte stream over SPI (or a serial bridge) in fixed-size
frames, one exchange per tick. Use "run" to bridge stdin and stdout to a
device and "loopback" to exercise the stack without hardware.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = spilink.CloseSessionLog()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is "+DefaultPath()+")")
	flags.StringVarP(&a.device, "device", "d", "", "device path, e.g. /dev/spidev2.1 (auto-detect if empty)")
	flags.StringVarP(&a.transport, "transport", "t", "", "transport: spi or uart (guessed from the path if empty)")
	flags.StringVarP(&a.output, "output", "o", "text", "output format: text or yaml")
	flags.StringVar(&a.sessionLog, "session-log", "", "directory for a timestamped debug session log")
	flags.BoolVar(&a.debug, "debug", false, "enable debug output on stderr")

	root.AddCommand(
		newRunCmd(a),
		newLoopbackCmd(a),
		newDetectCmd(a),
		newStatusCmd(a),
	)
	return root
}

// setup loads the config file and applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	path := a.cfgFile
	if path == "" {
		path = DefaultPath()
	}
	cfg, err := Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("device") {
		cfg.Device = a.device
	}
	if cmd.Flags().Changed("transport") {
		cfg.Transport = a.transport
	}
	if a.debug {
		cfg.Debug = true
	}
	if a.sessionLog != "" {
		cfg.SessionLogDir = a.sessionLog
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	if a.output != "text" && a.output != "yaml" {
		return fmt.Errorf("unknown output format %q", a.output)
	}

	if cfg.Debug {
		spilink.SetDebugEnabled(true)
	}
	if cfg.SessionLogDir != "" {
		logPath, err := spilink.InitSessionLog(cfg.SessionLogDir)
		if err != nil {
			return fmt.Errorf("failed to start session log: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "session log: %s\n", logPath)
	}

	a.cfg = cfg
	return nil
}

func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
