// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ffutop/hs321/drive"
	"github.com/ffutop/hs321/internal/config"
	"github.com/ffutop/hs321/internal/drivesim"
	"github.com/ffutop/hs321/transport/rtu"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "hs321ctl",
		Short:         "Modbus RTU master for the HS321 motor drive",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Path to config file")
	flags.StringVarP(&outputFormat, "output", "o", formatText, "Output format (text, json, yaml)")
	flags.Int("slave", 1, "Drive slave address (1-247)")
	flags.String("device", "", "Serial device, e.g. /dev/ttyUSB0, or host:port for tcp")
	flags.Int("baud", 9600, "Baud rate")
	flags.String("backend", "bugst", "Serial backend (gridx, bugst, tcp, sim)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newReadCmd(),
		newWriteCmd(),
		newFaultCmd(),
		newStateCmd(),
		newControlCmd(),
		newCommCmd(),
		newMonitorCmd(),
		newSimulateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration with the persistent flags bound and
// installs the logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := checkFormat(outputFormat); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	setupLogger(cfg.Log)
	return cfg, nil
}

// openMaster opens the configured bus and returns an initialized master.
// The returned function releases everything that was opened.
func openMaster(cfg *config.Config, observers ...drive.Observer) (*drive.Master, func(), error) {
	timeouts, err := rtu.NewTimeouts(cfg.Serial.BaudRate)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Serial.StallTimeout > 0 {
		timeouts.Stall = cfg.Serial.StallTimeout
	}

	var (
		ch      rtu.Channel
		pin     rtu.DirectionPin
		closers []io.Closer
	)
	if cfg.Serial.Backend == rtu.BackendSim {
		sim, storage := drivesim.Open(cfg.Simulator, byte(cfg.Slave))
		lb := drivesim.NewLoopback(sim, byte(cfg.Slave))
		ch, pin = lb, rtu.NopPin{}
		closers = append(closers, lb, storage)
	} else {
		port, err := rtu.OpenPort(cfg.Serial)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, port)
		pin, err = rtu.OpenDirection(cfg.Direction, port)
		if err != nil {
			port.Close()
			return nil, nil, err
		}
		if c, ok := pin.(io.Closer); ok {
			closers = append(closers, c)
		}
		ch = port
	}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				slog.Warn("Failed to close", "err", err)
			}
		}
	}

	obs := drive.MultiObserver{drive.LogObserver{Logger: slog.Default()}}
	obs = append(obs, observers...)

	m := drive.New(rtu.NewDriver(ch, pin, timeouts), byte(cfg.Slave), drive.WithObserver(obs))
	if err := m.Begin(); err != nil {
		cleanup()
		return nil, nil, err
	}
	slog.Debug("Master ready", "slave", cfg.Slave, "backend", cfg.Serial.Backend,
		"stall", timeouts.Stall, "inter_char", timeouts.InterChar)
	return m, cleanup, nil
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	// stdout carries command output
	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file, falling back to stderr: %v\n", err)
			handler = slog.NewTextHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
