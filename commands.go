// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ffutop/hs321/drive"
	"github.com/ffutop/hs321/internal/drivesim"
	"github.com/ffutop/hs321/internal/metrics"
	"github.com/ffutop/hs321/internal/monitor"
	"github.com/ffutop/hs321/transport/rtu"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <group> <sub> [count]",
		Short: "Read parameters starting at <group>.<sub>",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, sub, err := parseParameter(args[0], args[1])
			if err != nil {
				return err
			}
			count := 1
			if len(args) == 3 {
				if count, err = strconv.Atoi(args[2]); err != nil {
					return fmt.Errorf("invalid count %q: %w", args[2], err)
				}
			}
			return withMaster(cmd, func(ctx context.Context, m *drive.Master) error {
				values, err := m.ReadGroup(ctx, group, sub, count)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), outputFormat, newRegisterResult(group, sub, values))
			})
		},
	}
}

func newWriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write <group> <sub> <value>...",
		Short: "Write parameters starting at <group>.<sub>",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, sub, err := parseParameter(args[0], args[1])
			if err != nil {
				return err
			}
			values, err := parseValues(args[2:])
			if err != nil {
				return err
			}
			return withMaster(cmd, func(ctx context.Context, m *drive.Master) error {
				if err := m.WriteGroup(ctx, group, sub, values...); err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), outputFormat, newRegisterResult(group, sub, values))
			})
		},
	}
}

func newFaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fault",
		Short: "Read the current fault code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMaster(cmd, func(ctx context.Context, m *drive.Master) error {
				code, err := m.ReadFaultCode(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), outputFormat, faultResult{Code: uint16(code), Fault: code.String()})
			})
		},
	}
}

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Read the running state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMaster(cmd, func(ctx context.Context, m *drive.Master) error {
				state, err := m.ReadRunningState(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), outputFormat, stateResult{Value: uint16(state), State: state.String()})
			})
		},
	}
}

func newControlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "control <command>",
		Short: "Send a control command (forward-run, reverse-run, forward-jog, reverse-jog, free-stop, decelerate-stop, fault-reset)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := drive.ParseCommand(args[0])
			if err != nil {
				return err
			}
			return withMaster(cmd, func(ctx context.Context, m *drive.Master) error {
				if err := m.WriteControlCommand(ctx, command); err != nil {
					return err
				}
				slog.Info("Command sent", "command", command)
				return nil
			})
		},
	}
}

func newCommCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comm",
		Short: "Read the communication settings (FC.00-FC.05)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMaster(cmd, func(ctx context.Context, m *drive.Master) error {
				s, err := m.ReadCommunicationSettings(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), outputFormat, newCommResult(s))
			})
		},
	}
}

func newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Poll the drive and publish snapshots to MQTT or stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			m, cleanup, err := openMaster(cfg, metrics.NewObserver(reg))
			if err != nil {
				return err
			}
			defer cleanup()

			if cfg.Metrics.Address != "" {
				srv := serveMetrics(cfg.Metrics.Address, reg)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
			}

			var pub monitor.Publisher
			if cfg.MQTT.Broker != "" {
				mp := monitor.NewMQTTPublisher(cfg.MQTT)
				if err := mp.Connect(ctx); err != nil {
					return err
				}
				defer mp.Close()
				pub = mp
			} else {
				out := cmd.OutOrStdout()
				pub = monitor.PublisherFunc(func(ctx context.Context, s monitor.Snapshot) error {
					return render(out, outputFormat, s)
				})
			}

			slog.Info("Starting monitor", "interval", cfg.Monitor.Interval, "monitoring_count", cfg.Monitor.MonitoringCount)
			p := &monitor.Poller{
				Drive:           m,
				Publisher:       pub,
				Interval:        cfg.Monitor.Interval,
				MonitoringCount: cfg.Monitor.MonitoringCount,
			}
			err = p.Run(ctx)
			slog.Info("Shutting down...")
			return err
		},
	}
}

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Act as an HS321 drive on the serial port, or listen for RTU over TCP with the tcp backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Serial.Backend == rtu.BackendSim {
				return errors.New("simulate needs a real backend (gridx, bugst or tcp)")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sim, storage := drivesim.Open(cfg.Simulator, byte(cfg.Slave))
			defer func() {
				if err := storage.Save(sim.Model()); err != nil {
					slog.Error("Failed to save simulator registers", "err", err)
				}
				storage.Close()
			}()

			slog.Info("Simulating drive", "device", cfg.Serial.Device, "slave", cfg.Slave)
			if cfg.Serial.Backend == rtu.BackendTCP {
				l := drivesim.NewListener(cfg.Serial.Device)
				l.PollInterval = cfg.Serial.PollInterval
				return l.ListenAndServe(ctx, byte(cfg.Slave), sim)
			}

			port, err := rtu.OpenPort(cfg.Serial)
			if err != nil {
				return err
			}
			defer port.Close()

			pin, err := rtu.OpenDirection(cfg.Direction, port)
			if err != nil {
				return err
			}
			if c, ok := pin.(io.Closer); ok {
				defer c.Close()
			}

			err = drivesim.Serve(ctx, port, pin, byte(cfg.Slave), sim)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// withMaster runs fn against a freshly opened master and closes it again.
func withMaster(cmd *cobra.Command, fn func(ctx context.Context, m *drive.Master) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, cleanup, err := openMaster(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer m.Close()

	return fn(ctx, m)
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("Serving metrics", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", "err", err)
			os.Exit(1)
		}
	}()
	return srv
}

func parseParameter(groupArg, subArg string) (drive.Group, uint8, error) {
	group, err := drive.ParseGroup(groupArg)
	if err != nil {
		return 0, 0, err
	}
	sub, err := strconv.ParseUint(subArg, 0, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid sub-index %q: %w", subArg, err)
	}
	return group, uint8(sub), nil
}

func parseValues(args []string) ([]uint16, error) {
	values := make([]uint16, len(args))
	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", arg, err)
		}
		values[i] = uint16(v)
	}
	return values, nil
}
