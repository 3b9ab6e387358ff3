// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/hs321/internal/config"
	"github.com/grid-x/serial"
	bugst "go.bug.st/serial"
)

const (
	BackendGridX = "gridx"
	BackendBugst = "bugst"
	BackendTCP   = "tcp"
	BackendSim   = "sim"
)

// OpenPort opens the serial device described by cfg with the selected
// backend. The tcp backend dials a serial device server at cfg.Device.
func OpenPort(cfg config.SerialConfig) (Port, error) {
	switch cfg.Backend {
	case BackendGridX:
		return openGridX(cfg)
	case BackendBugst, "":
		return openBugst(cfg)
	case BackendTCP:
		return openTCP(cfg)
	default:
		return nil, fmt.Errorf("unsupported serial backend: %s", cfg.Backend)
	}
}

func openBugst(cfg config.SerialConfig) (Port, error) {
	mode := &bugst.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		// Both lines idle low so an RTS/DTR driven transceiver starts in receive.
		InitialStatusBits: &bugst.ModemOutputBits{RTS: false, DTR: false},
	}
	switch cfg.Parity {
	case "E":
		mode.Parity = bugst.EvenParity
	case "O":
		mode.Parity = bugst.OddParity
	default:
		mode.Parity = bugst.NoParity
	}
	if cfg.StopBits == 2 {
		mode.StopBits = bugst.TwoStopBits
	} else {
		mode.StopBits = bugst.OneStopBit
	}

	port, err := bugst.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", cfg.Device, err)
	}
	if err := port.SetReadTimeout(cfg.PollInterval); err != nil {
		port.Close()
		return nil, fmt.Errorf("could not set read timeout on %s: %w", cfg.Device, err)
	}
	return port, nil
}

// serialPort adapts a grid-x serial port to Channel. The library has no
// drain primitive, so Drain waits out the transmit time of pending bytes.
type serialPort struct {
	// Serial port configuration.
	serial.Config

	mu sync.Mutex
	// port is platform-dependent data structure for serial port.
	port       io.ReadWriteCloser
	charTime   time.Duration
	drainUntil time.Time
}

func openGridX(cfg config.SerialConfig) (Port, error) {
	p := &serialPort{
		Config: serial.Config{
			Address:  cfg.Device,
			BaudRate: cfg.BaudRate,
			DataBits: cfg.DataBits,
			StopBits: cfg.StopBits,
			Parity:   cfg.Parity,
			Timeout:  cfg.PollInterval,
			RS485: serial.RS485Config{
				Enabled:            cfg.RS485.Enabled,
				DelayRtsBeforeSend: cfg.RS485.DelayRtsBeforeSend,
				DelayRtsAfterSend:  cfg.RS485.DelayRtsAfterSend,
				RtsHighDuringSend:  cfg.RS485.RtsHighDuringSend,
				RtsHighAfterSend:   cfg.RS485.RtsHighAfterSend,
				RxDuringTx:         cfg.RS485.RxDuringTx,
			},
		},
		charTime: characterTime(cfg.BaudRate, bitsPerChar(cfg)),
	}
	port, err := serial.Open(&p.Config)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", cfg.Device, err)
	}
	p.port = port
	return p, nil
}

func bitsPerChar(cfg config.SerialConfig) int {
	bits := 1 + cfg.DataBits + cfg.StopBits
	if cfg.Parity == "E" || cfg.Parity == "O" {
		bits++
	}
	return bits
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if errors.Is(err, serial.ErrTimeout) {
		return n, nil
	}
	return n, err
}

func (p *serialPort) Write(b []byte) (int, error) {
	n, err := p.port.Write(b)

	p.mu.Lock()
	now := time.Now()
	if p.drainUntil.Before(now) {
		p.drainUntil = now
	}
	p.drainUntil = p.drainUntil.Add(time.Duration(n) * p.charTime)
	p.mu.Unlock()
	return n, err
}

func (p *serialPort) Drain() error {
	p.mu.Lock()
	wait := time.Until(p.drainUntil)
	p.mu.Unlock()

	if wait > 0 {
		p.logf("modbus: waiting %v for transmit to drain", wait)
		time.Sleep(wait)
	}
	return nil
}

func (p *serialPort) Close() (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port != nil {
		err = p.port.Close()
		p.port = nil
	}
	return
}

func (p *serialPort) logf(format string, v ...interface{}) {
	slog.Debug(fmt.Sprintf(format, v...))
}
