// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package drivesim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ffutop/hs321/transport/rtu"
)

// Listener serves the simulator to RTU over TCP clients, the way a serial
// device server exposes a drive.
type Listener struct {
	Address      string
	PollInterval time.Duration

	mu       sync.Mutex
	listener net.Listener
}

// NewListener creates a listener for address.
func NewListener(address string) *Listener {
	return &Listener{Address: address, PollInterval: 2 * time.Millisecond}
}

// Addr returns the bound address once ListenAndServe is running.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// ListenAndServe accepts connections until ctx is done or Close is called.
// Each connection is an independent RTU stream answered by sim.
func (l *Listener) ListenAndServe(ctx context.Context, slave byte, sim *Simulator) error {
	listener, err := net.Listen("tcp", l.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.Address, err)
	}
	l.mu.Lock()
	l.listener = listener
	l.mu.Unlock()
	slog.Info("Simulator listening for RTU over TCP", "addr", listener.Addr())

	// Connections are cancelled before they are waited for, whether the
	// loop ends through ctx or through Close.
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("Failed to accept connection", "err", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.handleConnection(ctx, conn, slave, sim)
		}()
	}
}

// Close closes the listener.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}

func (l *Listener) handleConnection(ctx context.Context, conn net.Conn, slave byte, sim *Simulator) {
	port := rtu.NewConnPort(conn, l.PollInterval)
	defer port.Close()
	slog.Info("RTU over TCP client connected", "addr", conn.RemoteAddr())

	if err := Serve(ctx, port, rtu.NopPin{}, slave, sim); err != nil {
		slog.Debug("RTU over TCP client disconnected", "addr", conn.RemoteAddr(), "err", err)
	}
}
