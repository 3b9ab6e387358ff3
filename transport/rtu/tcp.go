// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ffutop/hs321/internal/config"
)

const (
	tcpTimeout   = 10 * time.Second
	tcpFlushWait = time.Millisecond
)

// TCPPort carries RTU frames over a TCP stream, as offered by serial
// device servers. The connection is dialed on first use and redialed
// after an I/O error.
type TCPPort struct {
	Address      string
	Timeout      time.Duration
	PollInterval time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func openTCP(cfg config.SerialConfig) (Port, error) {
	p := &TCPPort{
		Address:      cfg.Device,
		Timeout:      tcpTimeout,
		PollInterval: cfg.PollInterval,
	}
	if err := p.Connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewConnPort wraps an accepted connection. It is never redialed.
func NewConnPort(conn net.Conn, pollInterval time.Duration) *TCPPort {
	return &TCPPort{Timeout: tcpTimeout, PollInterval: pollInterval, conn: conn}
}

// Connect dials the device server unless a connection is open.
func (p *TCPPort) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.connect()
	return err
}

// Read returns (0, nil) when nothing arrives within PollInterval.
func (p *TCPPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	conn, err := p.connect()
	p.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if err := conn.SetReadDeadline(time.Now().Add(p.PollInterval)); err != nil {
		p.fail(conn)
		return 0, err
	}
	n, err := conn.Read(b)
	if isTimeout(err) {
		return n, nil
	}
	if err != nil {
		p.fail(conn)
	}
	return n, err
}

func (p *TCPPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	conn, err := p.connect()
	p.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if err := conn.SetWriteDeadline(time.Now().Add(p.Timeout)); err != nil {
		p.fail(conn)
		return 0, err
	}
	n, err := conn.Write(b)
	if err != nil {
		p.fail(conn)
		return n, fmt.Errorf("failed to write to %s: %w", conn.RemoteAddr(), err)
	}
	return n, nil
}

// Drain is a no-op. The device server paces the bytes onto the line.
func (p *TCPPort) Drain() error {
	return nil
}

// ResetInputBuffer discards bytes already received on the stream.
func (p *TCPPort) ResetInputBuffer() error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return nil
	}

	buf := make([]byte, 256)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(tcpFlushWait)); err != nil {
			return err
		}
		n, err := conn.Read(buf)
		if isTimeout(err) || (err == nil && n == 0) {
			return nil
		}
		if err != nil {
			p.fail(conn)
			return err
		}
	}
}

// Close closes the connection.
func (p *TCPPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// connect ensures there is an active connection. Caller must hold the mutex.
func (p *TCPPort) connect() (net.Conn, error) {
	if p.conn != nil {
		return p.conn, nil
	}
	if p.Address == "" {
		return nil, net.ErrClosed
	}
	conn, err := net.DialTimeout("tcp", p.Address, p.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", p.Address, err)
	}
	p.conn = conn
	return conn, nil
}

// fail drops conn so the next call redials.
func (p *TCPPort) fail(conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == conn {
		p.conn.Close()
		p.conn = nil
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
