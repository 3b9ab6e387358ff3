// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package drivesim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/hs321/transport/rtu"
)

// pollInterval is how long an idle PipeEnd read waits before returning.
const pollInterval = time.Millisecond

var errPipeClosed = errors.New("drivesim: pipe closed")

type byteQueue struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
}

// PipeEnd is one side of an in-memory serial line. Reads return (0, nil)
// after a short poll when no byte is pending, like a serial port with a
// read timeout.
type PipeEnd struct {
	rx *byteQueue
	tx *byteQueue
}

// Pipe returns two connected ends: bytes written to one are read from the other.
func Pipe() (*PipeEnd, *PipeEnd) {
	a, b := &byteQueue{}, &byteQueue{}
	return &PipeEnd{rx: a, tx: b}, &PipeEnd{rx: b, tx: a}
}

func (p *PipeEnd) Read(b []byte) (int, error) {
	p.rx.mu.Lock()
	if len(p.rx.buf) > 0 {
		n := copy(b, p.rx.buf)
		p.rx.buf = p.rx.buf[n:]
		p.rx.mu.Unlock()
		return n, nil
	}
	closed := p.rx.closed
	p.rx.mu.Unlock()

	if closed {
		return 0, io.EOF
	}
	time.Sleep(pollInterval)
	return 0, nil
}

func (p *PipeEnd) Write(b []byte) (int, error) {
	p.tx.mu.Lock()
	defer p.tx.mu.Unlock()
	if p.tx.closed {
		return 0, errPipeClosed
	}
	p.tx.buf = append(p.tx.buf, b...)
	return len(b), nil
}

// Drain returns immediately, written bytes are visible to the peer at once.
func (p *PipeEnd) Drain() error {
	return nil
}

// ResetInputBuffer discards pending input.
func (p *PipeEnd) ResetInputBuffer() error {
	p.rx.mu.Lock()
	defer p.rx.mu.Unlock()
	p.rx.buf = nil
	return nil
}

// Close shuts down both directions.
func (p *PipeEnd) Close() error {
	for _, q := range []*byteQueue{p.rx, p.tx} {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
	}
	return nil
}

// Loopback is a master-side serial line with a simulated drive attached.
type Loopback struct {
	*PipeEnd

	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoopback starts serving sim at slave on an in-memory line.
func NewLoopback(sim *Simulator, slave byte) *Loopback {
	master, slaveEnd := Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loopback{PipeEnd: master, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(l.done)
		if err := Serve(ctx, slaveEnd, rtu.NopPin{}, slave, sim); err != nil {
			slog.Error("Simulated drive stopped", "err", err)
		}
	}()
	return l
}

// Close stops the simulated drive and closes the line.
func (l *Loopback) Close() error {
	l.cancel()
	<-l.done
	return l.PipeEnd.Close()
}
