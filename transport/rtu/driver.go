// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"
	"time"

	"github.com/ffutop/hs321/modbus"
	rtupacket "github.com/ffutop/hs321/modbus/rtu"
)

// idleBackoff keeps the receive loop from spinning on channels whose Read
// returns immediately.
const idleBackoff = 200 * time.Microsecond

// Driver owns the physical exchange on a half-duplex bus: line direction,
// transmission and timeout-bounded reception.
//
// Driver does no locking. Callers serialize Send/Receive pairs.
type Driver struct {
	ch       Channel
	pin      DirectionPin
	timeouts Timeouts
}

// NewDriver allocates a Driver. A nil pin is treated as a line driver that
// switches direction on its own.
func NewDriver(ch Channel, pin DirectionPin, timeouts Timeouts) *Driver {
	if pin == nil {
		pin = NopPin{}
	}
	return &Driver{ch: ch, pin: pin, timeouts: timeouts}
}

// Timeouts returns the timeout state the driver was built with.
func (d *Driver) Timeouts() Timeouts {
	return d.timeouts
}

// Release puts the line driver in receive mode.
func (d *Driver) Release() error {
	return d.pin.Set(Receive)
}

// Send transmits frame. The line is switched to transmit before the first
// byte and back to receive as soon as the last byte has left the wire.
func (d *Driver) Send(frame []byte) (err error) {
	if len(frame) == 0 {
		return &modbus.ArgumentError{Op: "send", Reason: "empty frame"}
	}
	if r, ok := d.ch.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return fmt.Errorf("failed to reset input buffer: %w", err)
		}
	}

	if err := d.pin.Set(Transmit); err != nil {
		return fmt.Errorf("failed to switch line to transmit: %w", err)
	}
	defer func() {
		if perr := d.pin.Set(Receive); perr != nil && err == nil {
			err = fmt.Errorf("failed to switch line to receive: %w", perr)
		}
	}()

	for written := 0; written < len(frame); {
		n, err := d.ch.Write(frame[written:])
		if err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
		if n == 0 {
			return errors.New("failed to write frame: short write")
		}
		written += n
	}
	if err := d.ch.Drain(); err != nil {
		return fmt.Errorf("failed to drain frame: %w", err)
	}
	return nil
}

// Receive collects exactly n bytes.
//
// The stall timeout fires when nothing arrives for longer than Stall; once
// the first byte is in, a gap longer than the scaled inter-character timeout
// ends the read early. On timeout the bytes received so far are returned
// together with a *modbus.TimeoutError.
func (d *Driver) Receive(n int) ([]byte, error) {
	if n <= 0 || n > rtupacket.MaxSize {
		return nil, &modbus.ArgumentError{Op: "receive", Reason: fmt.Sprintf("length %d out of range [1, %d]", n, rtupacket.MaxSize)}
	}

	buf := make([]byte, n)
	charTimeout := d.timeouts.InterCharFor(n)
	received := 0
	lastByte := time.Now()

	for received < n {
		k, err := d.ch.Read(buf[received:])
		if err != nil {
			return buf[:received], fmt.Errorf("failed to read response: %w", err)
		}
		now := time.Now()
		if k > 0 {
			received += k
			lastByte = now
			continue
		}

		idle := now.Sub(lastByte)
		if idle > d.timeouts.Stall {
			return buf[:received], &modbus.TimeoutError{Kind: modbus.Stall, Expected: n, Received: received}
		}
		if received > 0 && idle > charTimeout {
			return buf[:received], &modbus.TimeoutError{Kind: modbus.InterChar, Expected: n, Received: received}
		}
		time.Sleep(idleBackoff)
	}
	return buf, nil
}
