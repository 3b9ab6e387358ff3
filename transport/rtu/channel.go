// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import "io"

// Channel is the byte-oriented duplex link to the bus.
//
// Read must not block for longer than the channel's own poll interval; it
// returns (0, nil) when no byte arrived in that time. Drain blocks until
// every written byte has physically left the transmitter.
type Channel interface {
	io.ReadWriter
	Drain() error
}

// Port is a Channel backed by an operating system device.
type Port interface {
	Channel
	io.Closer
}

// inputResetter is implemented by channels that can discard stale input.
type inputResetter interface {
	ResetInputBuffer() error
}

// Direction is the state of the half-duplex line driver.
type Direction int

const (
	// Receive releases the bus (driver enable low).
	Receive Direction = iota
	// Transmit drives the bus (driver enable high).
	Transmit
)

func (d Direction) String() string {
	if d == Transmit {
		return "transmit"
	}
	return "receive"
}

// DirectionPin controls the transmit enable of the RS-485 line driver.
type DirectionPin interface {
	Set(d Direction) error
}
