// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"
	"time"
)

const (
	// DefaultStallTimeout is the no-activity ceiling of a receive.
	DefaultStallTimeout = 2000 * time.Millisecond
)

// Timeouts is computed once when the master is set up.
type Timeouts struct {
	// Stall is reset on every received byte.
	Stall time.Duration
	// InterChar is 3.5 character periods (35 bit times) at the configured baud rate.
	InterChar time.Duration
}

// NewTimeouts derives the inter-character timeout from baudRate.
func NewTimeouts(baudRate int) (Timeouts, error) {
	if baudRate <= 0 {
		return Timeouts{}, fmt.Errorf("invalid baud rate: %d", baudRate)
	}
	return Timeouts{
		Stall:     DefaultStallTimeout,
		InterChar: time.Duration(35 * int64(time.Second) / int64(baudRate)),
	}, nil
}

// InterCharFor scales the inter-character timeout by the number of bytes
// expected in one receive, rounded up to a whole millisecond.
func (t Timeouts) InterCharFor(n int) time.Duration {
	d := t.InterChar * time.Duration(n)
	if rem := d % time.Millisecond; rem != 0 {
		d += time.Millisecond - rem
	}
	return d
}

// characterTime returns how long one character takes on the wire.
func characterTime(baudRate, bitsPerChar int) time.Duration {
	if baudRate <= 0 {
		return 0
	}
	return time.Duration(int64(bitsPerChar) * int64(time.Second) / int64(baudRate))
}
