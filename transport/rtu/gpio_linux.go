// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const gpioConsumer = "hs321"

// gpioLine is the part of *gpiocdev.Line the pin uses.
type gpioLine interface {
	SetValue(value int) error
	Close() error
}

// GPIOPin drives a GPIO line through the Linux GPIO character device.
// Values are logical: active-low inversion is left to the kernel.
type GPIOPin struct {
	chip   string
	offset int
	line   gpioLine
}

// OpenGPIO requests offset on chip (e.g. "gpiochip0") as an output that
// starts at the receive level.
func OpenGPIO(chip string, offset int, activeLow bool) (*GPIOPin, error) {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.WithConsumer(gpioConsumer),
		gpiocdev.AsOutput(0),
	}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to request gpio %s:%d: %w", chip, offset, err)
	}
	return newGPIOPin(chip, offset, line), nil
}

func newGPIOPin(chip string, offset int, line gpioLine) *GPIOPin {
	return &GPIOPin{chip: chip, offset: offset, line: line}
}

func (p *GPIOPin) Set(d Direction) error {
	v := 0
	if d == Transmit {
		v = 1
	}
	if err := p.line.SetValue(v); err != nil {
		return fmt.Errorf("failed to set gpio %s:%d to %v: %w", p.chip, p.offset, d, err)
	}
	return nil
}

func (p *GPIOPin) Close() error {
	return p.line.Close()
}
