// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"

	"github.com/ffutop/hs321/internal/config"
)

const (
	DirectionNone = "none"
	DirectionRTS  = "rts"
	DirectionDTR  = "dtr"
	DirectionGPIO = "gpio"
)

// NopPin is used when the transceiver switches direction by itself.
type NopPin struct{}

func (NopPin) Set(Direction) error { return nil }

// LinePin drives a modem control line of the serial port.
type LinePin struct {
	name      string
	set       func(bool) error
	activeLow bool
}

// NewLinePin wraps a level setter such as SetRTS.
func NewLinePin(name string, set func(bool) error, activeLow bool) *LinePin {
	return &LinePin{name: name, set: set, activeLow: activeLow}
}

func (p *LinePin) Set(d Direction) error {
	level := d == Transmit
	if p.activeLow {
		level = !level
	}
	if err := p.set(level); err != nil {
		return fmt.Errorf("failed to set %s to %v: %w", p.name, d, err)
	}
	return nil
}

type rtsSetter interface {
	SetRTS(bool) error
}

type dtrSetter interface {
	SetDTR(bool) error
}

// OpenDirection builds the direction pin selected by cfg. RTS and DTR
// require a port that exposes the modem control lines.
func OpenDirection(cfg config.DirectionConfig, port any) (DirectionPin, error) {
	switch cfg.Type {
	case DirectionNone, "":
		return NopPin{}, nil
	case DirectionRTS:
		s, ok := port.(rtsSetter)
		if !ok {
			return nil, errors.New("serial backend cannot drive RTS")
		}
		return NewLinePin("RTS", s.SetRTS, cfg.ActiveLow), nil
	case DirectionDTR:
		s, ok := port.(dtrSetter)
		if !ok {
			return nil, errors.New("serial backend cannot drive DTR")
		}
		return NewLinePin("DTR", s.SetDTR, cfg.ActiveLow), nil
	case DirectionGPIO:
		return OpenGPIO(cfg.Chip, cfg.GPIO, cfg.ActiveLow)
	default:
		return nil, fmt.Errorf("unsupported direction type: %s", cfg.Type)
	}
}
