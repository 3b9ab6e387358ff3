// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

//go:build !linux

package rtu

import "errors"

// GPIOPin is only available on Linux.
type GPIOPin struct{}

func OpenGPIO(chip string, offset int, activeLow bool) (*GPIOPin, error) {
	return nil, errors.New("gpio direction pin requires linux")
}

func (*GPIOPin) Set(Direction) error { return nil }

func (*GPIOPin) Close() error { return nil }
