// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package persistence keeps the simulated drive's register image across
// restarts.
package persistence

import (
	"github.com/ffutop/hs321/internal/drivesim/model"
)

// Storage holds the register image of one simulated drive.
type Storage interface {
	// Load returns the stored image, or a zeroed one on first use.
	Load() (*model.DataModel, error)

	// Save checkpoints the whole image.
	Save(m *model.DataModel) error

	// OnWrite is called after the simulator changed quantity registers
	// starting at address. Only parameter writes need to be durable.
	OnWrite(address, quantity uint16)

	Close() error
}
