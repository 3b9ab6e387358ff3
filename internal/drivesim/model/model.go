// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"fmt"
	"sync"
)

const (
	MaxAddress = 65535
)

// DataModel is the register image of a simulated drive.
// It uses a flat memory model covering the full 16-bit address space.
type DataModel struct {
	mu sync.RWMutex

	// Holding registers, indexed by register address.
	Registers []uint16
}

// NewDataModel creates a new memory model initialized to zero.
func NewDataModel() *DataModel {
	return &DataModel{
		Registers: make([]uint16, MaxAddress+1),
	}
}

// Read returns a copy of quantity registers starting at address.
func (m *DataModel) Read(address, quantity uint16) ([]uint16, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}
	result := make([]uint16, quantity)
	copy(result, m.Registers[address:int(address)+int(quantity)])
	return result, nil
}

// Write stores values at consecutive registers starting at address.
func (m *DataModel) Write(address uint16, values []uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateRange(address, uint16(len(values))); err != nil {
		return err
	}
	if len(values) > MaxAddress {
		return fmt.Errorf("too many values: %d", len(values))
	}
	copy(m.Registers[address:], values)
	return nil
}

// Get returns a single register.
func (m *DataModel) Get(address uint16) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Registers[address]
}

// Set stores a single register.
func (m *DataModel) Set(address, value uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Registers[address] = value
}

func validateRange(address, quantity uint16) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	// address is 0-based.
	if int(address)+int(quantity) > MaxAddress+1 {
		return fmt.Errorf("address range out of bounds")
	}
	return nil
}
