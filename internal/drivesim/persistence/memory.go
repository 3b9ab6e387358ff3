// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import "github.com/ffutop/hs321/internal/drivesim/model"

// MemoryStorage forgets everything on exit.
type MemoryStorage struct{}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (*MemoryStorage) Load() (*model.DataModel, error) {
	return model.NewDataModel(), nil
}

func (*MemoryStorage) Save(*model.DataModel) error { return nil }

func (*MemoryStorage) OnWrite(address, quantity uint16) {}

func (*MemoryStorage) Close() error { return nil }
