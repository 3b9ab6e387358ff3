// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package drivesim

import (
	"log/slog"

	"github.com/ffutop/hs321/drive"
	"github.com/ffutop/hs321/internal/config"
	"github.com/ffutop/hs321/internal/drivesim/persistence"
)

// Open creates a simulator whose registers live in the configured storage.
// The returned storage must be closed by the caller.
func Open(cfg config.SimulatorConfig, slave byte) (*Simulator, persistence.Storage) {
	var storage persistence.Storage
	switch cfg.Persistence.Type {
	case "file":
		slog.Info("Initializing simulator with file persistence", "path", cfg.Persistence.Path)
		storage = persistence.NewFileStorage(cfg.Persistence.Path)
	case "mmap":
		slog.Info("Initializing simulator with MMAP persistence", "path", cfg.Persistence.Path)
		storage = persistence.NewMmapStorage(cfg.Persistence.Path)
	case "sqlite":
		slog.Info("Initializing simulator with SQLite persistence", "path", cfg.Persistence.Path)
		storage = persistence.NewSQLiteStorage(cfg.Persistence.Path)
	default:
		slog.Info("Initializing simulator with memory storage (non-persistent)")
		storage = persistence.NewMemoryStorage()
	}

	m, err := storage.Load()
	if err != nil {
		slog.Error("Failed to load persistence data, starting with fresh model", "err", err)
		slog.Warn("Falling back to MemoryStorage")
		storage = persistence.NewMemoryStorage()
		m, _ = storage.Load()
	}

	sim := NewSimulator(m, storage)
	// FC.02 is never zero on a configured drive.
	if m.Get(drive.BuildAddress(drive.GroupFC, 2)) == 0 {
		sim.SeedCommSettings(slave)
	}
	return sim, storage
}
