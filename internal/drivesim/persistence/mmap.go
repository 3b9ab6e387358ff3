// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/ffutop/hs321/internal/drivesim/model"
)

// MmapStorage maps the register image straight into the model, so every
// write lands in the page cache. Parameter writes are additionally flushed
// with msync.
type MmapStorage struct {
	path string
	file *os.File
	data mmap.MMap
}

// NewMmapStorage creates a new MmapStorage.
func NewMmapStorage(path string) *MmapStorage {
	return &MmapStorage{
		path: path,
	}
}

// Load maps the image file, creating and sizing it on first use.
func (ms *MmapStorage) Load() (*model.DataModel, error) {
	f, err := os.OpenFile(ms.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open register image %s: %w", ms.path, err)
	}

	if err := ensureImageSize(f); err != nil {
		f.Close()
		return nil, err
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map register image %s: %w", ms.path, err)
	}
	ms.file = f
	ms.data = data

	return mapBytesToModel(data), nil
}

// Save flushes the whole mapping.
func (ms *MmapStorage) Save(m *model.DataModel) error {
	if ms.data == nil {
		return errNotLoaded
	}
	return ms.data.Flush()
}

// OnWrite flushes after a parameter write.
func (ms *MmapStorage) OnWrite(address, quantity uint16) {
	if ms.data == nil || !retentive(address, quantity) {
		return
	}
	if err := ms.data.Flush(); err != nil {
		slog.Error("Failed to flush register image", "path", ms.path, "address", address, "err", err)
	}
}

// Close unmaps and closes the file. The model returned by Load must not
// be used afterwards.
func (ms *MmapStorage) Close() error {
	var errs []error
	if ms.data != nil {
		errs = append(errs, ms.data.Unmap())
		ms.data = nil
	}
	if ms.file != nil {
		errs = append(errs, ms.file.Close())
		ms.file = nil
	}
	return errors.Join(errs...)
}
