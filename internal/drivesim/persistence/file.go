// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ffutop/hs321/internal/drivesim/model"
)

// FileStorage keeps the register image in a plain file. Parameter writes
// are written through and synced; volatile registers reach the file only on
// Save.
//
// Layout: 65536 registers of 2 bytes each in host byte order, 131072 bytes.
type FileStorage struct {
	path string
	file *os.File
	data []byte
}

// NewFileStorage creates a new FileStorage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path: path,
	}
}

// Load reads the register image, creating the file if necessary.
func (fs *FileStorage) Load() (*model.DataModel, error) {
	f, err := os.OpenFile(fs.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open register image %s: %w", fs.path, err)
	}

	if err := ensureImageSize(f); err != nil {
		f.Close()
		return nil, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	fs.file = f
	fs.data = data

	return mapBytesToModel(data), nil
}

// Save flushes the whole image to disk.
func (fs *FileStorage) Save(m *model.DataModel) error {
	return fs.sync(0, len(fs.data))
}

// OnWrite writes the touched registers through after a parameter write.
func (fs *FileStorage) OnWrite(address, quantity uint16) {
	if !retentive(address, quantity) {
		return
	}
	start := int(address) * 2
	end := start + int(quantity)*2
	if err := fs.sync(start, end); err != nil {
		slog.Error("Failed to sync register image", "path", fs.path, "address", address, "err", err)
	}
}

func (fs *FileStorage) sync(start, end int) error {
	if fs.data == nil || fs.file == nil {
		return nil
	}
	if end > len(fs.data) {
		end = len(fs.data)
	}
	if _, err := fs.file.WriteAt(fs.data[start:end], int64(start)); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := fs.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file to disk: %w", err)
	}
	return nil
}

// Close the file.
func (fs *FileStorage) Close() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}
