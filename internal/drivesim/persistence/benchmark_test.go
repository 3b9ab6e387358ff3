// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"path/filepath"
	"testing"

	"github.com/ffutop/hs321/internal/drivesim/model"
)

// BenchmarkMemoryStorage_OnWrite benchmarks the OnWrite hook for MemoryStorage.
func BenchmarkMemoryStorage_OnWrite(b *testing.B) {
	ms := NewMemoryStorage()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ms.OnWrite(0x0C02, 1)
	}
}

func BenchmarkFileStorage_OnWrite(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench_file.bin")
	fs := NewFileStorage(path)
	m, err := fs.Load()
	if err != nil {
		b.Fatalf("Failed to load file storage: %v", err)
	}
	defer fs.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Set(0x2000, uint16(i))
		fs.OnWrite(0x0C02, 1)
	}
}

// BenchmarkMmapStorage_OnWrite benchmarks the OnWrite hook for MmapStorage (msync).
func BenchmarkMmapStorage_OnWrite(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench_mmap.bin")
	ms := NewMmapStorage(path)
	m, err := ms.Load()
	if err != nil {
		b.Fatalf("Failed to load mmap storage: %v", err)
	}
	defer ms.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Set(0x2000, uint16(i))
		ms.OnWrite(0x0C02, 1)
	}
}

func BenchmarkSQLiteStorage_OnWrite(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.db")
	ss := NewSQLiteStorage(path)
	m, err := ss.Load()
	if err != nil {
		b.Fatalf("Failed to load sqlite storage: %v", err)
	}
	defer ss.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Set(0x2000, uint16(i))
		ss.OnWrite(0x0C02, 1)
	}
}

// BenchmarkMmapStorage_Load covers file open, fstat and mmap system calls.
func BenchmarkMmapStorage_Load(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench_mmap_load.bin")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ms := NewMmapStorage(path)
		if _, err := ms.Load(); err != nil {
			b.Fatalf("Load failed: %v", err)
		}
		ms.Close()
	}
}

// BenchmarkDataModel_Write is the in-memory baseline.
func BenchmarkDataModel_Write(b *testing.B) {
	m := model.NewDataModel()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Set(0x2000, uint16(i))
	}
}
