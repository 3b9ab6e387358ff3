// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"path/filepath"
	"testing"
)

func TestStorage_Reload(t *testing.T) {
	tests := []struct {
		name string
		open func(dir string) Storage
	}{
		{"File", func(dir string) Storage { return NewFileStorage(filepath.Join(dir, "regs.bin")) }},
		{"Mmap", func(dir string) Storage { return NewMmapStorage(filepath.Join(dir, "regs.bin")) }},
		{"SQLite", func(dir string) Storage { return NewSQLiteStorage(filepath.Join(dir, "regs.db")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()

			s := tt.open(dir)
			m, err := s.Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if err := m.Write(0x0C00, []uint16{3, 0, 7}); err != nil {
				t.Fatal(err)
			}
			s.OnWrite(0x0C00, 3)
			m.Set(0x3000, 1)
			s.OnWrite(0x3000, 1)
			if err := s.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			s = tt.open(dir)
			defer s.Close()
			m, err = s.Load()
			if err != nil {
				t.Fatalf("reload failed: %v", err)
			}
			got, err := m.Read(0x0C00, 3)
			if err != nil {
				t.Fatal(err)
			}
			if got[0] != 3 || got[1] != 0 || got[2] != 7 {
				t.Errorf("FC block = %v, want [3 0 7]", got)
			}
			if v := m.Get(0x3000); v != 0 && tt.name != "Mmap" {
				t.Errorf("volatile run state persisted as %d", v)
			}
		})
	}
}

func TestSQLStorage_Save(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.db")
	s := NewSQLiteStorage(path)
	m, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	m.Set(0x0105, 12)
	m.Set(0x8000, 12)
	if err := s.Save(m); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.Close()

	s = NewSQLiteStorage(path)
	defer s.Close()
	m, err = s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if v := m.Get(0x0105); v != 12 {
		t.Errorf("F1.05 = %d, want 12", v)
	}
	if v := m.Get(0x8000); v != 0 {
		t.Errorf("volatile fault register persisted as %d", v)
	}
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	m, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	m.Set(1, 1)
	s.OnWrite(1, 1)
	if err := s.Save(m); err != nil {
		t.Error(err)
	}
}

func TestRetentive(t *testing.T) {
	tests := []struct {
		address, quantity uint16
		want              bool
	}{
		{0x0000, 1, true},
		{0x0C00, 6, true},
		{0x0DFF, 1, true},
		{0x0E00, 1, false},
		{0x2000, 1, false},
		{0x3000, 1, false},
		{0x7000, 8, false},
		{0x8000, 1, false},
		{0x0100, 0, false},
	}
	for _, tt := range tests {
		if got := retentive(tt.address, tt.quantity); got != tt.want {
			t.Errorf("retentive(0x%04X, %d) = %v, want %v", tt.address, tt.quantity, got, tt.want)
		}
	}
}
