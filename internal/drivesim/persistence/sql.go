// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ffutop/hs321/internal/drivesim/model"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

const upsertRegister = "INSERT INTO drive_registers (address, value) VALUES (?, ?) ON CONFLICT(address) DO UPDATE SET value=excluded.value"

// SQLStorage keeps the parameter registers in a SQL table, one row per
// register that was ever non-zero. Volatile registers are not stored.
type SQLStorage struct {
	driver string
	dsn    string
	db     *sql.DB
	model  *model.DataModel
}

// NewSQLStorage creates a new SQLStorage.
func NewSQLStorage(driver, dsn string) *SQLStorage {
	return &SQLStorage{
		driver: driver,
		dsn:    dsn,
	}
}

// NewSQLiteStorage stores the registers in the SQLite database at path.
func NewSQLiteStorage(path string) *SQLStorage {
	return NewSQLStorage("sqlite", path)
}

// Load connects to the DB and loads the data.
func (s *SQLStorage) Load() (*model.DataModel, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	s.db = db

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	m := model.NewDataModel()
	s.model = m

	rows, err := db.Query("SELECT address, value FROM drive_registers")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to query registers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr, val int
		if err := rows.Scan(&addr, &val); err != nil {
			continue
		}
		if addr < 0 || addr >= parameterEnd {
			continue
		}
		m.Registers[addr] = uint16(val)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load registers: %w", err)
	}

	return m, nil
}

func (s *SQLStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS drive_registers (
		address INTEGER PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Save writes every non-zero parameter register in one transaction.
func (s *SQLStorage) Save(m *model.DataModel) error {
	if s.db == nil {
		return errNotLoaded
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for addr, val := range m.Registers[:parameterEnd] {
		if val == 0 {
			continue
		}
		if _, err := tx.Exec(upsertRegister, addr, int64(val)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save register %d: %w", addr, err)
		}
	}
	return tx.Commit()
}

// OnWrite upserts the written parameter registers.
func (s *SQLStorage) OnWrite(address, quantity uint16) {
	if s.db == nil || s.model == nil || !retentive(address, quantity) {
		return
	}
	for i := 0; i < int(quantity); i++ {
		addr := int(address) + i
		if addr >= parameterEnd {
			break
		}
		val := int64(s.model.Get(uint16(addr)))
		if _, err := s.db.Exec(upsertRegister, addr, val); err != nil {
			slog.Error("Failed to persist register", "addr", addr, "err", err)
		}
	}
}

func (s *SQLStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
