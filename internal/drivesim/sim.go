// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package drivesim simulates an HS321 drive as a Modbus RTU slave.
package drivesim

import (
	"encoding/binary"
	"sync"

	"github.com/ffutop/hs321/drive"
	"github.com/ffutop/hs321/internal/drivesim/model"
	"github.com/ffutop/hs321/internal/drivesim/persistence"
	"github.com/ffutop/hs321/modbus"
	rtupacket "github.com/ffutop/hs321/modbus/rtu"
)

// Simulator implements the drive's register behaviour on top of a DataModel.
type Simulator struct {
	// mu serializes requests so command side effects apply atomically.
	mu      sync.Mutex
	model   *model.DataModel
	storage persistence.Storage
}

// NewSimulator creates a new Simulator. A nil storage keeps the registers
// in memory only.
func NewSimulator(m *model.DataModel, storage persistence.Storage) *Simulator {
	if storage == nil {
		storage = persistence.NewMemoryStorage()
	}
	s := &Simulator{model: m, storage: storage}
	// The drive powers up stopped whatever the image held.
	s.set(drive.RegisterRunState, uint16(drive.StateStopped))
	return s
}

// Model exposes the register image.
func (s *Simulator) Model() *model.DataModel {
	return s.model
}

// SeedCommSettings writes factory communication settings for the given
// slave address into FC.00 through FC.05.
func (s *Simulator) SeedCommSettings(slave byte) {
	values := []uint16{3, 0, uint16(slave), 10, 0, 1}
	address := drive.BuildAddress(drive.GroupFC, 0)
	_ = s.model.Write(address, values)
	s.storage.OnWrite(address, uint16(len(values)))
}

// SetFault latches a fault code as the drive would on a trip.
func (s *Simulator) SetFault(code drive.FaultCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(drive.RegisterFault, uint16(code))
	if code != 0 {
		s.set(drive.RegisterRunState, uint16(drive.StateStopped))
	}
}

// RunState returns the current run state.
func (s *Simulator) RunState() drive.RunState {
	return drive.RunState(s.model.Get(drive.RegisterRunState))
}

// Process executes the Modbus Function Code against the register model.
func (s *Simulator) Process(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch req.FunctionCode {
	case modbus.FuncCodeReadHoldingRegisters:
		return s.handleReadHoldingRegisters(req)
	case modbus.FuncCodeWriteSingleRegister:
		return s.handleWriteSingleRegister(req)
	case modbus.FuncCodeWriteMultipleRegisters:
		return s.handleWriteMultipleRegisters(req)
	default:
		return s.exception(req.FunctionCode, modbus.ExceptionCodeIllegalFunction), nil
	}
}

func (s *Simulator) handleReadHoldingRegisters(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) != 4 {
		return s.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	if quantity < 1 || quantity > rtupacket.MaxReadQuantity {
		return s.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}

	values, err := s.model.Read(address, quantity)
	if err != nil {
		return s.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}

	respData := make([]byte, 1+2*len(values))
	respData[0] = byte(2 * len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(respData[1+2*i:], v)
	}

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}, nil
}

func (s *Simulator) handleWriteSingleRegister(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) != 4 {
		return s.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	if address == drive.RegisterControl {
		if !s.applyCommand(drive.Command(value)) {
			return s.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
		}
	}
	s.set(address, value)

	return req, nil // Echo request
}

func (s *Simulator) handleWriteMultipleRegisters(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) < 5 {
		return s.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])
	byteCount := req.Data[4]

	if quantity < 1 || quantity > rtupacket.MaxWriteQuantity {
		return s.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	if int(byteCount) != 2*int(quantity) || len(req.Data)-5 != int(byteCount) {
		return s.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}

	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(req.Data[5+2*i:])
	}
	if err := s.model.Write(address, values); err != nil {
		return s.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}
	s.storage.OnWrite(address, quantity)

	respData := make([]byte, 4)
	binary.BigEndian.PutUint16(respData[0:2], address)
	binary.BigEndian.PutUint16(respData[2:4], quantity)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}, nil
}

// applyCommand updates the run state for a control command and reports
// whether the command is known.
func (s *Simulator) applyCommand(cmd drive.Command) bool {
	switch cmd {
	case drive.ForwardRun, drive.ForwardJog:
		if s.model.Get(drive.RegisterFault) != 0 {
			return true
		}
		s.set(drive.RegisterRunState, uint16(drive.StateForward))
	case drive.ReverseRun, drive.ReverseJog:
		if s.model.Get(drive.RegisterFault) != 0 {
			return true
		}
		s.set(drive.RegisterRunState, uint16(drive.StateReverse))
	case drive.FreeStop, drive.DecelerateStop:
		s.set(drive.RegisterRunState, uint16(drive.StateStopped))
	case drive.FaultReset:
		s.set(drive.RegisterFault, 0)
	default:
		return false
	}
	return true
}

func (s *Simulator) set(address, value uint16) {
	s.model.Set(address, value)
	s.storage.OnWrite(address, 1)
}

func (s *Simulator) exception(funcCode byte, code byte) modbus.ProtocolDataUnit {
	return modbus.ProtocolDataUnit{
		FunctionCode: funcCode | modbus.ExceptionFlag,
		Data:         []byte{code},
	}
}
