// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

/*
Package drive is a Modbus RTU master for the HS321 motor drive.

A Master issues one request at a time over a Transport and waits for the
matching response before returning. Register access is available both by
raw address and by parameter group, together with the fixed control, run
state and fault registers.
*/
package drive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ffutop/hs321/modbus"
	rtupacket "github.com/ffutop/hs321/modbus/rtu"
)

// ErrNotInitialized is returned by every bus operation before Begin.
var ErrNotInitialized = errors.New("drive: master not initialized")

// Transport moves raw frames over the half-duplex bus.
type Transport interface {
	Send(frame []byte) error
	Receive(n int) ([]byte, error)
	// Release puts the line driver in receive mode.
	Release() error
}

// Option configures a Master.
type Option func(*Master)

// WithObserver installs the exchange observer.
func WithObserver(o Observer) Option {
	return func(m *Master) {
		if o != nil {
			m.observer = o
		}
	}
}

// Master talks to a single drive at a fixed slave address.
type Master struct {
	transport Transport
	slave     byte
	observer  Observer

	mu    sync.Mutex
	ready bool
}

// New allocates a Master. The bus is not touched until Begin.
func New(transport Transport, slave byte, opts ...Option) *Master {
	m := &Master{
		transport: transport,
		slave:     slave,
		observer:  NopObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Slave returns the configured slave address.
func (m *Master) Slave() byte {
	return m.slave
}

// Begin releases the bus and makes the master ready.
func (m *Master) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slave < 1 || m.slave > 247 {
		return &modbus.ArgumentError{Op: "begin", Reason: fmt.Sprintf("slave address %d out of range [1, 247]", m.slave)}
	}
	if err := m.transport.Release(); err != nil {
		return fmt.Errorf("failed to release bus: %w", err)
	}
	m.ready = true
	return nil
}

// Close returns the master to the uninitialized state. The underlying
// port is owned by the caller.
func (m *Master) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ready = false
	return nil
}

// Read reads count holding registers starting at address.
func (m *Master) Read(ctx context.Context, address uint16, count int) ([]uint16, error) {
	if !m.isReady() {
		return nil, ErrNotInitialized
	}
	req, err := rtupacket.BuildRead(m.slave, address, count)
	if err != nil {
		return nil, err
	}
	resp, err := m.exchange(ctx, "read", req, modbus.FuncCodeReadHoldingRegisters,
		rtupacket.ResponseLength(modbus.FuncCodeReadHoldingRegisters, count),
		func(resp []byte) error { return rtupacket.ValidateRead(resp, m.slave, count) })
	if err != nil {
		return nil, err
	}
	return rtupacket.DecodeRegisters(resp), nil
}

// WriteSingle writes value to the register at address.
func (m *Master) WriteSingle(ctx context.Context, address, value uint16) error {
	if !m.isReady() {
		return ErrNotInitialized
	}
	req := rtupacket.BuildWriteSingle(m.slave, address, value)
	_, err := m.exchange(ctx, "write_single", req, modbus.FuncCodeWriteSingleRegister, rtupacket.WriteAckSize,
		func(resp []byte) error { return rtupacket.Validate(resp, m.slave, modbus.FuncCodeWriteSingleRegister) })
	return err
}

// WriteMultiple writes values to consecutive registers starting at address.
func (m *Master) WriteMultiple(ctx context.Context, address uint16, values []uint16) error {
	if !m.isReady() {
		return ErrNotInitialized
	}
	req, err := rtupacket.BuildWriteMultiple(m.slave, address, values)
	if err != nil {
		return err
	}
	_, err = m.exchange(ctx, "write_multiple", req, modbus.FuncCodeWriteMultipleRegisters, rtupacket.WriteAckSize,
		func(resp []byte) error { return rtupacket.Validate(resp, m.slave, modbus.FuncCodeWriteMultipleRegisters) })
	return err
}

// ReadFaultCode reads the fault register.
func (m *Master) ReadFaultCode(ctx context.Context) (FaultCode, error) {
	v, err := m.readOne(ctx, RegisterFault)
	return FaultCode(v), err
}

// ReadRunningState reads the run state register.
func (m *Master) ReadRunningState(ctx context.Context) (RunState, error) {
	v, err := m.readOne(ctx, RegisterRunState)
	return RunState(v), err
}

// WriteControlCommand writes cmd to the control register.
func (m *Master) WriteControlCommand(ctx context.Context, cmd Command) error {
	return m.WriteSingle(ctx, RegisterControl, uint16(cmd))
}

// ReadGroup reads count parameters of group starting at sub.
func (m *Master) ReadGroup(ctx context.Context, group Group, sub uint8, count int) ([]uint16, error) {
	return m.Read(ctx, BuildAddress(group, sub), count)
}

// WriteGroup writes parameters of group starting at sub. A single value
// uses function 0x06, several values use 0x10.
func (m *Master) WriteGroup(ctx context.Context, group Group, sub uint8, values ...uint16) error {
	address := BuildAddress(group, sub)
	if len(values) == 1 {
		return m.WriteSingle(ctx, address, values[0])
	}
	return m.WriteMultiple(ctx, address, values)
}

// ReadCommunicationSettings reads FC.00 through FC.05 in one request.
func (m *Master) ReadCommunicationSettings(ctx context.Context) (CommSettings, error) {
	v, err := m.ReadGroup(ctx, GroupFC, 0, commSettingsCount)
	if err != nil {
		return CommSettings{}, err
	}
	return decodeCommSettings(v), nil
}

func (m *Master) readOne(ctx context.Context, address uint16) (uint16, error) {
	v, err := m.Read(ctx, address, 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (m *Master) isReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// exchange runs one request/response cycle under the bus lock. ctx is only
// consulted before the request goes out.
func (m *Master) exchange(ctx context.Context, op string, req []byte, funcCode byte, respLen int, validate func([]byte) error) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return nil, ErrNotInitialized
	}

	start := time.Now()
	resp, err := m.roundTrip(req, funcCode, respLen, validate)
	m.observer.ObserveExchange(Exchange{
		Op:           op,
		Slave:        m.slave,
		FunctionCode: funcCode,
		Request:      req,
		Response:     resp,
		Duration:     time.Since(start),
		Err:          err,
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *Master) roundTrip(req []byte, funcCode byte, respLen int, validate func([]byte) error) ([]byte, error) {
	if err := m.transport.Send(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	resp, err := m.transport.Receive(respLen)
	if err != nil {
		// A slave exception is shorter than the normal response and ends
		// in a timeout after five bytes.
		if rtupacket.IsException(resp, funcCode) {
			return resp, rtupacket.Validate(resp, m.slave, funcCode)
		}
		return resp, err
	}
	if err := validate(resp); err != nil {
		return resp, err
	}
	return resp, nil
}
