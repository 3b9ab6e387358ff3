// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"
	"fmt"

	"github.com/ffutop/hs321/modbus"
)

// BuildRead frames a Read Holding Registers (0x03) request.
func BuildRead(slave byte, address uint16, count int) ([]byte, error) {
	if count < 1 || count > MaxReadQuantity {
		return nil, &modbus.ArgumentError{
			Op:     "read",
			Reason: fmt.Sprintf("quantity %d out of range [1, %d]", count, MaxReadQuantity),
		}
	}
	frame := make([]byte, 8)
	frame[0] = slave
	frame[1] = modbus.FuncCodeReadHoldingRegisters
	binary.BigEndian.PutUint16(frame[2:], address)
	binary.BigEndian.PutUint16(frame[4:], uint16(count))
	appendCRC(frame)
	return frame, nil
}

// BuildWriteSingle frames a Write Single Register (0x06) request.
func BuildWriteSingle(slave byte, address, value uint16) []byte {
	frame := make([]byte, 8)
	frame[0] = slave
	frame[1] = modbus.FuncCodeWriteSingleRegister
	binary.BigEndian.PutUint16(frame[2:], address)
	binary.BigEndian.PutUint16(frame[4:], value)
	appendCRC(frame)
	return frame
}

// BuildWriteMultiple frames a Write Multiple Registers (0x10) request.
//
//	Slave, Func, Addr(2), Quantity(2), ByteCount(1), Values(2N), CRC(2)
func BuildWriteMultiple(slave byte, address uint16, values []uint16) ([]byte, error) {
	count := len(values)
	if count < 1 || count > MaxWriteQuantity {
		return nil, &modbus.ArgumentError{
			Op:     "write multiple",
			Reason: fmt.Sprintf("quantity %d out of range [1, %d]", count, MaxWriteQuantity),
		}
	}
	frame := make([]byte, 9+2*count)
	frame[0] = slave
	frame[1] = modbus.FuncCodeWriteMultipleRegisters
	binary.BigEndian.PutUint16(frame[2:], address)
	binary.BigEndian.PutUint16(frame[4:], uint16(count))
	frame[6] = byte(2 * count)
	for i, v := range values {
		binary.BigEndian.PutUint16(frame[7+2*i:], v)
	}
	appendCRC(frame)
	return frame, nil
}

// Request is a decoded master request.
// Quantity is the register count for 0x03 and 0x10 and 1 for 0x06.
type Request struct {
	SlaveID      byte
	FunctionCode byte
	Address      uint16
	Quantity     uint16
	Values       []uint16
}

// ParseRequest verifies the CRC of frame and decodes a 0x03, 0x06 or 0x10
// request.
func ParseRequest(frame []byte) (*Request, error) {
	adu, err := Decode(frame)
	if err != nil {
		return nil, err
	}
	data := adu.Pdu.Data
	req := &Request{SlaveID: adu.SlaveID, FunctionCode: adu.Pdu.FunctionCode}

	switch req.FunctionCode {
	case modbus.FuncCodeReadHoldingRegisters:
		if len(data) != 4 {
			return nil, &modbus.MismatchError{Kind: modbus.LengthMismatch, Expected: 8, Actual: len(frame)}
		}
		req.Address = binary.BigEndian.Uint16(data[0:])
		req.Quantity = binary.BigEndian.Uint16(data[2:])
	case modbus.FuncCodeWriteSingleRegister:
		if len(data) != 4 {
			return nil, &modbus.MismatchError{Kind: modbus.LengthMismatch, Expected: 8, Actual: len(frame)}
		}
		req.Address = binary.BigEndian.Uint16(data[0:])
		req.Quantity = 1
		req.Values = []uint16{binary.BigEndian.Uint16(data[2:])}
	case modbus.FuncCodeWriteMultipleRegisters:
		if len(data) < 5 {
			return nil, &modbus.MismatchError{Kind: modbus.LengthMismatch, Expected: 11, Actual: len(frame)}
		}
		req.Address = binary.BigEndian.Uint16(data[0:])
		req.Quantity = binary.BigEndian.Uint16(data[2:])
		byteCount := int(data[4])
		if byteCount != 2*int(req.Quantity) || len(data) != 5+byteCount {
			return nil, &modbus.MismatchError{Kind: modbus.LengthMismatch, Expected: 2 * int(req.Quantity), Actual: byteCount}
		}
		req.Values = make([]uint16, req.Quantity)
		for i := range req.Values {
			req.Values[i] = binary.BigEndian.Uint16(data[5+2*i:])
		}
	default:
		return nil, &modbus.MismatchError{Kind: modbus.FunctionMismatch, Actual: int(req.FunctionCode)}
	}
	return req, nil
}

// RequestLength returns the expected total length of the Request RTU ADU based on the header.
func RequestLength(funcCode byte, header []byte) (int, error) {
	// Header should be at least 7 bytes to cover ByteCount for 0x0F/0x10.
	// [SlaveID, Func, Appd1, Appd2, Appd3, Appd4/ByteCount]

	switch funcCode {
	case 0x01, 0x02, 0x03, 0x04, 0x05, 0x06:
		// Fixed 8 bytes: [SlaveID, Func, Addr(2), Val(2), CRC(2)]
		return 8, nil
	case 0x0F, 0x10:
		// Req: [SlaveID, Func, Addr(2), Quant(2), ByteCount(1), Data(N), CRC(2)]
		if len(header) < 7 {
			return 0, fmt.Errorf("need 7 bytes to determine length for 0x%02X, got %d", funcCode, len(header))
		}
		return 7 + int(header[6]) + 2, nil
	default:
		return 0, fmt.Errorf("unsupported function code: 0x%02X", funcCode)
	}
}
