// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"

	"github.com/ffutop/hs321/modbus"
)

// ResponseLength returns the expected length of a normal response ADU.
// count is the register quantity and is only used for reads.
func ResponseLength(funcCode byte, count int) int {
	switch funcCode {
	case modbus.FuncCodeReadHoldingRegisters:
		return readHeaderSize + 2*count + 2
	case modbus.FuncCodeWriteSingleRegister,
		modbus.FuncCodeWriteMultipleRegisters:
		return WriteAckSize
	default:
		return MinSize
	}
}

// Validate checks a response frame against the request it answers.
// The CRC is checked right after the length so that corruption anywhere in
// the frame is reported as a CRC mismatch. An exception response is returned
// as *modbus.Error.
func Validate(resp []byte, slave, funcCode byte) error {
	if len(resp) < MinSize {
		return &modbus.MismatchError{Kind: modbus.LengthMismatch, Expected: MinSize, Actual: len(resp)}
	}
	if err := checkCRC(resp); err != nil {
		return err
	}
	if resp[0] != slave {
		return &modbus.MismatchError{Kind: modbus.AddressMismatch, Expected: int(slave), Actual: int(resp[0])}
	}
	if resp[1] == funcCode|modbus.ExceptionFlag {
		return &modbus.Error{FunctionCode: resp[1], ExceptionCode: resp[2]}
	}
	if resp[1] != funcCode {
		return &modbus.MismatchError{Kind: modbus.FunctionMismatch, Expected: int(funcCode), Actual: int(resp[1])}
	}
	return nil
}

// ValidateRead validates a 0x03 response carrying count registers.
func ValidateRead(resp []byte, slave byte, count int) error {
	if err := Validate(resp, slave, modbus.FuncCodeReadHoldingRegisters); err != nil {
		return err
	}
	if len(resp) < readHeaderSize+2 {
		return &modbus.MismatchError{Kind: modbus.LengthMismatch, Expected: ResponseLength(modbus.FuncCodeReadHoldingRegisters, count), Actual: len(resp)}
	}
	if byteCount := int(resp[2]); byteCount != 2*count {
		return &modbus.MismatchError{Kind: modbus.LengthMismatch, Expected: 2 * count, Actual: byteCount}
	}
	if want := ResponseLength(modbus.FuncCodeReadHoldingRegisters, count); len(resp) != want {
		return &modbus.MismatchError{Kind: modbus.LengthMismatch, Expected: want, Actual: len(resp)}
	}
	return nil
}

// DecodeRegisters extracts the big-endian register values of a validated
// read response.
func DecodeRegisters(resp []byte) []uint16 {
	n := int(resp[2]) / 2
	values := make([]uint16, n)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(resp[readHeaderSize+2*i:])
	}
	return values
}

// IsException reports whether frame has the shape of an exception response
// to funcCode with a valid CRC.
func IsException(frame []byte, funcCode byte) bool {
	if len(frame) != ExceptionSize || frame[1] != funcCode|modbus.ExceptionFlag {
		return false
	}
	return checkCRC(frame) == nil
}

// EncodeReadResponse frames a 0x03 response.
func EncodeReadResponse(slave byte, values []uint16) []byte {
	frame := make([]byte, ResponseLength(modbus.FuncCodeReadHoldingRegisters, len(values)))
	frame[0] = slave
	frame[1] = modbus.FuncCodeReadHoldingRegisters
	frame[2] = byte(2 * len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(frame[readHeaderSize+2*i:], v)
	}
	appendCRC(frame)
	return frame
}

// EncodeWriteResponse frames the 8 byte acknowledgement of 0x06 (value) or
// 0x10 (quantity).
func EncodeWriteResponse(slave, funcCode byte, address, valueOrQuantity uint16) []byte {
	frame := make([]byte, WriteAckSize)
	frame[0] = slave
	frame[1] = funcCode
	binary.BigEndian.PutUint16(frame[2:], address)
	binary.BigEndian.PutUint16(frame[4:], valueOrQuantity)
	appendCRC(frame)
	return frame
}

// EncodeException frames an exception response.
func EncodeException(slave, funcCode, code byte) []byte {
	frame := make([]byte, ExceptionSize)
	frame[0] = slave
	frame[1] = funcCode | modbus.ExceptionFlag
	frame[2] = code
	appendCRC(frame)
	return frame
}
