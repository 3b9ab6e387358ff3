// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

/*
Package modbus holds the protocol-level vocabulary shared by the RTU
framer, the serial transport and the drive master: function codes,
exception codes, the PDU type and the error taxonomy.
*/
package modbus

import "fmt"

const (
	FuncCodeReadHoldingRegisters   = 0x03
	FuncCodeWriteSingleRegister    = 0x06
	FuncCodeWriteMultipleRegisters = 0x10

	// ExceptionFlag is set on the echoed function code of an exception response.
	ExceptionFlag = 0x80
)

const (
	ExceptionCodeIllegalFunction     = 1
	ExceptionCodeIllegalDataAddress  = 2
	ExceptionCodeIllegalDataValue    = 3
	ExceptionCodeServerDeviceFailure = 4
	ExceptionCodeAcknowledge         = 5
	ExceptionCodeServerDeviceBusy    = 6
	ExceptionCodeMemoryParityError   = 8
)

// ProtocolDataUnit (PDU) is independent of underlying communication layers.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// Error is an exception reported by the slave.
type Error struct {
	FunctionCode  byte
	ExceptionCode byte
}

// Error converts known modbus exception code to error message.
func (e *Error) Error() string {
	var name string
	switch e.ExceptionCode {
	case ExceptionCodeIllegalFunction:
		name = "illegal function"
	case ExceptionCodeIllegalDataAddress:
		name = "illegal data address"
	case ExceptionCodeIllegalDataValue:
		name = "illegal data value"
	case ExceptionCodeServerDeviceFailure:
		name = "server device failure"
	case ExceptionCodeAcknowledge:
		name = "acknowledge"
	case ExceptionCodeServerDeviceBusy:
		name = "server device busy"
	case ExceptionCodeMemoryParityError:
		name = "memory parity error"
	default:
		name = "unknown"
	}
	return fmt.Sprintf("modbus: exception '%v' (%s), function '%v'", e.ExceptionCode, name, e.FunctionCode&^ExceptionFlag)
}
