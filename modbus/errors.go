// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument  = errors.New("modbus: invalid argument")
	ErrTransportTimeout = errors.New("modbus: transport timeout")
	ErrProtocolMismatch = errors.New("modbus: protocol mismatch")
)

// ArgumentError reports a request that cannot be framed.
type ArgumentError struct {
	Op     string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("modbus: %s: %s", e.Op, e.Reason)
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// TimeoutKind tells which receive rule fired.
type TimeoutKind int

const (
	// Stall means no byte arrived for longer than the stall timeout.
	Stall TimeoutKind = iota
	// InterChar means the gap between two bytes of a started frame was too long.
	InterChar
)

func (k TimeoutKind) String() string {
	switch k {
	case Stall:
		return "stall"
	case InterChar:
		return "inter-character"
	default:
		return "unknown"
	}
}

type TimeoutError struct {
	Kind     TimeoutKind
	Expected int
	Received int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("modbus: %v timeout, received %d of %d bytes", e.Kind, e.Received, e.Expected)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTransportTimeout
}

// MismatchKind identifies the response field that failed validation.
type MismatchKind int

const (
	AddressMismatch MismatchKind = iota
	FunctionMismatch
	LengthMismatch
	CRCMismatch
)

func (k MismatchKind) String() string {
	switch k {
	case AddressMismatch:
		return "address"
	case FunctionMismatch:
		return "function"
	case LengthMismatch:
		return "length"
	case CRCMismatch:
		return "crc"
	default:
		return "unknown"
	}
}

type MismatchError struct {
	Kind     MismatchKind
	Expected int
	Actual   int
}

func (e *MismatchError) Error() string {
	if e.Kind == CRCMismatch {
		return fmt.Sprintf("modbus: response crc '%#04x' does not match expected '%#04x'", e.Actual, e.Expected)
	}
	return fmt.Sprintf("modbus: response %v '%v' does not match expected '%v'", e.Kind, e.Actual, e.Expected)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrProtocolMismatch
}
