// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

const (
	MinSize = 4
	MaxSize = 256

	ExceptionSize = 5
	// WriteAckSize is the length of both the 0x06 and the 0x10 acknowledgement.
	WriteAckSize = 8
	// readHeaderSize covers slave id, function code and byte count.
	readHeaderSize = 3
)

// Register ceilings imposed by the 256 byte RTU frame.
const (
	MaxReadQuantity  = 125
	MaxWriteQuantity = 123
)
