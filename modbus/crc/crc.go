// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package crc implements the reflected CRC-16 used by Modbus RTU
// (polynomial 0x8005 reflected to 0xA001, initial value 0xFFFF).
package crc

const (
	polynomial = 0xA001
	initial    = 0xFFFF
)

// CRC is a running Modbus checksum.
type CRC struct {
	value uint16
}

func (crc *CRC) Reset() *CRC {
	crc.value = initial
	return crc
}

func (crc *CRC) PushBytes(bs []byte) *CRC {
	v := crc.value
	for _, b := range bs {
		v ^= uint16(b)
		for i := 0; i < 8; i++ {
			if v&0x0001 != 0 {
				v = (v >> 1) ^ polynomial
			} else {
				v >>= 1
			}
		}
	}
	crc.value = v
	return crc
}

func (crc *CRC) Value() uint16 {
	return crc.value
}

// Checksum returns the CRC of b. An empty slice yields 0xFFFF.
func Checksum(b []byte) uint16 {
	var crc CRC
	return crc.Reset().PushBytes(b).Value()
}
