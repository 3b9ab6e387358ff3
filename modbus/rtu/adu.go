// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"

	"github.com/ffutop/hs321/modbus"
	"github.com/ffutop/hs321/modbus/crc"
)

// ApplicationDataUnit is one RTU frame without its CRC trailer.
type ApplicationDataUnit struct {
	SlaveID byte
	Pdu     modbus.ProtocolDataUnit
}

// Decode checks the CRC trailer of raw and splits it into slave id and PDU.
// The returned PDU data aliases raw.
func Decode(raw []byte) (*ApplicationDataUnit, error) {
	length := len(raw)
	// Minimum size (including address, function and CRC)
	if length < MinSize {
		return nil, &modbus.MismatchError{Kind: modbus.LengthMismatch, Expected: MinSize, Actual: length}
	}
	if err := checkCRC(raw); err != nil {
		return nil, err
	}
	return &ApplicationDataUnit{
		SlaveID: raw[0],
		Pdu: modbus.ProtocolDataUnit{
			FunctionCode: raw[1],
			Data:         raw[2 : length-2],
		},
	}, nil
}

// Encode encodes PDU in an RTU frame:
//
//	Slave Address   : 1 byte
//	Function        : 1 byte
//	Data            : 0 up to 252 bytes
//	CRC             : 2 bytes
func (adu *ApplicationDataUnit) Encode() ([]byte, error) {
	length := len(adu.Pdu.Data) + 4
	if length > MaxSize {
		return nil, &modbus.ArgumentError{
			Op:     "encode",
			Reason: fmt.Sprintf("length of data '%v' must not be bigger than '%v'", length, MaxSize),
		}
	}
	raw := make([]byte, length)
	raw[0] = adu.SlaveID
	raw[1] = adu.Pdu.FunctionCode
	copy(raw[2:], adu.Pdu.Data)
	appendCRC(raw)
	return raw, nil
}

// appendCRC fills the last two bytes of frame with the checksum of the rest,
// low byte first.
func appendCRC(frame []byte) {
	n := len(frame)
	sum := crc.Checksum(frame[:n-2])
	frame[n-2] = byte(sum)
	frame[n-1] = byte(sum >> 8)
}

func checkCRC(frame []byte) error {
	n := len(frame)
	sum := crc.Checksum(frame[:n-2])
	received := uint16(frame[n-1])<<8 | uint16(frame[n-2])
	if received != sum {
		return &modbus.MismatchError{Kind: modbus.CRCMismatch, Expected: int(sum), Actual: int(received)}
	}
	return nil
}
