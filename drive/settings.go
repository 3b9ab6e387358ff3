// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package drive

// commSettingsCount covers FC.00 through FC.05.
const commSettingsCount = 6

var baudRates = [...]int{1200, 2400, 4800, 9600, 19200, 38400}

// CommSettings is the decoded FC group of the drive.
type CommSettings struct {
	BaudCode     uint16 `json:"baud_code" yaml:"baud_code"`         // FC.00
	DataFormat   uint16 `json:"data_format" yaml:"data_format"`     // FC.01
	Address      uint16 `json:"address" yaml:"address"`             // FC.02
	Timeout      uint16 `json:"timeout" yaml:"timeout"`             // FC.03
	Reserved     uint16 `json:"reserved" yaml:"reserved"`           // FC.04
	ErrorHandler uint16 `json:"error_handler" yaml:"error_handler"` // FC.05
}

func decodeCommSettings(v []uint16) CommSettings {
	return CommSettings{
		BaudCode:     v[0],
		DataFormat:   v[1],
		Address:      v[2],
		Timeout:      v[3],
		Reserved:     v[4],
		ErrorHandler: v[5],
	}
}

// BaudRate returns the line speed selected by FC.00, or 0 for an
// unknown code.
func (s CommSettings) BaudRate() int {
	if int(s.BaudCode) < len(baudRates) {
		return baudRates[s.BaudCode]
	}
	return 0
}

// Format returns the frame format selected by FC.01, such as "8N1".
func (s CommSettings) Format() string {
	switch s.DataFormat {
	case 0, 3:
		return "8N1"
	case 1:
		return "8O1"
	case 2:
		return "8E1"
	case 4:
		return "7E1"
	case 5:
		return "7O1"
	case 6:
		return "8N2"
	default:
		return ""
	}
}
