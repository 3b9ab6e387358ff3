// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package drive

import (
	"fmt"
	"strings"
)

// Group is the parameter group selector of the HS321 register map.
type Group uint8

const (
	GroupF0 Group = iota
	GroupF1
	GroupF2
	GroupF3
	GroupF4
	GroupF5
	GroupF6
	GroupF7
	GroupF8
	GroupF9
	GroupFA
	GroupFB
	GroupFC
	GroupFP

	// GroupD holds the read-only monitoring values d.00 and up.
	GroupD Group = 112
)

// Fixed registers outside the parameter groups.
const (
	RegisterControl  uint16 = 0x2000
	RegisterRunState uint16 = 0x3000
	RegisterFault    uint16 = 0x8000
)

var groupNames = [...]string{"F0", "F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "FA", "FB", "FC", "FP"}

func (g Group) String() string {
	if int(g) < len(groupNames) {
		return groupNames[g]
	}
	if g == GroupD {
		return "d"
	}
	return fmt.Sprintf("group(%d)", uint8(g))
}

// ParseGroup is the inverse of Group.String. Case is ignored.
func ParseGroup(s string) (Group, error) {
	for i, name := range groupNames {
		if strings.EqualFold(name, s) {
			return Group(i), nil
		}
	}
	if strings.EqualFold(s, "d") {
		return GroupD, nil
	}
	return 0, fmt.Errorf("unknown parameter group: %q", s)
}

// BuildAddress maps a parameter to its register: the group in the high byte
// and the sub-index in the low byte. The pair is not checked against any
// parameter catalog.
func BuildAddress(group Group, sub uint8) uint16 {
	return uint16(group)<<8 | uint16(sub)
}
