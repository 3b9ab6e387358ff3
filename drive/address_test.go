// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package drive

import "testing"

func TestBuildAddress(t *testing.T) {
	groups := []Group{GroupF0, GroupF1, GroupF2, GroupF3, GroupF4, GroupF5, GroupF6,
		GroupF7, GroupF8, GroupF9, GroupFA, GroupFB, GroupFC, GroupFP, GroupD}
	for _, g := range groups {
		for sub := 0; sub <= 255; sub++ {
			addr := BuildAddress(g, uint8(sub))
			if addr>>8 != uint16(g) || addr&0xFF != uint16(sub) {
				t.Fatalf("BuildAddress(%v, %d) = %#04x", g, sub, addr)
			}
		}
	}

	if got := BuildAddress(GroupFC, 2); got != 0x0C02 {
		t.Errorf("FC.02 = %#04x, want 0x0C02", got)
	}
	if got := BuildAddress(GroupD, 0); got != 0x7000 {
		t.Errorf("d.00 = %#04x, want 0x7000", got)
	}
}

func TestGroup_String(t *testing.T) {
	tests := []struct {
		group Group
		want  string
	}{
		{GroupF0, "F0"},
		{GroupF9, "F9"},
		{GroupFA, "FA"},
		{GroupFC, "FC"},
		{GroupFP, "FP"},
		{GroupD, "d"},
		{Group(50), "group(50)"},
	}
	for _, tt := range tests {
		if got := tt.group.String(); got != tt.want {
			t.Errorf("Group(%d).String() = %q, want %q", uint8(tt.group), got, tt.want)
		}
		if tt.group == Group(50) {
			continue
		}
		parsed, err := ParseGroup(tt.want)
		if err != nil || parsed != tt.group {
			t.Errorf("ParseGroup(%q) = %v, %v", tt.want, parsed, err)
		}
	}
	if _, err := ParseGroup("FZ"); err == nil {
		t.Error("expected error for unknown group")
	}
}

func TestCommand(t *testing.T) {
	if ForwardRun != 0 || FaultReset != 6 {
		t.Fatalf("command values shifted: forward=%d reset=%d", ForwardRun, FaultReset)
	}
	for c := ForwardRun; c <= FaultReset; c++ {
		parsed, err := ParseCommand(c.String())
		if err != nil || parsed != c {
			t.Errorf("ParseCommand(%q) = %v, %v", c.String(), parsed, err)
		}
	}
	if _, err := ParseCommand("launch"); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestCommSettings(t *testing.T) {
	s := decodeCommSettings([]uint16{3, 2, 1, 10, 0, 1})
	if s.BaudRate() != 9600 || s.Format() != "8E1" || s.Address != 1 {
		t.Errorf("settings = %+v baud=%d format=%s", s, s.BaudRate(), s.Format())
	}
	if (CommSettings{BaudCode: 9}).BaudRate() != 0 {
		t.Error("unknown baud code should map to 0")
	}
}
