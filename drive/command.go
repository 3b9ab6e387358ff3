// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package drive

import (
	"fmt"
	"strings"
)

// Command is a value written to the control register.
type Command uint16

const (
	ForwardRun Command = iota
	ReverseRun
	ForwardJog
	ReverseJog
	FreeStop
	DecelerateStop
	FaultReset
)

var commandNames = [...]string{
	"forward-run",
	"reverse-run",
	"forward-jog",
	"reverse-jog",
	"free-stop",
	"decelerate-stop",
	"fault-reset",
}

func (c Command) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("command(%d)", uint16(c))
}

// ParseCommand accepts the names printed by Command.String.
func ParseCommand(s string) (Command, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range commandNames {
		if name == s {
			return Command(i), nil
		}
	}
	return 0, fmt.Errorf("unknown control command: %q", s)
}

// RunState is the content of the run state register.
type RunState uint16

const (
	StateForward RunState = 1
	StateReverse RunState = 2
	StateStopped RunState = 3
)

func (s RunState) String() string {
	switch s {
	case StateForward:
		return "forward"
	case StateReverse:
		return "reverse"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", uint16(s))
	}
}

// FaultCode is the content of the fault register. Zero means no fault.
type FaultCode uint16

func (f FaultCode) String() string {
	if f == 0 {
		return "none"
	}
	return fmt.Sprintf("E%03d", uint16(f))
}
