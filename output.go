// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ffutop/hs321/drive"
	"github.com/ffutop/hs321/internal/monitor"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}

type textWriter interface {
	writeText(w io.Writer) error
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	}
	switch t := v.(type) {
	case textWriter:
		return t.writeText(w)
	case monitor.Snapshot:
		return writeSnapshot(w, t)
	}
	_, err := fmt.Fprintf(w, "%v\n", v)
	return err
}

type register struct {
	Name    string `json:"name" yaml:"name"`
	Address uint16 `json:"address" yaml:"address"`
	Value   uint16 `json:"value" yaml:"value"`
}

type registerResult struct {
	Registers []register `json:"registers" yaml:"registers"`
}

func newRegisterResult(group drive.Group, sub uint8, values []uint16) registerResult {
	r := registerResult{Registers: make([]register, len(values))}
	for i, v := range values {
		s := sub + uint8(i)
		r.Registers[i] = register{
			Name:    fmt.Sprintf("%s.%02d", group, s),
			Address: drive.BuildAddress(group, s),
			Value:   v,
		}
	}
	return r
}

func (r registerResult) writeText(w io.Writer) error {
	for _, reg := range r.Registers {
		if _, err := fmt.Fprintf(w, "%-6s 0x%04X  %d\n", reg.Name, reg.Address, reg.Value); err != nil {
			return err
		}
	}
	return nil
}

type faultResult struct {
	Code  uint16 `json:"code" yaml:"code"`
	Fault string `json:"fault" yaml:"fault"`
}

func (r faultResult) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "fault: %s (%d)\n", r.Fault, r.Code)
	return err
}

type stateResult struct {
	Value uint16 `json:"value" yaml:"value"`
	State string `json:"state" yaml:"state"`
}

func (r stateResult) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "state: %s (%d)\n", r.State, r.Value)
	return err
}

type commResult struct {
	drive.CommSettings `yaml:",inline"`
	Baud               int    `json:"baud" yaml:"baud"`
	Format             string `json:"format" yaml:"format"`
}

func newCommResult(s drive.CommSettings) commResult {
	return commResult{CommSettings: s, Baud: s.BaudRate(), Format: s.Format()}
}

func (r commResult) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"FC.00 baud:          %d (%d)\nFC.01 format:        %s (%d)\nFC.02 address:       %d\nFC.03 timeout:       %d\nFC.04 reserved:      %d\nFC.05 error handler: %d\n",
		r.BaudCode, r.Baud, r.Format, r.DataFormat, r.Address, r.Timeout, r.Reserved, r.ErrorHandler)
	return err
}

func writeSnapshot(w io.Writer, s monitor.Snapshot) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s state=%s fault=%s", s.Time.Format("15:04:05.000"), s.RunState, s.FaultName)
	for i, v := range s.Monitoring {
		fmt.Fprintf(&b, " d.%02d=%d", i, v)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
