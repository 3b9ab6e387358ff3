// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package monitor polls the drive periodically and publishes snapshots.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ffutop/hs321/drive"
)

// Drive is the subset of the master used by the poller.
type Drive interface {
	ReadRunningState(ctx context.Context) (drive.RunState, error)
	ReadFaultCode(ctx context.Context) (drive.FaultCode, error)
	ReadGroup(ctx context.Context, group drive.Group, sub uint8, count int) ([]uint16, error)
}

// Snapshot is one poll of the drive.
type Snapshot struct {
	Time       time.Time `json:"time" yaml:"time"`
	RunState   string    `json:"run_state" yaml:"run_state"`
	State      uint16    `json:"state" yaml:"state"`
	Fault      uint16    `json:"fault" yaml:"fault"`
	FaultName  string    `json:"fault_name" yaml:"fault_name"`
	Monitoring []uint16  `json:"monitoring,omitempty" yaml:"monitoring,omitempty"`
}

// Publisher receives every successful snapshot.
type Publisher interface {
	Publish(ctx context.Context, s Snapshot) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, s Snapshot) error

func (f PublisherFunc) Publish(ctx context.Context, s Snapshot) error {
	return f(ctx, s)
}

// Poller reads run state, fault code and the first MonitoringCount values
// of group d on every tick.
type Poller struct {
	Drive           Drive
	Publisher       Publisher
	Interval        time.Duration
	MonitoringCount int
}

// Poll performs a single poll.
func (p *Poller) Poll(ctx context.Context) (Snapshot, error) {
	state, err := p.Drive.ReadRunningState(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read run state: %w", err)
	}
	fault, err := p.Drive.ReadFaultCode(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read fault code: %w", err)
	}
	s := Snapshot{
		Time:      time.Now(),
		RunState:  state.String(),
		State:     uint16(state),
		Fault:     uint16(fault),
		FaultName: fault.String(),
	}
	if p.MonitoringCount > 0 {
		values, err := p.Drive.ReadGroup(ctx, drive.GroupD, 0, p.MonitoringCount)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to read monitoring group: %w", err)
		}
		s.Monitoring = values
	}
	return s, nil
}

// Run polls until ctx is done. A failed poll or publish is logged and the
// next tick proceeds.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		p.tick(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	s, err := p.Poll(ctx)
	if err != nil {
		slog.Warn("Drive poll failed", "err", err)
		return
	}
	if p.Publisher == nil {
		return
	}
	if err := p.Publisher.Publish(ctx, s); err != nil {
		slog.Warn("Failed to publish snapshot", "err", err)
	}
}
