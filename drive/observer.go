// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package drive

import (
	"encoding/hex"
	"log/slog"
	"time"
)

// Exchange describes one request/response cycle on the bus.
type Exchange struct {
	Op           string
	Slave        byte
	FunctionCode byte
	Request      []byte
	// Response holds whatever was received, which may be a partial frame.
	Response []byte
	Duration time.Duration
	Err      error
}

// Observer is notified after every exchange, successful or not.
// Implementations must not retain the frame slices.
type Observer interface {
	ObserveExchange(e Exchange)
}

// NopObserver discards all exchanges.
type NopObserver struct{}

func (NopObserver) ObserveExchange(Exchange) {}

// MultiObserver fans an exchange out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) ObserveExchange(e Exchange) {
	for _, o := range m {
		o.ObserveExchange(e)
	}
}

// LogObserver logs frames at debug level and failures at warn level.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) ObserveExchange(e Exchange) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if e.Err != nil {
		logger.Warn("Modbus exchange failed", "op", e.Op, "slave", e.Slave,
			"request", hex.EncodeToString(e.Request), "response", hex.EncodeToString(e.Response), "err", e.Err)
		return
	}
	logger.Debug("send to modbus slave", "op", e.Op, "slave", e.Slave, "request", hex.EncodeToString(e.Request))
	logger.Debug("recv from modbus slave", "op", e.Op, "response", hex.EncodeToString(e.Response), "duration", e.Duration)
}
