// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package metrics exports bus exchange statistics to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ffutop/hs321/drive"
	"github.com/ffutop/hs321/modbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels
const (
	ResultOK        = "ok"
	ResultTimeout   = "timeout"
	ResultException = "exception"
	ResultMismatch  = "mismatch"
	ResultError     = "error"
)

// Observer is a drive.Observer that records every exchange.
type Observer struct {
	Exchanges  *prometheus.CounterVec
	Timeouts   *prometheus.CounterVec
	Exceptions *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewObserver registers the collectors with reg.
func NewObserver(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		Exchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hs321_exchanges_total",
			Help: "The total number of request/response exchanges with the drive",
		}, []string{"op", "result"}),
		Timeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hs321_timeouts_total",
			Help: "The total number of receive timeouts",
		}, []string{"kind"}),
		Exceptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hs321_exceptions_total",
			Help: "The total number of exception responses from the drive",
		}, []string{"code"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hs321_exchange_duration_seconds",
			Help:    "Time from sending a request to the end of its response",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
	}
}

func (o *Observer) ObserveExchange(e drive.Exchange) {
	o.Duration.WithLabelValues(e.Op).Observe(e.Duration.Seconds())
	o.Exchanges.WithLabelValues(e.Op, Classify(e.Err)).Inc()

	var te *modbus.TimeoutError
	if errors.As(e.Err, &te) {
		o.Timeouts.WithLabelValues(te.Kind.String()).Inc()
	}
	var mbErr *modbus.Error
	if errors.As(e.Err, &mbErr) {
		o.Exceptions.WithLabelValues(strconv.Itoa(int(mbErr.ExceptionCode))).Inc()
	}
}

// Classify maps an exchange error to a result label.
func Classify(err error) string {
	var mbErr *modbus.Error
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, modbus.ErrTransportTimeout):
		return ResultTimeout
	case errors.As(err, &mbErr):
		return ResultException
	case errors.Is(err, modbus.ErrProtocolMismatch):
		return ResultMismatch
	default:
		return ResultError
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
