// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package drive

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ffutop/hs321/modbus"
	rtupacket "github.com/ffutop/hs321/modbus/rtu"
)

// scriptedTransport replays one canned response per Receive.
type scriptedTransport struct {
	sent      [][]byte
	responses [][]byte
	errs      []error
	wantLen   []int
	released  int
}

func (s *scriptedTransport) Send(frame []byte) error {
	s.sent = append(s.sent, append([]byte(nil), frame...))
	return nil
}

func (s *scriptedTransport) Receive(n int) ([]byte, error) {
	s.wantLen = append(s.wantLen, n)
	i := len(s.wantLen) - 1
	var resp []byte
	var err error
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return resp, err
}

func (s *scriptedTransport) Release() error {
	s.released++
	return nil
}

type recordingObserver struct {
	exchanges []Exchange
}

func (r *recordingObserver) ObserveExchange(e Exchange) {
	r.exchanges = append(r.exchanges, e)
}

func newReadyMaster(t *testing.T, tr Transport, opts ...Option) *Master {
	t.Helper()
	m := New(tr, 1, opts...)
	if err := m.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	return m
}

func TestMaster_NotInitialized(t *testing.T) {
	tr := &scriptedTransport{}
	m := New(tr, 1)
	ctx := context.Background()

	if _, err := m.Read(ctx, 0x3000, 1); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Read: got %v", err)
	}
	if err := m.WriteSingle(ctx, 0x2000, 0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("WriteSingle: got %v", err)
	}
	if err := m.WriteMultiple(ctx, 0x0C00, []uint16{1}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("WriteMultiple: got %v", err)
	}
	if _, err := m.ReadFaultCode(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ReadFaultCode: got %v", err)
	}
	if len(tr.sent) != 0 {
		t.Errorf("bus touched before Begin: %X", tr.sent)
	}

	if err := m.Begin(); err != nil {
		t.Fatal(err)
	}
	if tr.released != 1 {
		t.Errorf("Begin released the line %d times", tr.released)
	}
	m.Close()
	if err := m.WriteControlCommand(ctx, FreeStop); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("after Close: got %v", err)
	}
}

func TestMaster_BeginRejectsSlave(t *testing.T) {
	for _, slave := range []byte{0, 248, 255} {
		m := New(&scriptedTransport{}, slave)
		if err := m.Begin(); !errors.Is(err, modbus.ErrInvalidArgument) {
			t.Errorf("slave %d: got %v", slave, err)
		}
	}
}

func TestMaster_Read(t *testing.T) {
	tr := &scriptedTransport{responses: [][]byte{rtupacket.EncodeReadResponse(1, []uint16{0x0003, 0x1388})}}
	obs := &recordingObserver{}
	m := newReadyMaster(t, tr, WithObserver(obs))

	values, err := m.ReadGroup(context.Background(), GroupF0, 2, 2)
	if err != nil {
		t.Fatalf("ReadGroup failed: %v", err)
	}
	if len(values) != 2 || values[0] != 3 || values[1] != 5000 {
		t.Errorf("values = %v", values)
	}
	want, _ := rtupacket.BuildRead(1, 0x0002, 2)
	if !bytes.Equal(tr.sent[0], want) {
		t.Errorf("request %X, want %X", tr.sent[0], want)
	}
	if tr.wantLen[0] != 9 {
		t.Errorf("receive length %d, want 9", tr.wantLen[0])
	}
	if len(obs.exchanges) != 1 || obs.exchanges[0].Op != "read" || obs.exchanges[0].Err != nil {
		t.Errorf("observed %+v", obs.exchanges)
	}
}

func TestMaster_ReadArguments(t *testing.T) {
	tr := &scriptedTransport{}
	m := newReadyMaster(t, tr)
	for _, count := range []int{0, 126} {
		if _, err := m.Read(context.Background(), 0, count); !errors.Is(err, modbus.ErrInvalidArgument) {
			t.Errorf("count %d: got %v", count, err)
		}
	}
	if err := m.WriteMultiple(context.Background(), 0, make([]uint16, 124)); !errors.Is(err, modbus.ErrInvalidArgument) {
		t.Errorf("write 124: got %v", err)
	}
	if len(tr.sent) != 0 {
		t.Error("invalid request reached the bus")
	}
}

func TestMaster_WriteGroup(t *testing.T) {
	tr := &scriptedTransport{responses: [][]byte{
		rtupacket.EncodeWriteResponse(1, 0x06, 0x0C03, 20),
		rtupacket.EncodeWriteResponse(1, 0x10, 0x0C00, 3),
	}}
	m := newReadyMaster(t, tr)
	ctx := context.Background()

	if err := m.WriteGroup(ctx, GroupFC, 3, 20); err != nil {
		t.Fatalf("single: %v", err)
	}
	if err := m.WriteGroup(ctx, GroupFC, 0, 3, 0, 1); err != nil {
		t.Fatalf("multiple: %v", err)
	}
	if tr.sent[0][1] != 0x06 || tr.sent[1][1] != 0x10 {
		t.Errorf("function codes %02X %02X, want 06 10", tr.sent[0][1], tr.sent[1][1])
	}
	for i, n := range tr.wantLen {
		if n != rtupacket.WriteAckSize {
			t.Errorf("write %d: receive length %d", i, n)
		}
	}
}

func TestMaster_ExceptionFromPartialResponse(t *testing.T) {
	exc := rtupacket.EncodeException(1, 0x03, modbus.ExceptionCodeIllegalDataAddress)
	tr := &scriptedTransport{
		responses: [][]byte{exc},
		errs:      []error{&modbus.TimeoutError{Kind: modbus.InterChar, Expected: 7, Received: 5}},
	}
	m := newReadyMaster(t, tr)

	_, err := m.ReadRunningState(context.Background())
	var mbErr *modbus.Error
	if !errors.As(err, &mbErr) {
		t.Fatalf("expected slave exception, got %v", err)
	}
	if mbErr.ExceptionCode != modbus.ExceptionCodeIllegalDataAddress {
		t.Errorf("exception code %d", mbErr.ExceptionCode)
	}
}

func TestMaster_TimeoutPassesThrough(t *testing.T) {
	tr := &scriptedTransport{
		responses: [][]byte{{0x01, 0x03}},
		errs:      []error{&modbus.TimeoutError{Kind: modbus.InterChar, Expected: 7, Received: 2}},
	}
	obs := &recordingObserver{}
	m := newReadyMaster(t, tr, WithObserver(obs))

	_, err := m.ReadFaultCode(context.Background())
	if !errors.Is(err, modbus.ErrTransportTimeout) {
		t.Fatalf("got %v, want transport timeout", err)
	}
	if len(obs.exchanges) != 1 || !bytes.Equal(obs.exchanges[0].Response, []byte{0x01, 0x03}) {
		t.Errorf("observer did not see the partial frame: %+v", obs.exchanges)
	}
}

func TestMaster_ValidationErrors(t *testing.T) {
	good := rtupacket.EncodeWriteResponse(1, 0x06, 0x2000, 0)
	wrongSlave := rtupacket.EncodeWriteResponse(2, 0x06, 0x2000, 0)
	corrupt := append([]byte(nil), good...)
	corrupt[3] ^= 0x01

	tests := []struct {
		name string
		resp []byte
		kind modbus.MismatchKind
	}{
		{"WrongSlave", wrongSlave, modbus.AddressMismatch},
		{"Corrupt", corrupt, modbus.CRCMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newReadyMaster(t, &scriptedTransport{responses: [][]byte{tt.resp}})
			err := m.WriteControlCommand(context.Background(), ForwardRun)
			var mm *modbus.MismatchError
			if !errors.As(err, &mm) || mm.Kind != tt.kind {
				t.Errorf("got %v, want %v mismatch", err, tt.kind)
			}
		})
	}
}

func TestMaster_ContextCanceled(t *testing.T) {
	tr := &scriptedTransport{}
	m := newReadyMaster(t, tr)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Read(ctx, 0x3000, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if len(tr.sent) != 0 {
		t.Error("request sent after cancellation")
	}
}

func TestMaster_ReadCommunicationSettings(t *testing.T) {
	tr := &scriptedTransport{responses: [][]byte{rtupacket.EncodeReadResponse(1, []uint16{4, 0, 1, 10, 0, 1})}}
	m := newReadyMaster(t, tr)

	s, err := m.ReadCommunicationSettings(context.Background())
	if err != nil {
		t.Fatalf("ReadCommunicationSettings failed: %v", err)
	}
	if s.BaudRate() != 19200 || s.Address != 1 || s.ErrorHandler != 1 {
		t.Errorf("settings = %+v", s)
	}
	want, _ := rtupacket.BuildRead(1, 0x0C00, 6)
	if !bytes.Equal(tr.sent[0], want) {
		t.Errorf("request %X, want %X", tr.sent[0], want)
	}
}
