// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package drivesim

import (
	"bytes"
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ffutop/hs321/internal/config"
	rtupacket "github.com/ffutop/hs321/modbus/rtu"
	"github.com/ffutop/hs321/transport/rtu"
)

// readFrame collects n bytes from p or fails after timeout.
func readFrame(t *testing.T, p *PipeEnd, n int, timeout time.Duration) []byte {
	t.Helper()
	buf := make([]byte, 0, n)
	deadline := time.Now().Add(timeout)
	tmp := make([]byte, n)
	for len(buf) < n && time.Now().Before(deadline) {
		k, err := p.Read(tmp[:n-len(buf)])
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		buf = append(buf, tmp[:k]...)
	}
	return buf
}

func startServe(t *testing.T, sim *Simulator, slave byte) *PipeEnd {
	t.Helper()
	master, slaveEnd := Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, slaveEnd, rtu.NopPin{}, slave, sim) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve returned %v", err)
		}
	})
	return master
}

func TestServe(t *testing.T) {
	sim := newTestSimulator()
	sim.Model().Set(0x3000, 1)
	master := startServe(t, sim, 11)

	req, err := rtupacket.BuildRead(11, 0x3000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := master.Write(req); err != nil {
		t.Fatal(err)
	}
	got := readFrame(t, master, 7, time.Second)
	want := rtupacket.EncodeReadResponse(11, []uint16{1})
	if !bytes.Equal(got, want) {
		t.Errorf("response %X, want %X", got, want)
	}

	values := []uint16{3, 0, 11}
	req, err = rtupacket.BuildWriteMultiple(11, 0x0C00, values)
	if err != nil {
		t.Fatal(err)
	}
	master.Write(req)
	got = readFrame(t, master, rtupacket.WriteAckSize, time.Second)
	if err := rtupacket.Validate(got, 11, 0x10); err != nil {
		t.Errorf("write ack invalid: %v (%X)", err, got)
	}
	if v := sim.Model().Get(0x0C02); v != 11 {
		t.Errorf("FC.02 = %d, want 11", v)
	}
}

// busEvents records pin levels and port activity in order.
type busEvents struct {
	mu     sync.Mutex
	events []string
}

func (b *busEvents) add(e string) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *busEvents) list() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

type eventPin struct{ bus *busEvents }

func (p eventPin) Set(d rtu.Direction) error {
	p.bus.add(d.String())
	return nil
}

type eventPort struct {
	*PipeEnd
	bus *busEvents
}

func (p eventPort) Write(b []byte) (int, error) {
	p.bus.add("write")
	return p.PipeEnd.Write(b)
}

func (p eventPort) Drain() error {
	p.bus.add("drain")
	return p.PipeEnd.Drain()
}

func TestServe_DrivesDirectionPin(t *testing.T) {
	sim := newTestSimulator()
	master, slaveEnd := Pipe()
	bus := &busEvents{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, eventPort{slaveEnd, bus}, eventPin{bus}, 11, sim) }()

	master.Write(rtupacket.BuildWriteSingle(11, 0x0100, 7))
	got := readFrame(t, master, rtupacket.WriteAckSize, time.Second)
	if err := rtupacket.Validate(got, 11, 0x06); err != nil {
		t.Fatalf("ack invalid: %v (%X)", err, got)
	}

	// The pin returns to receive right after the drain; give Serve a moment.
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve returned %v", err)
	}

	want := []string{"receive", "transmit", "write", "drain", "receive"}
	if events := bus.list(); !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestServe_IgnoresOtherFrames(t *testing.T) {
	sim := newTestSimulator()
	master := startServe(t, sim, 11)

	other := rtupacket.BuildWriteSingle(12, 0x0100, 5)
	corrupt := rtupacket.BuildWriteSingle(11, 0x0101, 5)
	corrupt[len(corrupt)-1] ^= 0xFF
	broadcast := rtupacket.BuildWriteSingle(0, 0x0102, 5)

	for _, frame := range [][]byte{other, corrupt, broadcast} {
		master.Write(frame)
		if got := readFrame(t, master, 1, 100*time.Millisecond); len(got) != 0 {
			t.Errorf("unexpected response %X to %X", got, frame)
		}
	}
	if v := sim.Model().Get(0x0100); v != 0 {
		t.Errorf("frame for another slave was applied")
	}
	if v := sim.Model().Get(0x0101); v != 0 {
		t.Errorf("corrupt frame was applied")
	}
	if v := sim.Model().Get(0x0102); v != 5 {
		t.Errorf("broadcast write not applied")
	}

	// The line still works after the noise.
	master.Write(rtupacket.BuildWriteSingle(11, 0x0103, 9))
	got := readFrame(t, master, rtupacket.WriteAckSize, time.Second)
	if err := rtupacket.Validate(got, 11, 0x06); err != nil {
		t.Errorf("ack invalid after noise: %v (%X)", err, got)
	}
}

func TestServe_PartialFrameDiscarded(t *testing.T) {
	sim := newTestSimulator()
	master := startServe(t, sim, 11)

	full := rtupacket.BuildWriteSingle(11, 0x0100, 5)
	master.Write(full[:4])
	time.Sleep(3 * frameGap)

	master.Write(rtupacket.BuildWriteSingle(11, 0x0100, 6))
	got := readFrame(t, master, rtupacket.WriteAckSize, time.Second)
	if err := rtupacket.Validate(got, 11, 0x06); err != nil {
		t.Errorf("ack invalid: %v (%X)", err, got)
	}
	if v := sim.Model().Get(0x0100); v != 6 {
		t.Errorf("register = %d, want 6", v)
	}
}

func TestOpen_SeedsCommSettings(t *testing.T) {
	sim, storage := Open(config.SimulatorConfig{Persistence: config.PersistenceConfig{Type: "memory"}}, 5)
	defer storage.Close()
	if v := sim.Model().Get(0x0C02); v != 5 {
		t.Errorf("FC.02 = %d, want 5", v)
	}
}
