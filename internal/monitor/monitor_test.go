// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/ffutop/hs321/drive"
)

type fakeDrive struct {
	state    drive.RunState
	fault    drive.FaultCode
	faultErr error
	group    drive.Group
	count    int
}

func (f *fakeDrive) ReadRunningState(ctx context.Context) (drive.RunState, error) {
	return f.state, nil
}

func (f *fakeDrive) ReadFaultCode(ctx context.Context) (drive.FaultCode, error) {
	return f.fault, f.faultErr
}

func (f *fakeDrive) ReadGroup(ctx context.Context, group drive.Group, sub uint8, count int) ([]uint16, error) {
	f.group, f.count = group, count
	values := make([]uint16, count)
	for i := range values {
		values[i] = uint16(500 + i)
	}
	return values, nil
}

func TestPoller_Poll(t *testing.T) {
	d := &fakeDrive{state: drive.StateForward, fault: 0}
	p := &Poller{Drive: d, MonitoringCount: 4}

	s, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if s.RunState != "forward" || s.State != 1 || s.FaultName != "none" {
		t.Errorf("snapshot = %+v", s)
	}
	if d.group != drive.GroupD || d.count != 4 || len(s.Monitoring) != 4 || s.Monitoring[3] != 503 {
		t.Errorf("monitoring read group=%v count=%d values=%v", d.group, d.count, s.Monitoring)
	}

	d.faultErr = errors.New("bus down")
	if _, err := p.Poll(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestPoller_RunContinuesAfterFailure(t *testing.T) {
	d := &fakeDrive{state: drive.StateStopped, faultErr: errors.New("timeout")}
	var mu sync.Mutex
	var published []Snapshot
	p := &Poller{
		Drive:    d,
		Interval: 10 * time.Millisecond,
		Publisher: PublisherFunc(func(ctx context.Context, s Snapshot) error {
			mu.Lock()
			defer mu.Unlock()
			published = append(published, s)
			return nil
		}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(35 * time.Millisecond)
	mu.Lock()
	if len(published) != 0 {
		t.Errorf("published %d snapshots from failed polls", len(published))
	}
	mu.Unlock()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}

	d.faultErr = nil
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	go func() { done <- p.Run(ctx) }()
	time.Sleep(35 * time.Millisecond)
	cancel()
	<-done
	mu.Lock()
	defer mu.Unlock()
	if len(published) == 0 {
		t.Error("no snapshot published")
	}
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	paho.Client
	connected bool
	messages  []publishedMessage
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	c.messages = append(c.messages, publishedMessage{topic, qos, retained, b})
	return newFakeToken(nil)
}

func (c *fakeClient) Disconnect(uint) { c.connected = false }

func TestMQTTPublisher(t *testing.T) {
	client := &fakeClient{connected: true}
	p := &MQTTPublisher{client: client, prefix: "plant/hs321", qos: 1, retained: true}

	s := Snapshot{RunState: "reverse", State: 2, Fault: 0, FaultName: "none", Monitoring: []uint16{5000}}
	if err := p.Publish(context.Background(), s); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(client.messages) != 1 {
		t.Fatalf("published %d messages", len(client.messages))
	}
	msg := client.messages[0]
	if msg.topic != "plant/hs321/state" || msg.qos != 1 || !msg.retained {
		t.Errorf("message = %+v", msg)
	}
	var got Snapshot
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.RunState != "reverse" || len(got.Monitoring) != 1 || got.Monitoring[0] != 5000 {
		t.Errorf("payload = %+v", got)
	}

	p.Close()
	last := client.messages[len(client.messages)-1]
	if last.topic != "plant/hs321/status" || string(last.payload) != "offline" {
		t.Errorf("close published %+v", last)
	}
	if client.connected {
		t.Error("client still connected after Close")
	}
}
