// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/ffutop/hs321/internal/config"
)

const publishTimeout = 5 * time.Second

// MQTTPublisher publishes snapshots as JSON to <prefix>/state and keeps
// <prefix>/status at online/offline.
type MQTTPublisher struct {
	client   paho.Client
	prefix   string
	qos      byte
	retained bool
}

// NewMQTTPublisher prepares a client for cfg. Connect must be called before
// publishing.
func NewMQTTPublisher(cfg config.MQTTConfig) *MQTTPublisher {
	p := &MQTTPublisher{prefix: cfg.TopicPrefix, qos: cfg.QoS, retained: cfg.Retained}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetWill(p.StatusTopic(), "offline", 1, true)

	opts.SetOnConnectHandler(func(client paho.Client) {
		slog.Info("Connected to MQTT broker", "broker", cfg.Broker)
		if token := client.Publish(p.StatusTopic(), 1, true, "online"); token.Wait() && token.Error() != nil {
			slog.Warn("Failed to publish online status", "err", token.Error())
		}
	})
	opts.SetConnectionLostHandler(func(client paho.Client, err error) {
		slog.Error("MQTT connection lost", "err", err)
	})

	p.client = paho.NewClient(opts)
	return p
}

// StateTopic is where snapshots are published.
func (p *MQTTPublisher) StateTopic() string {
	return p.prefix + "/state"
}

// StatusTopic carries the availability of the monitor.
func (p *MQTTPublisher) StatusTopic() string {
	return p.prefix + "/status"
}

// Connect connects to the broker.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

// Publish sends s to the state topic.
func (p *MQTTPublisher) Publish(ctx context.Context, s Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	token := p.client.Publish(p.StateTopic(), p.qos, p.retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish to %s timed out", p.StateTopic())
	}
	return token.Error()
}

// Close marks the monitor offline and disconnects.
func (p *MQTTPublisher) Close() {
	if !p.client.IsConnected() {
		return
	}
	if token := p.client.Publish(p.StatusTopic(), 1, true, "offline"); token.WaitTimeout(time.Second) && token.Error() != nil {
		slog.Warn("Failed to publish offline status", "err", token.Error())
	}
	p.client.Disconnect(250)
}
