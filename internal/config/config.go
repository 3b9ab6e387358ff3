// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	Slave     int             `mapstructure:"slave" validate:"min=1,max=247"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Direction DirectionConfig `mapstructure:"direction"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File  string `mapstructure:"file"` // Log file path
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Backend  string `mapstructure:"backend" validate:"oneof=gridx bugst tcp sim"`
	Device   string `mapstructure:"device" validate:"required_unless=Backend sim"` // host:port for tcp
	BaudRate int    `mapstructure:"baud_rate" validate:"gt=0"`
	DataBits int    `mapstructure:"data_bits" validate:"oneof=5 6 7 8"`
	Parity   string `mapstructure:"parity" validate:"oneof=N E O"`
	StopBits int    `mapstructure:"stop_bits" validate:"oneof=1 2"`

	// PollInterval bounds a single Read call on the port.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	StallTimeout time.Duration `mapstructure:"stall_timeout"`

	RS485 RS485Config `mapstructure:"rs485"`
}

// RS485Config enables kernel-driven RS-485 direction control (gridx backend only).
type RS485Config struct {
	Enabled            bool          `mapstructure:"enabled"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// DirectionConfig selects the output that drives the transceiver enable.
type DirectionConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=none rts dtr gpio"`
	// Chip and GPIO name the character device and line offset for gpio.
	Chip      string `mapstructure:"chip"`
	GPIO      int    `mapstructure:"gpio" validate:"min=0"`
	ActiveLow bool   `mapstructure:"active_low"`
}

// MetricsConfig defines the Prometheus listener. Empty address disables it.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// MonitorConfig defines the telemetry poll loop.
type MonitorConfig struct {
	Interval        time.Duration `mapstructure:"interval" validate:"gt=0"`
	MonitoringCount int           `mapstructure:"monitoring_count" validate:"min=0,max=125"`
}

// MQTTConfig defines the telemetry broker. Empty broker disables publishing.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         byte   `mapstructure:"qos" validate:"max=2"`
	Retained    bool   `mapstructure:"retained"`
}

// SimulatorConfig defines the drive simulator used by the sim backend
// and by the simulate command.
type SimulatorConfig struct {
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig defines data storage settings
type PersistenceConfig struct {
	Type string `mapstructure:"type" validate:"oneof=memory file mmap sqlite"`
	Path string `mapstructure:"path" validate:"required_unless=Type memory"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"slave":     "slave",
	"device":    "serial.device",
	"baud":      "serial.baud_rate",
	"backend":   "serial.backend",
	"log-level": "log.level",
}

// LoadConfig loads configuration from file, the HS321_* environment and
// flags. A missing config file is only an error when configFile is set.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/hs321/")
		v.AddConfigPath("$HOME/.hs321")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("HS321")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.Serial)
	config.Log.Level = strings.ToLower(config.Log.Level)
	if config.Direction.Chip == "" {
		config.Direction.Chip = "gpiochip0"
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the structural constraints of cfg.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("slave", 1)
	v.SetDefault("serial.backend", "bugst")
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("direction.type", "none")
	v.SetDefault("log.level", "info")
	v.SetDefault("monitor.interval", time.Second)
	v.SetDefault("monitor.monitoring_count", 8)
	v.SetDefault("mqtt.client_id", "hs321")
	v.SetDefault("mqtt.topic_prefix", "hs321")
	v.SetDefault("simulator.persistence.type", "memory")
}

func fixupSerial(s *SerialConfig) {
	s.Backend = strings.ToLower(s.Backend)
	s.Parity = strings.ToUpper(s.Parity)
	if s.PollInterval == 0 {
		s.PollInterval = 2 * time.Millisecond
	}
	if s.StallTimeout == 0 {
		s.StallTimeout = 2000 * time.Millisecond
	}
}
