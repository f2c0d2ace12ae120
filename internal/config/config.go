// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads controller configuration from defaults, an optional YAML
// file and ROTOSTAT_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"github.com/Thermoquad/rotostat/internal/motor"
	"github.com/Thermoquad/rotostat/pkg/lvfv"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "ROTOSTAT_"

// Transport modes
const (
	ModeDuplex = "duplex" // every command frame is answered immediately
	ModePoll   = "poll"   // replies are fetched with a RESPONSE frame
)

// Config is the complete controller configuration
type Config struct {
	Parameters ParametersConfig `yaml:"parameters" envPrefix:"PARAM_"`
	Controller ControllerConfig `yaml:"controller"`
	Emergency  EmergencyConfig  `yaml:"emergency"`
	Transport  TransportConfig  `yaml:"transport"`
	Drive      DriveConfig      `yaml:"drive"`
	NVS        NVSConfig        `yaml:"nvs"`
	Log        LogConfig        `yaml:"log"`
}

// ParametersConfig holds bounds and power-on defaults of the motion parameters
type ParametersConfig struct {
	Frequency    RangeConfig     `yaml:"frequency" envPrefix:"FREQUENCY_"`
	Acceleration RangeConfig     `yaml:"acceleration" envPrefix:"ACCELERATION_"`
	Deceleration RangeConfig     `yaml:"deceleration" envPrefix:"DECELERATION_"`
	Direction    DirectionConfig `yaml:"direction" envPrefix:"DIRECTION_"`
}

// RangeConfig is an inclusive range with a default inside it
type RangeConfig struct {
	Min     uint16 `yaml:"min" env:"MIN"`
	Max     uint16 `yaml:"max" env:"MAX"`
	Default uint16 `yaml:"default" env:"DEFAULT"`
}

// DirectionConfig lists the two accepted direction values
type DirectionConfig struct {
	Values  []uint16 `yaml:"values" env:"VALUES" envSeparator:","`
	Default uint16   `yaml:"default" env:"DEFAULT"`
}

// ControllerConfig sizes the mailbox and bounds the dispatch wait
type ControllerConfig struct {
	MailboxSize     int           `yaml:"mailboxSize" env:"MAILBOX_SIZE"`
	DispatchTimeout time.Duration `yaml:"dispatchTimeout" env:"DISPATCH_TIMEOUT"`
}

// EmergencyConfig selects the latch recovery path
type EmergencyConfig struct {
	StopRecovers bool `yaml:"stopRecovers" env:"EMERGENCY_STOP_RECOVERS"`
}

// TransportConfig selects duplex or polled replies
type TransportConfig struct {
	Mode      string        `yaml:"mode" env:"TRANSPORT_MODE"`
	PollDelay time.Duration `yaml:"pollDelay" env:"POLL_DELAY"`
}

// DriveConfig scales simulated ramp times. 1.0 is real time.
type DriveConfig struct {
	TimeScale float64 `yaml:"timeScale" env:"DRIVE_TIME_SCALE"`
}

// NVSConfig locates the parameter store file. Empty disables persistence.
type NVSConfig struct {
	Path string `yaml:"path" env:"NVS_PATH"`
}

// LogConfig routes logs to a rotating file when File is set
type LogConfig struct {
	File          string        `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB     int           `yaml:"maxSizeMb" env:"LOG_MAX_SIZE_MB"`
	MaxBackups    int           `yaml:"maxBackups" env:"LOG_MAX_BACKUPS"`
	MaxAgeDays    int           `yaml:"maxAgeDays" env:"LOG_MAX_AGE_DAYS"`
	Compress      bool          `yaml:"compress" env:"LOG_COMPRESS"`
	StatsInterval time.Duration `yaml:"statsInterval" env:"STATS_INTERVAL"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Parameters: ParametersConfig{
			Frequency:    RangeConfig{Min: 1, Max: 150, Default: 50},
			Acceleration: RangeConfig{Min: 1, Max: 50, Default: 5},
			Deceleration: RangeConfig{Min: 1, Max: 50, Default: 3},
			Direction:    DirectionConfig{Values: []uint16{0, 1}, Default: 1},
		},
		Controller: ControllerConfig{
			MailboxSize:     8,
			DispatchTimeout: 2 * time.Second,
		},
		Emergency: EmergencyConfig{StopRecovers: true},
		Transport: TransportConfig{
			Mode:      ModeDuplex,
			PollDelay: 400 * time.Millisecond,
		},
		Drive: DriveConfig{TimeScale: 1.0},
		Log: LogConfig{
			MaxSizeMB:     10,
			MaxBackups:    3,
			MaxAgeDays:    28,
			StatsInterval: time.Minute,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if not
// empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate reports every problem in the configuration
func (c *Config) Validate() error {
	var err error

	err = multierr.Append(err, c.Parameters.Frequency.validate("frequency"))
	err = multierr.Append(err, c.Parameters.Acceleration.validate("acceleration"))
	err = multierr.Append(err, c.Parameters.Deceleration.validate("deceleration"))

	dir := c.Parameters.Direction
	if len(dir.Values) != 2 {
		err = multierr.Append(err, fmt.Errorf("direction: exactly two values required, got %d", len(dir.Values)))
	} else {
		if dir.Values[0] == dir.Values[1] {
			err = multierr.Append(err, fmt.Errorf("direction: values must differ"))
		}
		for _, v := range dir.Values {
			if v > lvfv.MaxValue {
				err = multierr.Append(err, fmt.Errorf("direction: value %d above the link maximum %d", v, lvfv.MaxValue))
			}
		}
		if dir.Default != dir.Values[0] && dir.Default != dir.Values[1] {
			err = multierr.Append(err, fmt.Errorf("direction: default %d is not one of %v", dir.Default, dir.Values))
		}
	}

	if c.Controller.MailboxSize < 1 {
		err = multierr.Append(err, fmt.Errorf("controller: mailboxSize must be at least 1"))
	}
	if c.Controller.DispatchTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("controller: dispatchTimeout must be positive"))
	}

	switch c.Transport.Mode {
	case ModeDuplex, ModePoll:
	default:
		err = multierr.Append(err, fmt.Errorf("transport: unknown mode %q (use %s or %s)", c.Transport.Mode, ModeDuplex, ModePoll))
	}
	if c.Transport.PollDelay < 0 {
		err = multierr.Append(err, fmt.Errorf("transport: pollDelay must not be negative"))
	}

	if c.Drive.TimeScale < 0 {
		err = multierr.Append(err, fmt.Errorf("drive: timeScale must not be negative"))
	}

	return err
}

func (r RangeConfig) validate(name string) error {
	var err error
	if r.Min > r.Max {
		err = multierr.Append(err, fmt.Errorf("%s: min %d above max %d", name, r.Min, r.Max))
	}
	// Larger values cannot be sent, so they would be unreachable
	if r.Max > lvfv.MaxValue {
		err = multierr.Append(err, fmt.Errorf("%s: max %d above the link maximum %d", name, r.Max, lvfv.MaxValue))
	}
	if r.Default < r.Min || r.Default > r.Max {
		err = multierr.Append(err, fmt.Errorf("%s: default %d outside [%d, %d]", name, r.Default, r.Min, r.Max))
	}
	return err
}

// Limits converts the parameter bounds for the state machine
func (c *Config) Limits() motor.Limits {
	p := c.Parameters
	l := motor.Limits{
		Frequency:    motor.Bounds{Min: p.Frequency.Min, Max: p.Frequency.Max},
		Acceleration: motor.Bounds{Min: p.Acceleration.Min, Max: p.Acceleration.Max},
		Deceleration: motor.Bounds{Min: p.Deceleration.Min, Max: p.Deceleration.Max},
	}
	copy(l.Directions[:], p.Direction.Values)
	return l
}

// Defaults returns the power-on parameter values
func (c *Config) Defaults() motor.Parameters {
	p := c.Parameters
	return motor.Parameters{
		Frequency:    p.Frequency.Default,
		Acceleration: p.Acceleration.Default,
		Deceleration: p.Deceleration.Default,
		Direction:    p.Direction.Default,
	}
}
