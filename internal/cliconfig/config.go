package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSensorSocket is where the ball sensor daemon listens.
const DefaultSensorSocket = "/tmp/ball_sensor.sock"

// Config holds CLI configuration for lanelink.
type Config struct {
	LaneID string

	ServerHost string
	ServerPort int

	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	DialTimeout       time.Duration

	SensorSocket         string
	SensorConnectTimeout time.Duration
	SensorWaitTimeout    time.Duration

	PinMap []int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ServerHost:           "127.0.0.1",
		ServerPort:           50005,
		HeartbeatInterval:    30 * time.Second,
		ReconnectDelay:       2 * time.Second,
		DialTimeout:          10 * time.Second,
		SensorSocket:         DefaultSensorSocket,
		SensorConnectTimeout: 5 * time.Second,
		SensorWaitTimeout:    10 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.LaneID == "" {
		return fmt.Errorf("lane-id is required")
	}
	if c.ServerHost == "" {
		return fmt.Errorf("server-host is required")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("server-port %d out of range", c.ServerPort)
	}
	if c.SensorSocket == "" {
		return fmt.Errorf("sensor-socket is required")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	return nil
}

var logger zerolog.Logger

func init() {
	logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// Logger returns the package logger.
func Logger() zerolog.Logger {
	return logger
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not
// changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setIntSlice sets an int slice if non-empty and flag not changed.
func (s *configSetter) setIntSlice(flag string, value []int, dst *[]int) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]int(nil), value...)
}
