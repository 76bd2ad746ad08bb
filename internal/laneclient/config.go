package laneclient

import (
	"fmt"
	"time"
)

// Config holds the settings for one lane client. All fields are fixed at
// construction; the client never mutates them.
type Config struct {
	// LaneID identifies this lane to the coordination server.
	LaneID string

	// ServerHost is the hostname or address of the lane server.
	ServerHost string

	// ServerPort is the TCP port of the lane server.
	ServerPort int

	// HeartbeatInterval is the period between liveness messages.
	HeartbeatInterval time.Duration

	// ReconnectDelay is the fixed wait between failed connection attempts.
	ReconnectDelay time.Duration

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration
}

// SetDefaults fills zero-valued fields with sensible defaults.
func (c *Config) SetDefaults() {
	if c.ServerHost == "" {
		c.ServerHost = "127.0.0.1"
	}
	if c.ServerPort == 0 {
		c.ServerPort = 50005
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.LaneID == "" {
		return fmt.Errorf("lane-id is required")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("server port %d out of range", c.ServerPort)
	}
	return nil
}
