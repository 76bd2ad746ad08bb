package cliconfig

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServerHost != "127.0.0.1" {
		t.Errorf("ServerHost = %q, want 127.0.0.1", cfg.ServerHost)
	}
	if cfg.ServerPort != 50005 {
		t.Errorf("ServerPort = %d, want 50005", cfg.ServerPort)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 30s", cfg.HeartbeatInterval)
	}
	if cfg.ReconnectDelay != 2*time.Second {
		t.Errorf("ReconnectDelay = %v, want 2s", cfg.ReconnectDelay)
	}
	if cfg.SensorSocket != DefaultSensorSocket {
		t.Errorf("SensorSocket = %q, want %q", cfg.SensorSocket, DefaultSensorSocket)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) { c.LaneID = "lane_01" }, false},
		{"missing lane id", func(c *Config) {}, true},
		{"missing server host", func(c *Config) { c.LaneID = "x"; c.ServerHost = "" }, true},
		{"port out of range", func(c *Config) { c.LaneID = "x"; c.ServerPort = 70000 }, true},
		{"zero port", func(c *Config) { c.LaneID = "x"; c.ServerPort = 0 }, true},
		{"missing sensor socket", func(c *Config) { c.LaneID = "x"; c.SensorSocket = "" }, true},
		{"zero heartbeat", func(c *Config) { c.LaneID = "x"; c.HeartbeatInterval = 0 }, true},
		{"zero reconnect delay", func(c *Config) { c.LaneID = "x"; c.ReconnectDelay = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("LANELINK_LANE_ID", "lane_09")
	t.Setenv("LANELINK_SERVER_PORT", "60123")
	t.Setenv("LANELINK_HEARTBEAT_INTERVAL", "5s")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err != nil {
		t.Fatalf("ApplyEnvConfig: %v", err)
	}

	if cfg.LaneID != "lane_09" {
		t.Errorf("LaneID = %q, want lane_09", cfg.LaneID)
	}
	if cfg.ServerPort != 60123 {
		t.Errorf("ServerPort = %d, want 60123", cfg.ServerPort)
	}
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 5s", cfg.HeartbeatInterval)
	}
}

func TestApplyEnvConfigRespectsChangedFlags(t *testing.T) {
	t.Setenv("LANELINK_LANE_ID", "env_lane")

	cfg := DefaultConfig()
	cfg.LaneID = "flag_lane"
	changed := map[string]bool{"lane-id": true}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig: %v", err)
	}

	if cfg.LaneID != "flag_lane" {
		t.Errorf("LaneID = %q, want flag_lane (flag wins over env)", cfg.LaneID)
	}
}

func TestApplyEnvConfigBadDuration(t *testing.T) {
	t.Setenv("LANELINK_RECONNECT_DELAY", "not-a-duration")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err == nil {
		t.Error("ApplyEnvConfig accepted invalid duration")
	}
}
