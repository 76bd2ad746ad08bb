package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type FileConfig struct {
	LaneID string `toml:"lane_id"`

	ServerHost string `toml:"server_host"`
	ServerPort int    `toml:"server_port"`

	HeartbeatInterval string `toml:"heartbeat_interval"`
	ReconnectDelay    string `toml:"reconnect_delay"`
	DialTimeout       string `toml:"dial_timeout"`

	SensorSocket         string `toml:"sensor_socket"`
	SensorConnectTimeout string `toml:"sensor_connect_timeout"`
	SensorWaitTimeout    string `toml:"sensor_wait_timeout"`

	PinMap []int `toml:"pin_map"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.lanelink/config.toml if the home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".lanelink", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("lane-id", fc.LaneID, &cfg.LaneID)
	s.setString("server-host", fc.ServerHost, &cfg.ServerHost)
	s.setInt("server-port", fc.ServerPort, &cfg.ServerPort)
	s.setString("sensor-socket", fc.SensorSocket, &cfg.SensorSocket)

	if err := s.setDuration("heartbeat-interval", fc.HeartbeatInterval, &cfg.HeartbeatInterval); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-delay", fc.ReconnectDelay, &cfg.ReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("sensor-connect-timeout", fc.SensorConnectTimeout, &cfg.SensorConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("sensor-wait-timeout", fc.SensorWaitTimeout, &cfg.SensorWaitTimeout); err != nil {
		return err
	}

	s.setIntSlice("pin-map", fc.PinMap, &cfg.PinMap)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
