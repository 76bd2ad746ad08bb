package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (LANELINK_*). It respects flags that have been explicitly set (changed
// map). Returns an error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("lane-id", os.Getenv("LANELINK_LANE_ID"), &cfg.LaneID)
	s.setString("server-host", os.Getenv("LANELINK_SERVER_HOST"), &cfg.ServerHost)
	s.setString("sensor-socket", os.Getenv("LANELINK_SENSOR_SOCKET"), &cfg.SensorSocket)

	if err := s.setIntFromString("server-port", os.Getenv("LANELINK_SERVER_PORT"), &cfg.ServerPort); err != nil {
		return err
	}

	if err := s.setDuration("heartbeat-interval", os.Getenv("LANELINK_HEARTBEAT_INTERVAL"), &cfg.HeartbeatInterval); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-delay", os.Getenv("LANELINK_RECONNECT_DELAY"), &cfg.ReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", os.Getenv("LANELINK_DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("sensor-connect-timeout", os.Getenv("LANELINK_SENSOR_CONNECT_TIMEOUT"), &cfg.SensorConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("sensor-wait-timeout", os.Getenv("LANELINK_SENSOR_WAIT_TIMEOUT"), &cfg.SensorWaitTimeout); err != nil {
		return err
	}

	return nil
}
