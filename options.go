package lanelink

import (
	"github.com/lanekit/lanelink/internal/machine"
	"github.com/lanekit/lanelink/pkg/log"
)

// LaneHandler receives every parsed message from the lane server.
// It runs on the lane reader goroutine and must not block.
type LaneHandler func(doc Document)

// SensorHandler receives every parsed event from the sensor daemon,
// after the built-in ball-detection handling has run.
type SensorHandler func(doc Document)

// GPIO abstracts pin actuation. Supply a real implementation on-board;
// the default only logs.
type GPIO = machine.GPIO

type options struct {
	logger        log.Logger
	laneHandler   LaneHandler
	sensorHandler SensorHandler
	gpio          machine.GPIO
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// Option configures a LaneLink instance.
type Option func(*options)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLaneHandler registers a handler for lane server messages.
func WithLaneHandler(h LaneHandler) Option {
	return func(o *options) {
		o.laneHandler = h
	}
}

// WithSensorHandler registers a handler for sensor daemon events.
func WithSensorHandler(h SensorHandler) Option {
	return func(o *options) {
		o.sensorHandler = h
	}
}

// WithGPIO sets the pin actuation backend.
func WithGPIO(g GPIO) Option {
	return func(o *options) {
		o.gpio = g
	}
}
