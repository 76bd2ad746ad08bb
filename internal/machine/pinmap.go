package machine

import (
	"sync"
	"time"

	"github.com/lanekit/lanelink/pkg/log"
)

// PinMap maps sensor indices to GPIO pin numbers and pulses them.
type PinMap struct {
	gpio   GPIO
	logger log.Logger

	mu   sync.Mutex
	pins []int
}

// NewPinMap creates a sensor-to-pin mapping.
func NewPinMap(gpio GPIO, pins []int, logger log.Logger) *PinMap {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if gpio == nil {
		gpio = NewLogGPIO(logger)
	}
	return &PinMap{gpio: gpio, logger: logger, pins: append([]int(nil), pins...)}
}

// Set replaces the mapping.
func (p *PinMap) Set(pins []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pins = append(p.pins[:0], pins...)
	p.logger.Info("pin map updated", log.Any("pins", pins))
}

// PinFor returns the pin mapped to a sensor index, or -1 if unmapped.
func (p *PinMap) PinFor(sensor int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sensor < 0 || sensor >= len(p.pins) {
		return -1
	}
	return p.pins[sensor]
}

// Pulse drives the pin for a sensor high for d, then low again.
func (p *PinMap) Pulse(sensor int, d time.Duration) {
	pin := p.PinFor(sensor)
	if pin < 0 {
		p.logger.Warn("no pin mapped for sensor", log.Int("sensor", sensor))
		return
	}
	_ = p.gpio.Write(pin, true)
	time.Sleep(d)
	_ = p.gpio.Write(pin, false)
}
