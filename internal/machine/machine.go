// Package machine holds the pinsetter-side collaborators that react to
// parsed messages from the two socket links. Hardware actuation is behind
// the GPIO interface; the default implementation only logs, real boards
// supply their own.
package machine

import (
	"sync"

	"github.com/lanekit/lanelink/pkg/log"
)

// PinCount is the number of controllable pins on the machine
// (lTwo, lThree, cFive, rThree, rTwo).
const PinCount = 5

// GPIO abstracts pin actuation so the machine logic is testable off-board.
type GPIO interface {
	// Write drives one pin to the given logic level.
	Write(pin int, high bool) error
}

// LogGPIO is a GPIO that records the intended level instead of driving
// hardware.
type LogGPIO struct {
	logger log.Logger
}

// NewLogGPIO creates a logging GPIO stub.
func NewLogGPIO(logger log.Logger) *LogGPIO {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &LogGPIO{logger: logger}
}

// Write logs the intended pin level.
func (g *LogGPIO) Write(pin int, high bool) error {
	g.logger.Debug("gpio write", log.Int("pin", pin), log.Bool("high", high))
	return nil
}

// Machine tracks pin state and applies pin-set commands. Zero in the state
// slices means standing, one means down.
type Machine struct {
	gpio   GPIO
	gpios  [PinCount]int
	logger log.Logger

	mu       sync.Mutex
	standing [PinCount]int
}

// New creates a machine with the given break-solenoid GPIO numbers, one
// per pin. gpios may be nil for the conventional BCM assignment.
func New(gpio GPIO, gpios []int, logger log.Logger) *Machine {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if gpio == nil {
		gpio = NewLogGPIO(logger)
	}
	m := &Machine{gpio: gpio, logger: logger}
	defaults := [PinCount]int{17, 27, 22, 23, 24}
	copy(m.gpios[:], defaults[:])
	for i := 0; i < PinCount && i < len(gpios); i++ {
		if gpios[i] > 0 {
			m.gpios[i] = gpios[i]
		}
	}
	return m
}

// Reset returns every pin to standing.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Info("manual reset, all pins standing")
	for i := range m.standing {
		m.standing[i] = 0
		_ = m.gpio.Write(m.gpios[i], false)
	}
}

// PinState returns a copy of the current pin states.
func (m *Machine) PinState() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, PinCount)
	copy(out, m.standing[:])
	return out
}

// ApplyPinSet knocks down the pins named by index, driving the matching
// break solenoid. Out-of-range indices are logged and skipped.
func (m *Machine) ApplyPinSet(pins []int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pins {
		if p < 0 || p >= PinCount {
			m.logger.Warn("pin index out of range", log.Int("pin", p))
			continue
		}
		m.standing[p] = 1
		_ = m.gpio.Write(m.gpios[p], true)
	}
}

// ProcessBallEvent applies breaks for every pin still standing, then marks
// them down. This mirrors the machine's single-ball cycle.
func (m *Machine) ProcessBallEvent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Info("processing ball event")
	for i := range m.standing {
		if m.standing[i] == 0 {
			_ = m.gpio.Write(m.gpios[i], true)
			m.standing[i] = 1
		}
	}
}
