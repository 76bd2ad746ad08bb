// Package lanelink connects a bowling pinsetter to its lane-coordination
// server and local ball sensor daemon.
//
// A LaneLink instance owns two socket clients: a resilient TCP client to
// the lane server (reconnects forever, heartbeats while connected) and a
// connect-once Unix-domain client to the sensor daemon. Both speak a
// newline-delimited protocol; parsed messages are handed to handlers
// registered via options.
//
// Example usage:
//
//	cfg := lanelink.Config{LaneID: "lane_01"}
//	link, err := lanelink.New(cfg, lanelink.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := link.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	// ... run until shutdown signal ...
//	_ = link.Stop()
package lanelink

import (
	"context"
	"sync"
	"time"

	"github.com/lanekit/lanelink/internal/laneclient"
	"github.com/lanekit/lanelink/internal/lifecycle"
	"github.com/lanekit/lanelink/internal/machine"
	"github.com/lanekit/lanelink/internal/sensorclient"
	"github.com/lanekit/lanelink/internal/wire"
	"github.com/lanekit/lanelink/pkg/log"
)

// Document is a parsed JSON message from either peer.
type Document = wire.Document

// State is the lifecycle state of a LaneLink instance.
type State = lifecycle.State

// Lifecycle states.
const (
	StateStopped  = lifecycle.StateStopped
	StateStarting = lifecycle.StateStarting
	StateRunning  = lifecycle.StateRunning
	StateStopping = lifecycle.StateStopping
	StateCrashed  = lifecycle.StateCrashed
)

// Lifecycle errors.
var (
	ErrAlreadyRunning = lifecycle.ErrAlreadyRunning
	ErrNotRunning     = lifecycle.ErrNotRunning
)

// Config holds the configuration for a LaneLink instance.
type Config struct {
	// LaneID identifies this lane to the coordination server. Required.
	LaneID string

	// ServerHost and ServerPort locate the lane server.
	ServerHost string
	ServerPort int

	// HeartbeatInterval is the liveness message period on the lane link.
	HeartbeatInterval time.Duration

	// ReconnectDelay is the fixed wait between failed lane connection
	// attempts.
	ReconnectDelay time.Duration

	// DialTimeout bounds a single lane connection attempt.
	DialTimeout time.Duration

	// SensorSocket is the sensor daemon's Unix socket path.
	SensorSocket string

	// SensorConnectTimeout bounds the one-time sensor connect.
	SensorConnectTimeout time.Duration

	// SensorWaitTimeout bounds waiting for the daemon socket to appear.
	SensorWaitTimeout time.Duration

	// PinMap maps sensor indices to GPIO pins.
	PinMap []int
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
	if c.SensorSocket == "" {
		c.SensorSocket = "/tmp/ball_sensor.sock"
	}
	if c.SensorConnectTimeout <= 0 {
		c.SensorConnectTimeout = 5 * time.Second
	}
	if c.SensorWaitTimeout <= 0 {
		c.SensorWaitTimeout = 10 * time.Second
	}
}

// LaneLink composes the lane and sensor clients with the pinsetter
// collaborators. Create with New, then Start.
type LaneLink struct {
	config    Config
	opts      options
	logger    log.Logger
	lifecycle *lifecycle.Manager

	lane    *laneclient.Client
	sensor  *sensorclient.Client
	machine *machine.Machine
	pinMap  *machine.PinMap

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a LaneLink instance in StateStopped.
func New(cfg Config, opts ...Option) (*LaneLink, error) {
	cfg.SetDefaults()

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	laneCfg := laneclient.Config{
		LaneID:            cfg.LaneID,
		ServerHost:        cfg.ServerHost,
		ServerPort:        cfg.ServerPort,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectDelay:    cfg.ReconnectDelay,
		DialTimeout:       cfg.DialTimeout,
	}
	if err := laneCfg.Validate(); err != nil {
		return nil, err
	}

	l := &LaneLink{
		config:    cfg,
		opts:      o,
		logger:    logger,
		lifecycle: lifecycle.NewManager(logger),
	}

	l.machine = machine.New(o.gpio, cfg.PinMap, logger)
	l.pinMap = machine.NewPinMap(o.gpio, cfg.PinMap, logger)
	l.lane = laneclient.New(laneCfg, laneclient.HandlerFunc(l.onLaneMessage), logger)
	l.sensor = sensorclient.New(cfg.SensorSocket, logger)

	return l, nil
}

// Start brings both links up. The sensor daemon is a local always-up peer:
// if its socket cannot be reached within the configured timeouts, Start
// fails and the instance is left Crashed. The lane link only begins its
// background connect loop; an unreachable lane server is retried forever
// and is not a startup failure.
func (l *LaneLink) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lifecycle.CanStart() {
		return ErrAlreadyRunning
	}
	if err := l.lifecycle.TransitionTo(StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.ctx = runCtx
	l.cancel = cancel
	l.lifecycle.SetCancel(cancel)

	if err := sensorclient.WaitForSocket(runCtx, l.config.SensorSocket, l.config.SensorWaitTimeout, l.logger); err != nil {
		cancel()
		_ = l.lifecycle.TransitionTo(StateCrashed, "sensor socket unavailable")
		return err
	}
	if err := l.sensor.Connect(l.config.SensorConnectTimeout); err != nil {
		cancel()
		_ = l.lifecycle.TransitionTo(StateCrashed, "sensor daemon unreachable")
		return err
	}
	if err := l.sensor.Start(sensorclient.EventHandlerFunc(l.onSensorEvent)); err != nil {
		cancel()
		_ = l.lifecycle.TransitionTo(StateCrashed, "sensor reader failed")
		return err
	}
	if err := l.lane.Start(); err != nil {
		l.sensor.Stop()
		cancel()
		_ = l.lifecycle.TransitionTo(StateCrashed, "lane client failed")
		return err
	}

	l.lifecycle.AddWorker()
	go func() {
		defer l.lifecycle.WorkerDone()
		<-runCtx.Done()
		l.lane.Stop()
		l.sensor.Stop()
	}()

	return l.lifecycle.TransitionTo(StateRunning, "clients started")
}

// Stop gracefully shuts both links down and joins their goroutines.
// Returns nil on graceful shutdown.
func (l *LaneLink) Stop() error {
	l.mu.Lock()
	if !l.lifecycle.CanStop() {
		l.mu.Unlock()
		return ErrNotRunning
	}
	if err := l.lifecycle.TransitionTo(StateStopping, "Stop() called"); err != nil {
		l.mu.Unlock()
		return err
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()

	err := l.lifecycle.WaitWithTimeout(lifecycle.ShutdownTimeout)
	if err != nil {
		_ = l.lifecycle.TransitionTo(StateCrashed, "shutdown timeout")
	} else {
		_ = l.lifecycle.TransitionTo(StateStopped, "graceful shutdown")
	}
	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (l *LaneLink) Status() State {
	return l.lifecycle.State()
}

// LaneConnected reports whether the lane server link is currently up.
func (l *LaneLink) LaneConnected() bool {
	return l.lane.IsConnected()
}

// SendBowlerMove transfers a bowler to another lane.
func (l *LaneLink) SendBowlerMove(bowlerData Document, toLane, moveID string) error {
	return l.lane.SendBowlerMove(bowlerData, toLane, moveID)
}

// SendTeamMove transfers a whole team to another lane.
func (l *LaneLink) SendTeamMove(teamData Document, toLane string) error {
	return l.lane.SendTeamMove(teamData, toLane)
}

// SendFrameData reports one scored frame for a bowler.
func (l *LaneLink) SendFrameData(bowlerName string, frameNum int, frameData Document) error {
	return l.lane.SendFrameData(bowlerName, frameNum, frameData)
}

// SendGameComplete reports a finished game.
func (l *LaneLink) SendGameComplete(gameData Document) error {
	return l.lane.SendGameComplete(gameData)
}

// RequestLastBall asks the sensor daemon for its most recent detection.
func (l *LaneLink) RequestLastBall() error {
	return l.sensor.SendLastBall()
}

// SetPins tells the sensor daemon which pins to set, by index, and applies
// the same set to the local machine state.
func (l *LaneLink) SetPins(pins []int) error {
	l.machine.ApplyPinSet(pins)
	return l.sensor.SendPinSet(pins)
}

// PulsePin briefly drives the solenoid mapped to a sensor index.
func (l *LaneLink) PulsePin(sensor int, d time.Duration) {
	l.pinMap.Pulse(sensor, d)
}

// SetPinMap replaces the sensor-to-GPIO mapping at runtime.
func (l *LaneLink) SetPinMap(pins []int) {
	l.pinMap.Set(pins)
}

// ResetPins returns every pin to standing.
func (l *LaneLink) ResetPins() {
	l.machine.Reset()
}

// PinState returns the current pin states (0 standing, 1 down).
func (l *LaneLink) PinState() []int {
	return l.machine.PinState()
}

// onLaneMessage runs on the lane client's reader goroutine.
func (l *LaneLink) onLaneMessage(doc Document) {
	if l.opts.laneHandler != nil {
		l.opts.laneHandler(doc)
	}
}

// onSensorEvent runs on the sensor client's reader goroutine. A ball
// detection drives the machine cycle and acknowledges the daemon before
// any custom handler sees the event.
func (l *LaneLink) onSensorEvent(doc Document) {
	if doc.Event() == "ball_detected" {
		l.machine.ProcessBallEvent()
		if err := l.sensor.SendLastBall(); err != nil {
			l.logger.Warn("last-ball request failed", log.Err(err))
		}
	}
	if l.opts.sensorHandler != nil {
		l.opts.sensorHandler(doc)
	}
}
