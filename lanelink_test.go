package lanelink

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testPeers stands up a loopback lane server and a Unix-socket sensor
// daemon so a LaneLink instance can start for real.
type testPeers struct {
	lanePort   int
	sensorPath string
	laneConns  chan net.Conn
	sensors    chan net.Conn
}

func newTestPeers(t *testing.T) *testPeers {
	t.Helper()

	laneLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("lane listen: %v", err)
	}
	t.Cleanup(func() { laneLn.Close() })

	sensorPath := filepath.Join(t.TempDir(), "ball_sensor.sock")
	sensorLn, err := net.Listen("unix", sensorPath)
	if err != nil {
		t.Fatalf("sensor listen: %v", err)
	}
	t.Cleanup(func() { sensorLn.Close() })

	p := &testPeers{
		lanePort:   laneLn.Addr().(*net.TCPAddr).Port,
		sensorPath: sensorPath,
		laneConns:  make(chan net.Conn, 2),
		sensors:    make(chan net.Conn, 2),
	}
	go acceptInto(laneLn, p.laneConns)
	go acceptInto(sensorLn, p.sensors)
	return p
}

func acceptInto(ln net.Listener, out chan net.Conn) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		out <- conn
	}
}

func (p *testPeers) config() Config {
	return Config{
		LaneID:               "lane_07",
		ServerHost:           "127.0.0.1",
		ServerPort:           p.lanePort,
		HeartbeatInterval:    time.Hour,
		ReconnectDelay:       20 * time.Millisecond,
		SensorSocket:         p.sensorPath,
		SensorConnectTimeout: time.Second,
		SensorWaitTimeout:    time.Second,
	}
}

func waitConn(t *testing.T, ch chan net.Conn) net.Conn {
	t.Helper()
	select {
	case conn := <-ch:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("peer never connected")
		return nil
	}
}

func TestStartConnectsBothPeers(t *testing.T) {
	peers := newTestPeers(t)
	link, err := New(peers.config())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := link.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer link.Stop()

	if got := link.Status(); got != StateRunning {
		t.Errorf("Status() = %v, want Running", got)
	}

	laneConn := waitConn(t, peers.laneConns)
	defer laneConn.Close()
	waitConn(t, peers.sensors).Close()

	line, err := bufio.NewReader(laneConn).ReadString('\n')
	if err != nil {
		t.Fatalf("read registration: %v", err)
	}
	var reg map[string]interface{}
	if err := json.Unmarshal([]byte(line), &reg); err != nil {
		t.Fatalf("registration not JSON: %v", err)
	}
	if reg["type"] != "registration" {
		t.Errorf("type = %v, want registration", reg["type"])
	}
	if reg["lane_id"] != "lane_07" {
		t.Errorf("lane_id = %v, want lane_07", reg["lane_id"])
	}
}

func TestStartFailsWithoutSensorDaemon(t *testing.T) {
	peers := newTestPeers(t)
	cfg := peers.config()
	cfg.SensorSocket = filepath.Join(t.TempDir(), "absent.sock")
	cfg.SensorWaitTimeout = 100 * time.Millisecond

	link, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := link.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded with no sensor daemon")
	}
	if got := link.Status(); got != StateCrashed {
		t.Errorf("Status() = %v, want Crashed", got)
	}
}

func TestBallDetectionAcknowledged(t *testing.T) {
	peers := newTestPeers(t)
	events := make(chan Document, 2)
	link, err := New(peers.config(), WithSensorHandler(func(doc Document) {
		events <- doc
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := link.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer link.Stop()

	sensorConn := waitConn(t, peers.sensors)
	defer sensorConn.Close()
	waitConn(t, peers.laneConns).Close()

	if _, err := sensorConn.Write([]byte("{\"event\":\"ball_detected\"}\n")); err != nil {
		t.Fatalf("daemon write: %v", err)
	}

	// The built-in path must answer with a last-ball request.
	line, err := bufio.NewReader(sensorConn).ReadString('\n')
	if err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if line != "LAST_BALL\n" {
		t.Errorf("ack = %q, want LAST_BALL\\n", line)
	}

	select {
	case doc := <-events:
		if doc.Event() != "ball_detected" {
			t.Errorf("event = %q, want ball_detected", doc.Event())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sensor handler not called")
	}

	// One ball took every pin down.
	for i, s := range link.PinState() {
		if s != 1 {
			t.Errorf("pin %d = %d, want 1 (down)", i, s)
		}
	}
}

func TestSetPinsReachesDaemon(t *testing.T) {
	peers := newTestPeers(t)
	link, err := New(peers.config())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := link.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer link.Stop()

	sensorConn := waitConn(t, peers.sensors)
	defer sensorConn.Close()
	waitConn(t, peers.laneConns).Close()

	if err := link.SetPins([]int{0, 2}); err != nil {
		t.Fatalf("SetPins: %v", err)
	}
	line, err := bufio.NewReader(sensorConn).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(line, "PIN_SET ") {
		t.Errorf("command = %q, want PIN_SET prefix", line)
	}

	state := link.PinState()
	if state[0] != 1 || state[2] != 1 {
		t.Errorf("pins 0 and 2 not down: %v", state)
	}
	if state[1] != 0 {
		t.Errorf("pin 1 = %d, want standing", state[1])
	}
}

func TestStopTransitionsToStopped(t *testing.T) {
	peers := newTestPeers(t)
	link, err := New(peers.config())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := link.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitConn(t, peers.sensors).Close()

	if err := link.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := link.Status(); got != StateStopped {
		t.Errorf("Status() = %v, want Stopped", got)
	}
	if err := link.Stop(); err != ErrNotRunning {
		t.Errorf("second Stop = %v, want ErrNotRunning", err)
	}
}

func TestStartTwice(t *testing.T) {
	peers := newTestPeers(t)
	link, err := New(peers.config())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := link.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer link.Stop()
	waitConn(t, peers.sensors).Close()

	if err := link.Start(context.Background()); err != ErrAlreadyRunning {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
}
