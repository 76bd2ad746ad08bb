package sensorclient

import (
	"bufio"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/lanekit/lanelink/internal/wire"
	"github.com/lanekit/lanelink/pkg/log"
)

// newTestDaemon listens on a Unix socket in a temp dir, standing in for the
// ball sensor daemon.
func newTestDaemon(t *testing.T) (string, chan net.Conn) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ball_sensor.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan net.Conn, 2)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()
	return path, accepted
}

func acceptConn(t *testing.T, accepted chan net.Conn) net.Conn {
	t.Helper()
	select {
	case conn := <-accepted:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no client connected")
		return nil
	}
}

func TestConnectFailsWhenDaemonAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sock")
	c := New(path, log.NewNoopLogger())

	err := c.Connect(100 * time.Millisecond)
	if err == nil {
		t.Fatal("Connect succeeded with no daemon listening")
	}
	if !errors.Is(err, ErrConnect) && !errors.Is(err, ErrConnectTimeout) {
		t.Errorf("Connect error = %v, want ErrConnect or ErrConnectTimeout", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after failed connect")
	}
}

func TestCommandWireForms(t *testing.T) {
	path, accepted := newTestDaemon(t)
	c := New(path, log.NewNoopLogger())
	if err := c.Connect(time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Stop()

	conn := acceptConn(t, accepted)
	defer conn.Close()
	r := bufio.NewReader(conn)

	if err := c.SendLastBall(); err != nil {
		t.Fatalf("SendLastBall: %v", err)
	}
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "LAST_BALL\n" {
		t.Errorf("command = %q, want LAST_BALL\\n", line)
	}

	if err := c.SendPinSet([]int{1, 4, 7}); err != nil {
		t.Fatalf("SendPinSet: %v", err)
	}
	line, err = r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "PIN_SET [1,4,7]\n" {
		t.Errorf("command = %q, want PIN_SET [1,4,7]\\n", line)
	}
}

func TestEventDispatch(t *testing.T) {
	path, accepted := newTestDaemon(t)
	c := New(path, log.NewNoopLogger())
	if err := c.Connect(time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Stop()

	events := make(chan wire.Document, 4)
	if err := c.Start(EventHandlerFunc(func(doc wire.Document) {
		events <- doc
	})); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn := acceptConn(t, accepted)
	defer conn.Close()

	// Malformed line first; it must be dropped without killing the reader.
	if _, err := conn.Write([]byte("{oops\n{\"event\":\"ball_detected\"}\n")); err != nil {
		t.Fatalf("daemon write: %v", err)
	}

	select {
	case doc := <-events:
		if doc.Event() != "ball_detected" {
			t.Errorf("event = %q, want ball_detected", doc.Event())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not dispatched")
	}
}

func TestNoReconnectAfterPeerClose(t *testing.T) {
	path, accepted := newTestDaemon(t)
	c := New(path, log.NewNoopLogger())
	if err := c.Connect(time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Stop()

	if err := c.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn := acceptConn(t, accepted)
	conn.Close()

	// The reader must observe the close and stay down.
	deadline := time.Now().Add(2 * time.Second)
	for c.IsConnected() {
		if time.Now().After(deadline) {
			t.Fatal("client still connected after peer close")
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-accepted:
		t.Fatal("client reconnected; sensor link must not auto-reconnect")
	case <-time.After(100 * time.Millisecond):
	}

	if err := c.SendLastBall(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("send after close = %v, want ErrNotConnected", err)
	}
}

func TestStartWithoutConnect(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "x.sock"), log.NewNoopLogger())
	if err := c.Start(nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Start without Connect = %v, want ErrNotConnected", err)
	}
}

func TestStopQuiesces(t *testing.T) {
	path, accepted := newTestDaemon(t)
	c := New(path, log.NewNoopLogger())
	if err := c.Connect(time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn := acceptConn(t, accepted)
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not quiesce")
	}
	// Idempotent.
	c.Stop()
}
