// Package sensorclient connects to the local ball sensor daemon over a
// Unix domain socket. Unlike the lane client this is a connect-once link:
// the daemon lives on the same machine and is supervised externally, so a
// failure to reach it is fatal to startup and a lost connection is not
// recovered here.
package sensorclient

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lanekit/lanelink/internal/wire"
	"github.com/lanekit/lanelink/pkg/log"
)

// Client errors, checked with errors.Is.
var (
	ErrNotConnected   = errors.New("sensorclient: not connected")
	ErrConnect        = errors.New("sensorclient: connect failed")
	ErrConnectTimeout = errors.New("sensorclient: connect timeout")
	ErrWrite          = errors.New("sensorclient: write failed")
)

// transientRetryDelay is the pause after a transient read error before the
// reader tries again on the same connection.
const transientRetryDelay = 10 * time.Millisecond

// readChunkSize bounds a single socket read.
const readChunkSize = 4096

// EventHandler receives each parsed event document from the daemon, in
// wire order, on the reader goroutine. Implementations must not block
// indefinitely.
type EventHandler interface {
	HandleEvent(doc wire.Document)
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(doc wire.Document)

// HandleEvent calls f(doc).
func (f EventHandlerFunc) HandleEvent(doc wire.Document) { f(doc) }

// Client is the Unix-domain socket client for the ball sensor daemon.
// Connect once, Start the reader, then issue LAST_BALL / PIN_SET commands
// from any goroutine.
type Client struct {
	path   string
	logger log.Logger

	running   atomic.Bool
	connected atomic.Bool

	connMu sync.Mutex
	conn   net.Conn

	sendMu sync.Mutex

	wg sync.WaitGroup
}

// New creates a sensor client for the daemon socket at path.
// logger may be nil for silent operation.
func New(path string, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Client{path: path, logger: logger}
}

// Connect dials the daemon socket, waiting at most timeout for the
// connection to complete. The daemon is a local always-up peer: a timeout
// or refusal here is a startup failure, not something to retry.
func (c *Client) Connect(timeout time.Duration) error {
	conn, err := net.DialTimeout("unix", c.path, timeout)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			c.logger.Error("connect timeout or error", log.String("path", c.path))
			return fmt.Errorf("%w: %s", ErrConnectTimeout, c.path)
		}
		return fmt.Errorf("%w: %s: %v", ErrConnect, c.path, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.connected.Store(true)

	c.logger.Info("connected to sensor daemon", log.String("path", c.path))
	return nil
}

// IsConnected reports whether the client currently holds a live connection.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Start launches the reader goroutine. Connect must have succeeded first.
func (c *Client) Start(handler EventHandler) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	if !c.running.CompareAndSwap(false, true) {
		return nil
	}
	c.wg.Add(1)
	go c.readerLoop(handler)
	return nil
}

// Stop tears the client down and joins the reader before returning.
// Closing the socket unblocks a pending read. Idempotent.
func (c *Client) Stop() {
	c.running.Store(false)
	c.disconnect()
	c.wg.Wait()
}

// SendLastBall asks the daemon for its most recent ball detection.
func (c *Client) SendLastBall() error {
	return c.sendRaw(wire.EncodeLastBall())
}

// SendPinSet tells the daemon which pins to set, by index.
func (c *Client) SendPinSet(pins []int) error {
	return c.sendRaw(wire.EncodePinSet(pins))
}

// sendRaw writes one pre-framed command under the send lock.
func (c *Client) sendRaw(frame []byte) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.Write(frame); err != nil {
		c.logger.Warn("write failed, disconnecting", log.Err(err))
		c.disconnect()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// disconnect closes the socket if open and marks the client disconnected.
// Idempotent, safe from any goroutine including the reader.
func (c *Client) disconnect() {
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	c.connected.Store(false)
	if conn != nil {
		_ = conn.Close()
	}
}

// readerLoop reads until the peer closes, a fatal error occurs, or Stop is
// called. There is no reconnect path: when the loop exits the client is
// done.
func (c *Client) readerLoop(handler EventHandler) {
	defer c.wg.Done()

	var fb wire.FrameBuffer
	tmp := make([]byte, readChunkSize)

	for c.running.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return
		}

		n, err := conn.Read(tmp)
		if n > 0 {
			fb.Append(tmp[:n])
			for {
				frame, ok := fb.Next()
				if !ok {
					break
				}
				c.dispatch(handler, frame)
			}
		}
		if err == nil {
			continue
		}

		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			time.Sleep(transientRetryDelay)
			continue
		}

		if errors.Is(err, io.EOF) {
			c.logger.Warn("socket closed by daemon")
		} else if c.running.Load() {
			c.logger.Warn("read error", log.Err(err))
		}
		c.disconnect()
		return
	}
}

// dispatch parses one frame and hands it to the handler. A malformed frame
// is logged and dropped; a handler panic is contained to that frame.
func (c *Client) dispatch(handler EventHandler, frame []byte) {
	if len(frame) == 0 {
		return
	}
	doc, err := wire.ParseDocument(frame)
	if err != nil {
		c.logger.Warn("dropping malformed frame", log.Err(err))
		return
	}
	if handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("event handler panicked", log.Any("panic", r))
		}
	}()
	handler.HandleEvent(doc)
}
