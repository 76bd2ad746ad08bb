package laneclient

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lanekit/lanelink/internal/wire"
	"github.com/lanekit/lanelink/pkg/log"
)

// Client errors, checked with errors.Is.
var (
	ErrNotConnected   = errors.New("laneclient: not connected")
	ErrAlreadyStarted = errors.New("laneclient: already started")
	ErrResolve        = errors.New("laneclient: hostname resolution failed")
	ErrConnect        = errors.New("laneclient: connect failed")
	ErrWrite          = errors.New("laneclient: write failed")
)

// transientRetryDelay is the pause after a transient read error before the
// reader tries again on the same connection.
const transientRetryDelay = 10 * time.Millisecond

// readChunkSize bounds a single socket read.
const readChunkSize = 4096

// Handler receives each parsed document from the lane server, in wire
// order, on the reader goroutine. Implementations must not block
// indefinitely; the next frame is not dispatched until the handler returns.
type Handler interface {
	HandleMessage(doc wire.Document)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(doc wire.Document)

// HandleMessage calls f(doc).
func (f HandlerFunc) HandleMessage(doc wire.Document) { f(doc) }

// Client maintains a resilient TCP connection to the lane-coordination
// server. It runs a reader goroutine that reassembles and dispatches
// newline-delimited JSON frames and reconnects forever with a fixed delay,
// plus a heartbeat goroutine that asserts liveness while connected.
//
// All exported methods are safe for concurrent use.
type Client struct {
	cfg     Config
	logger  log.Logger
	handler Handler

	running   atomic.Bool
	connected atomic.Bool

	// connMu guards conn; the descriptor never leaves this struct.
	connMu sync.Mutex
	conn   net.Conn

	// sendMu serializes writes so concurrent senders never interleave
	// partial frames.
	sendMu sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a lane client. handler may be nil, in which case incoming
// documents are dropped. logger may be nil for silent operation.
func New(cfg Config, handler Handler, logger log.Logger) *Client {
	cfg.SetDefaults()
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Client{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
	}
}

// Start launches the reader and heartbeat goroutines. The first connection
// attempt happens on the reader goroutine; Start itself never blocks on the
// network.
func (c *Client) Start() error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	c.stopCh = make(chan struct{})

	c.wg.Add(2)
	go c.readerLoop()
	go c.heartbeatLoop()
	return nil
}

// Stop shuts the client down and joins both goroutines before returning.
// Closing the socket unblocks a pending read. Idempotent.
func (c *Client) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	close(c.stopCh)
	c.disconnect()
	c.wg.Wait()
}

// IsConnected reports whether the client currently holds a live connection.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// SendBowlerMove transfers a bowler to another lane.
func (c *Client) SendBowlerMove(bowlerData wire.Document, toLane, moveID string) error {
	return c.send(bowlerMoveMessage{
		Type: "bowler_move",
		Data: bowlerMoveData{
			ToLane:     toLane,
			BowlerData: bowlerData,
			MoveID:     moveID,
		},
	})
}

// SendTeamMove transfers a whole team to another lane. teamData supplies
// "bowlers" and "game_number"; game_number defaults to 1 when absent.
func (c *Client) SendTeamMove(teamData wire.Document, toLane string) error {
	bowlers, ok := teamData["bowlers"]
	if !ok {
		bowlers = []interface{}{}
	}
	gameNumber := 1
	if n, ok := teamData["game_number"].(float64); ok {
		gameNumber = int(n)
	}
	return c.send(teamMoveMessage{
		Type: "team_move",
		Data: teamMoveData{
			ToLane:     toLane,
			FromLane:   c.cfg.LaneID,
			Bowlers:    bowlers,
			GameNumber: gameNumber,
		},
	})
}

// SendFrameData reports one scored frame for a bowler.
func (c *Client) SendFrameData(bowlerName string, frameNum int, frameData wire.Document) error {
	return c.send(frameDataMessage{
		Type: "frame_data",
		Data: frameDataBody{
			LaneID:     c.cfg.LaneID,
			BowlerName: bowlerName,
			FrameNum:   frameNum,
			FrameData:  frameData,
			Timestamp:  time.Now().Unix(),
		},
	})
}

// SendGameComplete reports a finished game.
func (c *Client) SendGameComplete(gameData wire.Document) error {
	return c.send(gameCompleteMessage{
		Type: "game_complete",
		Data: gameCompleteData{
			LaneID:    c.cfg.LaneID,
			GameData:  gameData,
			Timestamp: time.Now().Unix(),
		},
	})
}

// send serializes v as one frame and writes it under the send lock.
// It fails without a socket operation when disconnected; a write error
// disconnects immediately so the reader loop begins recovery.
func (c *Client) send(v interface{}) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	b, err := wire.Marshal(v)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.Write(b); err != nil {
		c.logger.Warn("write failed, disconnecting", log.Err(err))
		c.disconnect()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// connect resolves the server host, dials it, and sends the registration
// message. On success the client is Connected; on failure it stays
// Disconnected.
func (c *Client) connect() error {
	addrs, err := net.LookupHost(c.cfg.ServerHost)
	if err != nil || len(addrs) == 0 {
		return fmt.Errorf("%w: %s: %v", ErrResolve, c.cfg.ServerHost, err)
	}

	addr := net.JoinHostPort(addrs[0], strconv.Itoa(c.cfg.ServerPort))
	conn, err := net.DialTimeout("tcp", addr, c.cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConnect, addr, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.connected.Store(true)

	reg := registrationMessage{
		Type:       "registration",
		LaneID:     c.cfg.LaneID,
		Startup:    true,
		ClientIP:   localIP(),
		ListenPort: 0,
		Timestamp:  time.Now().Unix(),
	}
	if err := c.send(reg); err != nil {
		// send already disconnected on write failure
		return fmt.Errorf("registration: %w", err)
	}

	c.logger.Info("connected to lane server",
		log.String("host", c.cfg.ServerHost),
		log.Int("port", c.cfg.ServerPort),
	)
	return nil
}

// disconnect closes the socket if open and marks the client Disconnected.
// Safe to call from any goroutine, including the reader itself. Idempotent.
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

func (c *Client) currentConn() net.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

// readerLoop owns connection recovery: while running it connects when
// disconnected (retrying forever with the fixed reconnect delay), then
// reads, reassembles frames, and dispatches them in wire order.
func (c *Client) readerLoop() {
	defer c.wg.Done()

	var fb wire.FrameBuffer
	tmp := make([]byte, readChunkSize)

	for c.running.Load() {
		if !c.connected.Load() {
			if err := c.connect(); err != nil {
				c.logger.Warn("connect failed, retrying",
					log.Err(err),
					log.Duration("delay", c.cfg.ReconnectDelay),
				)
				if !c.sleep(c.cfg.ReconnectDelay) {
					return
				}
				continue
			}
			// New connection: a dead connection's partial tail must not
			// leak into the first frame.
			fb.Reset()
			if !c.running.Load() {
				// Stop raced with the connect; drop the fresh socket.
				c.disconnect()
				return
			}
		}

		conn := c.currentConn()
		if conn == nil {
			c.connected.Store(false)
			continue
		}

		n, err := conn.Read(tmp)
		if n > 0 {
			fb.Append(tmp[:n])
			for {
				frame, ok := fb.Next()
				if !ok {
					break
				}
				c.dispatch(frame)
			}
		}
		if err == nil {
			continue
		}

		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			if !c.sleep(transientRetryDelay) {
				return
			}
			continue
		}

		if errors.Is(err, io.EOF) {
			c.logger.Warn("lane server closed connection")
		} else if c.running.Load() {
			c.logger.Warn("read error", log.Err(err))
		}
		c.disconnect()
		if !c.sleep(c.cfg.ReconnectDelay) {
			return
		}
	}
}

// dispatch parses one frame and hands it to the handler. A malformed frame
// is logged and dropped; a handler panic is contained to that frame.
func (c *Client) dispatch(frame []byte) {
	if len(frame) == 0 {
		return
	}
	doc, err := wire.ParseDocument(frame)
	if err != nil {
		c.logger.Warn("dropping malformed frame", log.Err(err))
		return
	}
	if c.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("message handler panicked", log.Any("panic", r))
		}
	}()
	c.handler.HandleMessage(doc)
}

// heartbeatLoop emits a liveness message on a fixed period while connected.
// It never initiates a connection; recovery belongs to the reader loop.
func (c *Client) heartbeatLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if !c.connected.Load() {
				continue
			}
			hb := heartbeatMessage{
				Type:      "heartbeat",
				LaneID:    c.cfg.LaneID,
				Timestamp: time.Now().Unix(),
			}
			if err := c.send(hb); err != nil {
				c.logger.Warn("heartbeat send failed", log.Err(err))
			}
		}
	}
}

// sleep waits for d or until Stop, reporting false when stopping.
func (c *Client) sleep(d time.Duration) bool {
	select {
	case <-c.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}
