package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-dev/penguins/internal/dashboard"
	"github.com/vango-dev/penguins/internal/errors"
)

// LiveConfig holds the timing of a live connection.
type LiveConfig struct {
	// HeartbeatInterval is how often the server pings the client.
	HeartbeatInterval time.Duration

	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration

	// MaxMessageSize is the largest client frame accepted.
	MaxMessageSize int64

	// EventQueueSize is the number of decoded frames that may wait for the
	// event loop.
	EventQueueSize int
}

// DefaultLiveConfig returns the default live connection settings.
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		HeartbeatInterval: 30 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxMessageSize:    16 * 1024,
		EventQueueSize:    64,
	}
}

// liveConn connects one WebSocket to one dashboard session.
//
// Three goroutines share it. ReadLoop decodes client frames and queues
// them. EventLoop is the only goroutine that applies changes, so a
// session sees its inputs in arrival order. WriteLoop owns the socket's
// write side and sends patches, replies and heartbeats.
type liveConn struct {
	id      string
	conn    *websocket.Conn
	manager *Manager
	config  LiveConfig

	events chan ClientMessage
	send   chan ServerMessage
	done   chan struct{}

	closeOnce sync.Once
	logger    *slog.Logger
	recorder  Recorder
}

func newLiveConn(conn *websocket.Conn, sess *dashboard.Session, manager *Manager, config LiveConfig, logger *slog.Logger) *liveConn {
	return &liveConn{
		id:       sess.ID,
		conn:     conn,
		manager:  manager,
		config:   config,
		events:   make(chan ClientMessage, config.EventQueueSize),
		send:     make(chan ServerMessage, config.EventQueueSize),
		done:     make(chan struct{}),
		logger:   logger.With("component", "live", "session_id", sess.ID),
		recorder: manager.recorder,
	}
}

// run attaches the connection to its session, sends the full state and
// blocks until the connection ends.
func (c *liveConn) run(sess *dashboard.Session) {
	c.attach(sess)
	c.enqueue(PatchMessage(sess.Outputs()))

	go c.WriteLoop()
	go c.EventLoop()
	c.ReadLoop()
}

// attach routes the session's patches to this connection. A later
// connection for the same session takes the patches over.
func (c *liveConn) attach(sess *dashboard.Session) {
	sess.OnPatch(func(p dashboard.Patch) {
		c.enqueue(PatchMessage(p))
	})
}

// enqueue queues msg for the write loop. A client too slow to drain its
// queue is disconnected; it resyncs with a full patch on reconnect.
func (c *liveConn) enqueue(msg ServerMessage) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("send queue full, closing connection")
		c.close()
	}
}

// close signals every loop to stop. WriteLoop then closes the socket,
// which unblocks ReadLoop. It is safe to call from any goroutine.
func (c *liveConn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadLoop reads frames until the connection fails or closes.
func (c *liveConn) ReadLoop() {
	defer c.close()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.readTimeout()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.readTimeout()))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Error("read error", "error", err)
				c.recorder.RecordWebSocketError(err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout()))

		msg, err := DecodeClientMessage(data)
		if err != nil {
			c.logger.Debug("frame decode error", "error", err)
			c.recorder.RecordWebSocketError(err)
			c.enqueue(ErrorMessage(err))
			continue
		}

		select {
		case c.events <- msg:
		case <-c.done:
			return
		default:
			c.enqueue(ErrorMessage(errors.New(errors.CodeBadMessage).WithDetail("Too many pending changes.")))
		}
	}
}

// readTimeout allows two missed heartbeats before the client is
// considered gone.
func (c *liveConn) readTimeout() time.Duration {
	return 2*c.config.HeartbeatInterval + c.config.WriteTimeout
}

// EventLoop applies queued frames in order.
func (c *liveConn) EventLoop() {
	for {
		select {
		case msg := <-c.events:
			c.handle(msg)
		case <-c.done:
			return
		}
	}
}

func (c *liveConn) handle(msg ClientMessage) {
	if msg.Type == MsgPing {
		c.enqueue(ServerMessage{Type: MsgPong})
		return
	}

	change, err := msg.Change()
	if err != nil {
		c.recorder.RecordInvalidInput(msg.Field)
		c.enqueue(ErrorMessage(err))
		return
	}

	ctx := context.Background()
	sess, restored, err := c.manager.Resume(ctx, c.id)
	if err != nil {
		c.enqueue(ErrorMessage(err))
		c.close()
		return
	}
	if restored {
		// The session was evicted while this client idled; rebind and
		// resend everything so the page matches the rebuilt state.
		c.attach(sess)
		c.enqueue(PatchMessage(sess.Outputs()))
	}

	if _, err := c.manager.Apply(ctx, sess, change); err != nil {
		c.logger.Debug("change rejected", "field", msg.Field, "error", err)
		c.enqueue(ErrorMessage(err))
	}
}

// WriteLoop writes queued frames and heartbeat pings until the connection
// closes.
func (c *liveConn) WriteLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()
	defer func() {
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.logger.Debug("write error", "error", err)
				c.recorder.RecordWebSocketError(err)
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(c.config.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("heartbeat failed", "error", err)
				return
			}

		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (c *liveConn) write(msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
