package ws

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var (
	ErrConnClosed   = errors.New("ws: connection closed")
	ErrSlowConsumer = errors.New("ws: send buffer full")
)

type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
	// MessageRate limits inbound frames per second per connection; 0 disables it.
	MessageRate  float64
	MessageBurst int
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 30 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 << 10
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 10
	}
	return o
}

func (o Options) pingPeriod() time.Duration { return o.PongWait * 9 / 10 }

// wsConn is a hub.Conn over a gorilla connection. Data frames are written
// by writePump only; Close may be called from any goroutine.
type wsConn struct {
	id   string
	conn *websocket.Conn
	opts Options

	send      chan []byte
	closed    chan struct{}
	open      atomic.Bool
	closeOnce sync.Once
	closeErr  error

	limiter *rate.Limiter
}

func newConn(c *websocket.Conn, opts Options) *wsConn {
	w := &wsConn{
		id:     uuid.NewString(),
		conn:   c,
		opts:   opts,
		send:   make(chan []byte, opts.SendBuffer),
		closed: make(chan struct{}),
	}
	if opts.MessageRate > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(opts.MessageRate), opts.MessageBurst)
	}
	w.open.Store(true)
	return w
}

func (c *wsConn) ID() string { return c.id }
func (c *wsConn) Open() bool { return c.open.Load() }

func (c *wsConn) Send(payload []byte) error {
	if !c.Open() {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.closed:
		return ErrConnClosed
	default:
		go c.Close(websocket.CloseTryAgainLater, "send buffer full")
		return ErrSlowConsumer
	}
}

// Close sends a close frame with code and reason and tears the socket
// down. Only the first call has an effect.
func (c *wsConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		close(c.closed)

		msg := websocket.FormatCloseMessage(code, reason)
		err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteWait))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.closeErr = err
		}
		if err := c.conn.Close(); err != nil && c.closeErr == nil {
			c.closeErr = err
		}
	})
	return c.closeErr
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				slog.Debug("ws write failed", "conn_id", c.id, "err", err)
				_ = c.Close(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				_ = c.Close(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readPump blocks until the peer goes away or the connection is closed,
// passing each text frame to onMessage. Frames over the rate limit are
// dropped. A nil onMessage discards everything.
func (c *wsConn) readPump(onMessage func([]byte)) {
	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && c.Open() {
				slog.Debug("ws read failed", "conn_id", c.id, "err", err)
			}
			return
		}
		if onMessage == nil || kind != websocket.TextMessage {
			continue
		}
		if c.limiter != nil && !c.limiter.Allow() {
			slog.Debug("ws frame dropped by rate limit", "conn_id", c.id)
			continue
		}
		onMessage(data)
	}
}
