package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rohithg/Real-Time-Collaborative-Whiteboard/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Transport is the subset of *websocket.Conn a Conn needs.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Limits struct {
	SendBuffer     int
	MaxMessageSize int64
}

// Conn is one participant. It moves Connecting -> Open -> Closing -> Closed
// and never goes back.
type Conn struct {
	id          string
	ws          Transport
	send        chan []byte
	limits      Limits
	broadcaster domain.Broadcaster
	handler     domain.MessageHandler

	mu    sync.Mutex
	state State
	done  chan struct{}
}

func NewConn(id string, ws Transport, b domain.Broadcaster, h domain.MessageHandler, limits Limits) *Conn {
	return &Conn{
		id:          id,
		ws:          ws,
		send:        make(chan []byte, limits.SendBuffer),
		limits:      limits,
		broadcaster: b,
		handler:     h,
		done:        make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the connection reaches StateClosed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send queues data for the writer without blocking.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return domain.ErrConnectionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return domain.ErrSendBufferFull
	}
}

// Close starts teardown. Frames already queued are flushed before the close
// frame is written.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state == StateConnecting {
		c.state = StateClosed
		close(c.done)
		c.mu.Unlock()
		return c.ws.Close()
	}
	c.mu.Unlock()

	c.teardown()
	return nil
}

func (c *Conn) Start() {
	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateOpen
	c.mu.Unlock()

	c.broadcaster.Register(c)
	go c.writePump()
	go c.readPump()
}

// teardown moves Open to Closing exactly once.
func (c *Conn) teardown() {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	close(c.send)
	c.mu.Unlock()

	c.broadcaster.Unregister(c)
}

func (c *Conn) finish() {
	c.ws.Close()

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
	close(c.done)
}

func (c *Conn) readPump() {
	defer c.teardown()

	c.ws.SetReadLimit(c.limits.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "clientId", c.id, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			slog.Debug("binary message dropped", "clientId", c.id, "bytes", len(data))
			continue
		}

		c.handler.Handle(c, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.teardown()
		c.finish()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("write error", "clientId", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
