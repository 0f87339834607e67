package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"fivebear-admin-go/internal/domain/events"
)

const (
	outboundQueueSize = 16
	writeWait         = 10 * time.Second
)

// Connection wraps one gorilla websocket connection. Outbound pushes go
// through a buffered queue drained by a single writer goroutine, so a slow
// client never blocks the login flow; a saturated queue discards instead.
type Connection struct {
	id       string
	username string
	role     string

	socket     *websocket.Conn
	outbound   chan []byte
	closed     atomic.Bool
	done       chan struct{}
	closeOnce  sync.Once
	lastActive atomic.Int64
}

// NewConnection creates a tracked connection and starts its writer.
func NewConnection(id, username, role string, socket *websocket.Conn) *Connection {
	c := &Connection{
		id:       id,
		username: username,
		role:     role,
		socket:   socket,
		outbound: make(chan []byte, outboundQueueSize),
		done:     make(chan struct{}),
	}
	c.touch()
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case payload := <-c.outbound:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, payload); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Send queues a payload without blocking. A full queue drops the message.
func (c *Connection) Send(payload []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	select {
	case c.outbound <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// SendEnvelope serializes and queues a push message.
func (c *Connection) SendEnvelope(env events.Envelope) error {
	payload, err := sonic.Marshal(env)
	if err != nil {
		return err
	}
	return c.Send(payload)
}

// ReadMessage blocks on the next client frame.
func (c *Connection) ReadMessage() (int, []byte, error) {
	messageType, payload, err := c.socket.ReadMessage()
	if err == nil {
		c.touch()
	}
	return messageType, payload, err
}

// Close terminates the connection and stops the writer.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		err = c.socket.Close()
	})
	return err
}

func (c *Connection) ID() string       { return c.id }
func (c *Connection) Username() string { return c.username }
func (c *Connection) Role() string     { return c.role }

// IsClosed reports whether the connection has already been closed.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// LastActive exposes when the client last sent a frame.
func (c *Connection) LastActive() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

func (c *Connection) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}
