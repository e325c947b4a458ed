package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Conn is the subset of *websocket.Conn used by a Client.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Inbound routes a parsed envelope read from a client.
type Inbound interface {
	Route(ctx context.Context, msg *ClientMessage)
}

type Client struct {
	conn     Conn
	log      *log.Logger
	user     User
	send     chan *ServerMessage
	registry *Registry
	router   Inbound
	// alive is cleared by the monitor before each probe and set by a pong.
	alive    atomic.Bool
	open     atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(user User, conn Conn, registry *Registry, router Inbound, l *log.Logger) *Client {
	c := &Client{
		conn:     conn,
		log:      l,
		user:     user,
		send:     make(chan *ServerMessage, sendBufferSize),
		registry: registry,
		router:   router,
		stop:     make(chan struct{}),
	}
	c.alive.Store(true)
	c.open.Store(true)

	return c
}

func (c *Client) UserId() int {
	return c.user.Id
}

func (c *Client) Write() {
	defer func() {
		c.conn.Close()
		c.log.Printf("write exiting for user %d", c.user.Id)
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("read exiting for user %d", c.user.Id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage())
			continue
		}

		if err := msg.Validate(); err != nil {
			c.log.Printf("dropping envelope from user %d: %v", c.user.Id, err)
			c.queueMessage(ErrMessage(msg.ChatId, err.Error()))
			continue
		}

		msg.client = c
		msg.UserId = c.user.Id
		msg.Timestamp = Now()

		c.router.Route(context.Background(), &msg)
	}
}

// queueMessage never blocks; a full buffer drops the message.
func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send buffer full for user %d, dropping %s", c.user.Id, msg.Type)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) isOpen() bool {
	return c.open.Load()
}

// ping sends a liveness probe. WriteControl may run concurrently with the
// writer goroutine.
func (c *Client) ping() {
	err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.log.Printf("ping user %d: %v", c.user.Id, err)
	}
}

// terminate drops the socket without a closing handshake.
func (c *Client) terminate() {
	c.open.Store(false)
	c.stopClient()
	c.conn.Close()
}

// closeWith performs a closing handshake with the given code and reason.
func (c *Client) closeWith(code int, reason string) {
	c.open.Store(false)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil &&
		!errors.Is(err, websocket.ErrCloseSent) {
		c.log.Printf("close user %d: %v", c.user.Id, err)
	}
	c.stopClient()
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.open.Store(false)
	c.registry.release(c)
	c.stopClient()
}
