package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Outbound frames buffered per connection
	sendBuffer = 256
)

// Router handles the events a connection produces
type Router interface {
	Send(ctx context.Context, origin domain.Endpoint, sender, receiver, body string) (*domain.Message, error)
	Typing(sender, receiver string)
}

// Client is one authenticated websocket connection
type Client struct {
	ID       string
	Username string

	registry *Registry
	router   Router
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	readMax  int64
	log      *slog.Logger
}

// NewClient creates a Client for username over conn
func NewClient(registry *Registry, router Router, conn *websocket.Conn, username string, readMax int, log *slog.Logger) *Client {
	if readMax <= 0 {
		readMax = domain.MaxMessageSize
	}
	id := uuid.NewString()
	return &Client{
		ID:       id,
		Username: username,
		registry: registry,
		router:   router,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		readMax:  int64(readMax),
		log:      log.With("user", username, "conn", id),
	}
}

// Send queues msg for the write pump. Frames are dropped when the buffer is
// full or the connection is closed.
func (c *Client) Send(msg []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- msg:
	case <-c.done:
	default:
		c.log.Debug("send buffer full, frame dropped")
	}
}

// close stops the write pump; safe to call more than once
func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// ReadPump pumps frames from the websocket connection to the router. It
// returns when the connection fails or ctx is cancelled.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.registry.Disconnect(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.readMax)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("connection closed unexpectedly", "err", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.handle(ctx, message)
	}
}

// handle dispatches one inbound frame
func (c *Client) handle(ctx context.Context, frame []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.log.Debug("malformed frame", "err", err)
		return
	}

	switch env.Type {
	case domain.EventPrivateMessage:
		var p domain.PrivateMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Debug("malformed private_message", "err", err)
			return
		}
		if _, err := c.router.Send(ctx, c, c.Username, p.Receiver, p.Message); err != nil {
			level := slog.LevelError
			if errors.Is(err, domain.ErrInvalidMessage) {
				level = slog.LevelDebug
			}
			c.log.Log(ctx, level, "private message not sent", "receiver", p.Receiver, "err", err)
		}

	case domain.EventTyping:
		var p domain.TypingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		c.router.Typing(c.Username, p.Receiver)

	default:
		c.log.Debug("unknown event", "type", env.Type)
	}
}

// WritePump pumps frames from the send queue to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
