package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/progress"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

// Client is one WebSocket connection receiving flash progress messages
type Client struct {
	conn      *websocket.Conn
	id        string
	queue     chan *api.ProgressMessage
	done      chan struct{}
	closeOnce sync.Once
}

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 512
	wsBufferSize       = 1024
	incomingBufferSize = 16
)

var (
	ErrClientQueueFull = errors.New("client queue full")
	ErrClientClosed    = errors.New("client closed")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var _ progress.Subscriber = (*Client)(nil)

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return
	}

	client := newClient(conn, s.queueSize)
	s.registerWebSocket(client)
	s.progress.Subscribe(client)

	go func() {
		defer func() {
			s.progress.Unsubscribe(client.ID())
			s.unregisterWebSocket(client)
		}()
		client.run()
	}()
}

func newClient(conn *websocket.Conn, queueSize int) *Client {
	return &Client{
		conn:  conn,
		id:    "ws:" + uuid.NewString(),
		queue: make(chan *api.ProgressMessage, queueSize),
		done:  make(chan struct{}),
	}
}

// ID identifies the client to the broadcaster
func (c *Client) ID() string {
	return c.id
}

// Send queues a message for delivery without blocking. A client that
// cannot keep up loses messages rather than stalling the broadcast
func (c *Client) Send(msg *api.ProgressMessage) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.queue <- msg:
		return nil
	default:
		return ErrClientQueueFull
	}
}

// Close stops the client's connection loop
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) run() {
	defer func() {
		c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, incomingBufferSize)
	go c.readMessages(incoming)

	for {
		select {
		case message, ok := <-incoming:
			if !ok {
				return
			}
			if !c.reply(message) {
				return
			}

		case msg := <-c.queue:
			if !c.write(msg) {
				return
			}

		case <-ticker.C:
			if !c.sendPing() {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *Client) readMessages(incoming chan []byte) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			close(incoming)
			return
		}
		select {
		case incoming <- message:
		case <-c.done:
			return
		}
	}
}

func (c *Client) reply(message []byte) bool {
	pong, ok := progress.Reply(message, time.Now())
	if !ok {
		return true
	}
	return c.write(pong)
}

func (c *Client) write(v any) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		slog.Debug("WebSocket write failed",
			slog.String("client_id", c.id),
			log.Error(err))
		return false
	}
	return true
}

func (c *Client) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}
