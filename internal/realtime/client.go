package realtime

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 64
)

// Handler receives decoded inbound frames and the final disconnect of a Client.
type Handler interface {
	HandleEvent(conn Conn, ev Event)
	Disconnected(conn Conn)
}

// Client is a websocket-backed Conn.
type Client struct {
	id      string
	userID  int64
	conn    *websocket.Conn
	handler Handler
	send    chan Event
	stop    chan struct{}
	once    sync.Once
	alive   atomic.Bool
}

func NewClient(userID int64, conn *websocket.Conn, handler Handler) *Client {
	c := &Client{
		id:      uuid.NewString(),
		userID:  userID,
		conn:    conn,
		handler: handler,
		send:    make(chan Event, sendBufferSize),
		stop:    make(chan struct{}),
	}
	c.alive.Store(true)
	return c
}

func (c *Client) ID() string    { return c.id }
func (c *Client) UserID() int64 { return c.userID }
func (c *Client) Alive() bool   { return c.alive.Load() }

func (c *Client) Send(ev Event) bool {
	if !c.Alive() {
		return false
	}
	select {
	case c.send <- ev:
		return true
	case <-c.stop:
		return false
	default:
		log.Warn().
			Str("connId", c.id).
			Int64("userId", c.userID).
			Str("eventType", ev.Type).
			Msg("client send buffer full")
		return false
	}
}

// Close stops the client. The write pump sends a close frame and releases
// the socket, which ends the read pump.
func (c *Client) Close() {
	c.once.Do(func() {
		c.alive.Store(false)
		close(c.stop)
	})
}

// Run starts the write pump and blocks in the read pump until the
// connection ends, then reports the disconnect to the handler once.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		c.handler.Disconnected(c)
		log.Debug().Str("connId", c.id).Int64("userId", c.userID).Msg("read pump exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("connId", c.id).Msg("websocket read failed")
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Type == "" {
			log.Debug().Str("connId", c.id).Msg("ignoring malformed frame")
			continue
		}
		c.handler.HandleEvent(c, ev)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Str("eventType", ev.Type).Msg("failed to serialize event")
				continue
			}
			if !c.write(websocket.TextMessage, data) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) write(msgType int, data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(msgType, data); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			log.Warn().Err(err).Str("connId", c.id).Msg("websocket write failed")
		}
		return false
	}
	return true
}
