package infrastructure

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"prodRelayWs/internal/modules/relay/domain"
)

const (
	readLimit    = 1 << 16
	readDeadline = 60 * time.Second
	pingInterval = 30 * time.Second
	pingWait     = 5 * time.Second
)

// Sink receives everything a connection produces: decoded frames while the
// connection lives and exactly one Detach when it dies.
type Sink interface {
	Submit(connID string, frame domain.Frame)
	Detach(connID string)
}

// Client owns one websocket connection. Outbound frames are queued on a
// buffered channel drained by WritePump; inbound frames are decoded by
// ReadPump and handed to the sink. It never blocks its caller: a full send
// queue makes Deliver return false so the relay can drop the connection.
type Client struct {
	id        string
	username  string
	conn      *websocket.Conn
	sink      Sink
	send      chan domain.Frame
	closeOnce sync.Once
}

func NewClient(id, username string, conn *websocket.Conn, sink Sink, buf int) *Client {
	return &Client{
		id:       id,
		username: username,
		conn:     conn,
		sink:     sink,
		send:     make(chan domain.Frame, buf),
	}
}

func (c *Client) ID() string { return c.id }

// Username is the identity resolved at connect time, empty for anonymous
// connections.
func (c *Client) Username() string { return c.username }

// Deliver queues a frame for the write pump. Only the relay loop calls this,
// and never after Close.
func (c *Client) Deliver(frame domain.Frame) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

// WritePump drains the send queue onto the wire and keeps the connection
// alive with periodic pings.
func (c *Client) WritePump() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				slog.Warn("websocket write error", slog.String("connectionId", c.id), slog.Any("error", err))
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWait)); err != nil {
				slog.Warn("websocket ping error", slog.String("connectionId", c.id), slog.Any("error", err))
				return
			}
		}
	}
}

// ReadPump decodes inbound frames until the connection drops, then detaches
// from the sink. Malformed JSON terminates the read loop the same way a
// closed socket does; anything that parses as a frame is forwarded as-is and
// validated by the relay.
func (c *Client) ReadPump() {
	defer c.sink.Detach(c.id)

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		var frame domain.Frame
		_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		if err := c.conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket read error", slog.String("connectionId", c.id), slog.Any("error", err))
			}
			return
		}
		c.sink.Submit(c.id, frame)
	}
}
