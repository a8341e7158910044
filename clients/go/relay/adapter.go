// Package relay provides a client for the product room relay. It maintains
// one long-lived websocket, re-enters joined rooms after reconnects, and
// dispatches inbound traffic into application callbacks.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrDisconnected is returned by outbound calls while no connection is live.
// The relay is a live-chat channel, not a durable queue: callers report the
// failure instead of spooling sends.
var ErrDisconnected = errors.New("relay: not connected")

const (
	defaultReconnectAttempts = 5
	defaultReconnectDelay    = time.Second
)

// Wire event names, matching the relay server.
const (
	eventJoinRoom    = "join-room"
	eventLeaveRoom   = "leave-room"
	eventSendMessage = "send-message"

	eventMessage = "message"
	eventHistory = "history"

	eventProductCreated = "product-created"
	eventProductUpdated = "product-updated"
	eventProductDeleted = "product-deleted"

	eventConnected = "connected"
)

type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ChatMessage is the relay's authoritative chat record. The id is assigned
// server-side; the adapter deduplicates inbound messages by it.
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Product mirrors the CRUD API's product record.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Image       string    `json:"image,omitempty"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Handlers are the application-state entry points for inbound events. All
// callbacks run on the adapter's read goroutine; nil callbacks are skipped.
type Handlers struct {
	OnConnect        func(connectionID string)
	OnDisconnect     func(err error)
	OnMessage        func(msg ChatMessage)
	OnHistory        func(roomID string, messages []ChatMessage)
	OnProductCreated func(product Product)
	OnProductUpdated func(product Product)
	OnProductDeleted func(productID string)
}

// Config configures a Dial.
type Config struct {
	// URL is the relay websocket endpoint, e.g. ws://localhost:3001/ws.
	URL string
	// Token is an optional identity token sent as a query parameter.
	Token string
	// ReconnectAttempts bounds consecutive reconnect tries (default 5).
	ReconnectAttempts int
	// ReconnectDelay is the fixed wait between tries (default 1s).
	ReconnectDelay time.Duration
	Handlers       Handlers
}

// Adapter is the client-side relay endpoint. Safe for concurrent use.
type Adapter struct {
	cfg Config

	mu           sync.Mutex
	conn         *websocket.Conn
	rooms        map[string]struct{}
	seen         map[string]map[string]struct{}
	connectionID string
	closed       bool
}

// Dial connects to the relay and starts dispatching inbound events.
func Dial(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = defaultReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}

	a := &Adapter{
		cfg:   cfg,
		rooms: make(map[string]struct{}),
		seen:  make(map[string]map[string]struct{}),
	}
	conn, err := a.dial(ctx)
	if err != nil {
		return nil, err
	}
	a.conn = conn
	go a.readLoop()
	return a, nil
}

func (a *Adapter) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := url.Parse(a.cfg.URL)
	if err != nil {
		return nil, err
	}
	if a.cfg.Token != "" {
		query := endpoint.Query()
		query.Set("token", a.cfg.Token)
		endpoint.RawQuery = query.Encode()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	return conn, err
}

// JoinRoom enters a room and tracks it for re-entry after reconnects.
// Joining an already joined room is a no-op on the tracking side; the relay
// treats the repeated request idempotently too.
func (a *Adapter) JoinRoom(roomID string) error {
	a.mu.Lock()
	a.rooms[roomID] = struct{}{}
	a.mu.Unlock()
	return a.emit(eventJoinRoom, roomPayload{RoomID: roomID})
}

// LeaveRoom exits a room. A no-op when the room was never joined.
func (a *Adapter) LeaveRoom(roomID string) error {
	a.mu.Lock()
	_, joined := a.rooms[roomID]
	delete(a.rooms, roomID)
	a.mu.Unlock()
	if !joined {
		return nil
	}
	return a.emit(eventLeaveRoom, roomPayload{RoomID: roomID})
}

// SendMessage submits a chat message. The adapter does not append locally;
// the authoritative copy arrives through the relay's echo and is dispatched
// via OnMessage.
func (a *Adapter) SendMessage(roomID, body, username string) error {
	return a.emit(eventSendMessage, sendMessagePayload{RoomID: roomID, Body: body, Username: username})
}

// EmitProductCreated relays a product creation to every other client.
func (a *Adapter) EmitProductCreated(product Product) error {
	return a.emit(eventProductCreated, product)
}

// EmitProductUpdated relays a product update to every other client.
func (a *Adapter) EmitProductUpdated(product Product) error {
	return a.emit(eventProductUpdated, product)
}

// EmitProductDeleted relays a product deletion to every other client.
func (a *Adapter) EmitProductDeleted(productID string) error {
	return a.emit(eventProductDeleted, deletedPayload{ID: productID})
}

// ConnectionID returns the server-assigned connection id, empty before the
// first connected ack.
func (a *Adapter) ConnectionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connectionID
}

// Close tears the connection down permanently; no reconnect follows.
func (a *Adapter) Close() error {
	a.mu.Lock()
	a.closed = true
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type sendMessagePayload struct {
	RoomID   string `json:"roomId"`
	Body     string `json:"body"`
	Username string `json:"username"`
}

type deletedPayload struct {
	ID string `json:"id"`
}

type historyPayload struct {
	RoomID   string        `json:"roomId"`
	Messages []ChatMessage `json:"messages"`
}

type connectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

func (a *Adapter) emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return ErrDisconnected
	}
	return a.conn.WriteJSON(frame{Event: event, Payload: data})
}

func (a *Adapter) readLoop() {
	for {
		a.mu.Lock()
		conn := a.conn
		closed := a.closed
		a.mu.Unlock()
		if closed || conn == nil {
			return
		}

		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if a.isClosed() {
				return
			}
			slog.Warn("relay connection lost", slog.Any("error", err))
			if !a.reconnect() {
				if a.cfg.Handlers.OnDisconnect != nil {
					a.cfg.Handlers.OnDisconnect(err)
				}
				return
			}
			continue
		}
		a.dispatch(f)
	}
}

// reconnect tries a bounded number of fresh dials with a fixed delay, then
// re-enters every tracked room on success.
func (a *Adapter) reconnect() bool {
	a.mu.Lock()
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}
	a.mu.Unlock()

	for attempt := 1; attempt <= a.cfg.ReconnectAttempts; attempt++ {
		time.Sleep(a.cfg.ReconnectDelay)
		if a.isClosed() {
			return false
		}

		conn, err := a.dial(context.Background())
		if err != nil {
			slog.Warn("relay reconnect failed", slog.Int("attempt", attempt), slog.Any("error", err))
			continue
		}

		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			_ = conn.Close()
			return false
		}
		a.conn = conn
		joined := make([]string, 0, len(a.rooms))
		for roomID := range a.rooms {
			joined = append(joined, roomID)
		}
		a.mu.Unlock()

		slog.Info("relay reconnected", slog.Int("attempt", attempt), slog.Int("rooms", len(joined)))
		for _, roomID := range joined {
			if err := a.emit(eventJoinRoom, roomPayload{RoomID: roomID}); err != nil {
				slog.Warn("room re-entry failed", slog.String("roomId", roomID), slog.Any("error", err))
			}
		}
		return true
	}
	return false
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Adapter) dispatch(f frame) {
	switch f.Event {
	case eventConnected:
		var ack connectedPayload
		if err := json.Unmarshal(f.Payload, &ack); err != nil {
			slog.Warn("connected ack dropped", slog.Any("error", err))
			return
		}
		a.mu.Lock()
		a.connectionID = ack.ConnectionID
		a.mu.Unlock()
		if a.cfg.Handlers.OnConnect != nil {
			a.cfg.Handlers.OnConnect(ack.ConnectionID)
		}
	case eventMessage:
		var msg ChatMessage
		if err := json.Unmarshal(f.Payload, &msg); err != nil {
			slog.Warn("message dropped, bad payload", slog.Any("error", err))
			return
		}
		if !a.markSeen(msg.RoomID, msg.ID) {
			slog.Debug("duplicate message suppressed", slog.String("id", msg.ID), slog.String("roomId", msg.RoomID))
			return
		}
		if a.cfg.Handlers.OnMessage != nil {
			a.cfg.Handlers.OnMessage(msg)
		}
	case eventHistory:
		var replay historyPayload
		if err := json.Unmarshal(f.Payload, &replay); err != nil {
			slog.Warn("history dropped, bad payload", slog.Any("error", err))
			return
		}
		a.resetSeen(replay.RoomID, replay.Messages)
		if a.cfg.Handlers.OnHistory != nil {
			a.cfg.Handlers.OnHistory(replay.RoomID, replay.Messages)
		}
	case eventProductCreated, eventProductUpdated:
		var product Product
		if err := json.Unmarshal(f.Payload, &product); err != nil {
			slog.Warn("product event dropped, bad payload", slog.String("event", f.Event), slog.Any("error", err))
			return
		}
		if f.Event == eventProductCreated {
			if a.cfg.Handlers.OnProductCreated != nil {
				a.cfg.Handlers.OnProductCreated(product)
			}
		} else if a.cfg.Handlers.OnProductUpdated != nil {
			a.cfg.Handlers.OnProductUpdated(product)
		}
	case eventProductDeleted:
		var deleted deletedPayload
		if err := json.Unmarshal(f.Payload, &deleted); err != nil {
			slog.Warn("product-deleted dropped, bad payload", slog.Any("error", err))
			return
		}
		if a.cfg.Handlers.OnProductDeleted != nil {
			a.cfg.Handlers.OnProductDeleted(deleted.ID)
		}
	default:
		slog.Debug("relay frame ignored", slog.String("event", f.Event))
	}
}

// markSeen records a message id, reporting false when it was already known.
func (a *Adapter) markSeen(roomID, id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seen[roomID] == nil {
		a.seen[roomID] = make(map[string]struct{})
	}
	if _, dup := a.seen[roomID][id]; dup {
		return false
	}
	a.seen[roomID][id] = struct{}{}
	return true
}

// resetSeen replaces a room's known ids with the replayed history, so a
// replay after reconnect does not mark live messages as duplicates forever.
func (a *Adapter) resetSeen(roomID string, messages []ChatMessage) {
	ids := make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		ids[msg.ID] = struct{}{}
	}
	a.mu.Lock()
	a.seen[roomID] = ids
	a.mu.Unlock()
}
