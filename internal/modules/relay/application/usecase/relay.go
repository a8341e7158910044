package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"prodRelayWs/internal/modules/relay/domain"
)

// Conn is a live client connection as the relay sees it: an opaque id plus a
// non-blocking delivery path. Deliver reports false when the connection's send
// buffer is full, which the relay treats as a dead client.
type Conn interface {
	ID() string
	// Username is the identity resolved at connect time, used as the sender
	// name when a send-message payload carries none. Empty for anonymous
	// connections.
	Username() string
	Deliver(frame domain.Frame) bool
	Close()
}

// Persister is the durable backing for the room history mapping.
type Persister interface {
	Load() domain.History
	Save(hist domain.History) error
}

type relayEvent struct {
	attach Conn
	detach string
	origin string
	frame  *domain.Frame
}

// Relay is the room-scoped broadcast state machine. All connection events are
// funnelled through a single channel and processed to completion by Run, one
// at a time; that serialization is what gives every room a total message
// order without locks. The history map and the membership registry are only
// ever touched from inside the loop.
type Relay struct {
	store   Persister
	rooms   *domain.RoomRegistry
	history domain.History
	conns   map[string]Conn
	events  chan relayEvent
	done    chan struct{}
	now     func() time.Time
}

func NewRelay(store Persister, rooms *domain.RoomRegistry) *Relay {
	return &Relay{
		store:   store,
		rooms:   rooms,
		history: store.Load(),
		conns:   make(map[string]Conn),
		events:  make(chan relayEvent, 256),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// Run processes relay events until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.handle(ev)
		}
	}
}

// Attach registers a freshly upgraded connection.
func (r *Relay) Attach(conn Conn) {
	r.enqueue(relayEvent{attach: conn})
}

// Detach removes a connection, purging it from every room.
func (r *Relay) Detach(connID string) {
	r.enqueue(relayEvent{detach: connID})
}

// Submit hands an inbound client frame to the relay loop.
func (r *Relay) Submit(connID string, frame domain.Frame) {
	r.enqueue(relayEvent{origin: connID, frame: &frame})
}

// Publish broadcasts an externally sourced frame (e.g. a product lifecycle
// event consumed from the broker) to every connection.
func (r *Relay) Publish(frame domain.Frame) {
	r.enqueue(relayEvent{frame: &frame})
}

func (r *Relay) enqueue(ev relayEvent) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

func (r *Relay) handle(ev relayEvent) {
	switch {
	case ev.attach != nil:
		r.handleAttach(ev.attach)
	case ev.detach != "":
		r.handleDetach(ev.detach)
	case ev.frame != nil:
		r.handleFrame(ev.origin, *ev.frame)
	}
}

func (r *Relay) handleAttach(conn Conn) {
	if existing, ok := r.conns[conn.ID()]; ok && existing != conn {
		r.dropConn(conn.ID())
	}
	r.conns[conn.ID()] = conn
	slog.Info("relay connection attached", slog.String("connectionId", conn.ID()))

	ack, err := domain.NewFrame(domain.EventConnected, domain.ConnectedPayload{ConnectionID: conn.ID()})
	if err != nil {
		slog.Error("connected ack marshal failed", slog.Any("error", err))
		return
	}
	r.deliver(conn.ID(), ack)
}

func (r *Relay) handleDetach(connID string) {
	if _, ok := r.conns[connID]; !ok {
		return
	}
	r.dropConn(connID)
	slog.Info("relay connection detached", slog.String("connectionId", connID))
}

func (r *Relay) handleFrame(origin string, frame domain.Frame) {
	switch frame.Event {
	case domain.EventJoinRoom:
		r.handleJoin(origin, frame.Payload)
	case domain.EventLeaveRoom:
		r.handleLeave(origin, frame.Payload)
	case domain.EventSendMessage:
		r.handleSendMessage(origin, frame.Payload)
	case domain.EventProductCreated, domain.EventProductUpdated, domain.EventProductDeleted:
		r.handleProductEvent(origin, frame)
	default:
		slog.Warn("relay frame dropped, unknown event", slog.String("connectionId", origin), slog.String("event", frame.Event))
	}
}

func (r *Relay) handleJoin(connID string, payload json.RawMessage) {
	roomID, ok := decodeRoomID(payload)
	if !ok {
		slog.Warn("join dropped, missing roomId", slog.String("connectionId", connID))
		return
	}
	r.rooms.Join(connID, roomID)
	slog.Info("relay join", slog.String("connectionId", connID), slog.String("roomId", roomID))

	// Replay stored history to the joining connection only. Existing members
	// already have it; an empty room sends nothing.
	messages := r.history.Room(roomID)
	if len(messages) == 0 {
		return
	}
	replay, err := domain.NewFrame(domain.EventHistory, domain.HistoryPayload{RoomID: roomID, Messages: messages})
	if err != nil {
		slog.Error("history marshal failed", slog.String("roomId", roomID), slog.Any("error", err))
		return
	}
	r.deliver(connID, replay)
}

func (r *Relay) handleLeave(connID string, payload json.RawMessage) {
	roomID, ok := decodeRoomID(payload)
	if !ok {
		slog.Warn("leave dropped, missing roomId", slog.String("connectionId", connID))
		return
	}
	r.rooms.Leave(connID, roomID)
	slog.Info("relay leave", slog.String("connectionId", connID), slog.String("roomId", roomID))
}

func (r *Relay) handleSendMessage(connID string, payload json.RawMessage) {
	var req domain.SendMessagePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		slog.Warn("send-message dropped, bad payload", slog.String("connectionId", connID), slog.Any("error", err))
		return
	}
	if strings.TrimSpace(req.RoomID) == "" {
		slog.Warn("send-message dropped, missing roomId", slog.String("connectionId", connID))
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		if conn, ok := r.conns[connID]; ok {
			username = conn.Username()
		}
	}

	msg, err := domain.NewChatMessage(req.RoomID, connID, username, req.Body, r.now())
	if err != nil {
		if errors.Is(err, domain.ErrEmptyBody) {
			slog.Warn("send-message dropped, empty body", slog.String("connectionId", connID), slog.String("roomId", req.RoomID))
			return
		}
		slog.Warn("send-message rejected", slog.String("connectionId", connID), slog.Any("error", err))
		return
	}

	// Append to memory first so a join racing this message sees consistent
	// history, then persist, then broadcast. A failed save degrades to
	// in-memory operation and never blocks delivery.
	r.history.Append(msg)
	if err := r.store.Save(r.history); err != nil {
		slog.Error("message store save failed, serving from memory", slog.String("roomId", msg.RoomID), slog.Any("error", err))
	}

	frame, err := domain.NewFrame(domain.EventMessage, msg)
	if err != nil {
		slog.Error("message marshal failed", slog.Any("error", err))
		return
	}

	// Every current room member gets a copy, the sender included: the echo
	// carries the authoritative id and timestamp.
	for _, memberID := range lo.Keys(r.rooms.Members(msg.RoomID)) {
		r.deliver(memberID, frame)
	}
}

func (r *Relay) handleProductEvent(origin string, frame domain.Frame) {
	if !validProductPayload(frame) {
		slog.Warn("product event dropped, bad payload", slog.String("connectionId", origin), slog.String("event", frame.Event))
		return
	}
	// Websocket-originated events skip the originator (it already holds the
	// authoritative local copy); broker-originated ones reach everyone.
	for _, connID := range lo.Keys(r.conns) {
		if origin != "" && connID == origin {
			continue
		}
		r.deliver(connID, frame)
	}
}

func (r *Relay) deliver(connID string, frame domain.Frame) {
	conn, ok := r.conns[connID]
	if !ok {
		return
	}
	if !conn.Deliver(frame) {
		slog.Warn("relay send buffer full, dropping connection", slog.String("connectionId", connID))
		r.dropConn(connID)
	}
}

func (r *Relay) dropConn(connID string) {
	conn, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)
	r.rooms.Purge(connID)
	conn.Close()
}

func decodeRoomID(payload json.RawMessage) (string, bool) {
	var req domain.RoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return "", false
	}
	roomID := strings.TrimSpace(req.RoomID)
	return roomID, roomID != ""
}

func validProductPayload(frame domain.Frame) bool {
	if frame.Event == domain.EventProductDeleted {
		var deleted domain.DeletedProduct
		return json.Unmarshal(frame.Payload, &deleted) == nil && strings.TrimSpace(deleted.ID) != ""
	}
	var product domain.Product
	return json.Unmarshal(frame.Payload, &product) == nil && strings.TrimSpace(product.ID) != ""
}
