package domain

import "encoding/json"

// Wire event names, shared by client and server frames.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"

	EventMessage = "message"
	EventHistory = "history"

	EventProductCreated = "product-created"
	EventProductUpdated = "product-updated"
	EventProductDeleted = "product-deleted"

	EventConnected = "connected"
)

// Frame is the JSON envelope exchanged over the websocket in both directions.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFrame marshals payload into a frame for the given event.
func NewFrame(event string, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Payload: data}, nil
}

// RoomPayload addresses join-room and leave-room requests.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// SendMessagePayload is the client's send-message request body.
type SendMessagePayload struct {
	RoomID   string `json:"roomId"`
	Body     string `json:"body"`
	Username string `json:"username"`
}

// HistoryPayload replays a room's stored messages to a joining connection.
type HistoryPayload struct {
	RoomID   string        `json:"roomId"`
	Messages []ChatMessage `json:"messages"`
}

// ConnectedPayload acknowledges a successful upgrade with the server-assigned
// connection id.
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}
