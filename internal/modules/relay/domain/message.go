package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrEmptyBody = errors.New("empty message body")

// ChatMessage is a single chat entry scoped to a product room. Messages are
// immutable once minted; the relay-assigned id is the identity clients use to
// deduplicate redelivery after reconnects.
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewChatMessage mints a message with a fresh id and the given timestamp.
// Whitespace-only bodies are rejected with ErrEmptyBody.
func NewChatMessage(roomID, senderID, username, body string, at time.Time) (ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return ChatMessage{}, ErrEmptyBody
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = "Anonymous"
	}
	return ChatMessage{
		ID:        uuid.NewString(),
		RoomID:    strings.TrimSpace(roomID),
		SenderID:  senderID,
		Username:  username,
		Body:      body,
		CreatedAt: at.UTC(),
	}, nil
}

// History maps roomId to the ordered list of messages accepted for that room.
// It is the in-memory image of the persisted record; the relay loop is the
// only mutator.
type History map[string][]ChatMessage

// Append adds msg to its room's list, creating the list if needed.
func (h History) Append(msg ChatMessage) {
	h[msg.RoomID] = append(h[msg.RoomID], msg)
}

// Room returns the ordered messages for roomID, nil when the room is unknown.
func (h History) Room(roomID string) []ChatMessage {
	return h[roomID]
}
