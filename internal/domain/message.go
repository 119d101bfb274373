package domain

import "time"

type MessageID string

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageVoice  MessageType = "voice"
	MessageSystem MessageType = "system"
)

// ChatMessage is one entry of a room's message stream. The stream is
// append-only for the life of a session; order is arrival order.
type ChatMessage struct {
	ID         MessageID      `json:"id"`
	SenderID   UserID         `json:"senderId"`
	SenderName string         `json:"senderName,omitempty"`
	Type       MessageType    `json:"type"`
	Content    string         `json:"content"`
	Correction string         `json:"correction,omitempty"`
	EditedAt   *time.Time     `json:"editedAt,omitempty"`
	Reactions  map[string]int `json:"reactions,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}
