// Package events defines the wire surface of the room session channel:
// one JSON envelope per websocket frame, tagged by event name. Inbound
// payloads are decoded into a closed set of typed events and validated
// before they reach any state merging, so a malformed frame fails fast
// instead of silently corrupting the roster.
package events

import (
	"encoding/json"

	"github.com/linguaroom/linguaroom/internal/domain"
)

type Name string

// Client -> server intents.
const (
	JoinRoom    Name = "join-room"
	LeaveRoom   Name = "leave-room"
	SendMessage Name = "send-message"
	Typing      Name = "typing"
	ToggleMute  Name = "toggle-mute"
	Speaking    Name = "speaking"
	KickUser    Name = "kick-user"
	ChangeRole  Name = "change-role"
)

// Server -> client deltas. ToggleMute, Speaking, Typing and ChangeRole
// travel both directions; the rest are inbound only.
const (
	NewMessage   Name = "new-message"
	UserJoined   Name = "user-joined"
	UserLeft     Name = "user-left"
	UserKicked   Name = "user-kicked"
	RoleUpdated  Name = "participant-role-updated"
	MessagesRead Name = "messages-read"
	ErrorName    Name = "error"
)

// Envelope is the only frame shape on the wire.
type Envelope struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is the closed union of inbound deltas.
type ServerEvent interface {
	Event() Name
}

type NewMessageEvent struct {
	Message domain.ChatMessage `json:"message"`
}

type UserJoinedEvent struct {
	Participant domain.Participant `json:"participant"`
}

type UserLeftEvent struct {
	UserID domain.UserID `json:"userId"`
}

type UserKickedEvent struct {
	UserID domain.UserID `json:"userId"`
	ByID   domain.UserID `json:"byId,omitempty"`
}

type RoleUpdatedEvent struct {
	UserID domain.UserID `json:"userId"`
	Role   domain.Role   `json:"role"`
}

type MuteChangedEvent struct {
	UserID domain.UserID `json:"userId"`
	Muted  bool          `json:"isMuted"`
}

type SpeakingEvent struct {
	UserID     domain.UserID `json:"userId"`
	IsSpeaking bool          `json:"isSpeaking"`
}

type TypingEvent struct {
	UserID   domain.UserID `json:"userId"`
	IsTyping bool          `json:"isTyping"`
}

type MessagesReadEvent struct {
	UserID domain.UserID `json:"userId"`
}

type ServerErrorEvent struct {
	Message string `json:"message"`
}

func (NewMessageEvent) Event() Name   { return NewMessage }
func (UserJoinedEvent) Event() Name   { return UserJoined }
func (UserLeftEvent) Event() Name     { return UserLeft }
func (UserKickedEvent) Event() Name   { return UserKicked }
func (RoleUpdatedEvent) Event() Name  { return RoleUpdated }
func (MuteChangedEvent) Event() Name  { return ToggleMute }
func (SpeakingEvent) Event() Name     { return Speaking }
func (TypingEvent) Event() Name       { return Typing }
func (MessagesReadEvent) Event() Name { return MessagesRead }
func (ServerErrorEvent) Event() Name  { return ErrorName }

// Intent payloads emitted by the client. RoomID rides in every intent so
// the server can scope the event without per-connection room affinity.

type JoinRoomIntent struct {
	RoomID domain.RoomID `json:"roomId"`
}

type LeaveRoomIntent struct {
	RoomID domain.RoomID `json:"roomId"`
}

type SendMessageIntent struct {
	RoomID     domain.RoomID      `json:"roomId"`
	LocalID    domain.MessageID   `json:"localId,omitempty"`
	Type       domain.MessageType `json:"type"`
	Content    string             `json:"content"`
	Correction string             `json:"correction,omitempty"`
}

type TypingIntent struct {
	RoomID   domain.RoomID `json:"roomId"`
	IsTyping bool          `json:"isTyping"`
}

type ToggleMuteIntent struct {
	RoomID domain.RoomID `json:"roomId"`
	Muted  bool          `json:"isMuted"`
}

type SpeakingIntent struct {
	RoomID     domain.RoomID `json:"roomId"`
	IsSpeaking bool          `json:"isSpeaking"`
}

type KickUserIntent struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

type ChangeRoleIntent struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
	Role   domain.Role   `json:"role"`
}
