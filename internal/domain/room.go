package domain

type (
	RoomID   string
	RoomName string
)

// Room is the REST-fetched room document. The client never mutates it
// directly; live state (roster, messages) is tracked separately.
type Room struct {
	ID              RoomID   `json:"id"`
	Name            RoomName `json:"name"`
	Language        string   `json:"language"`
	Topic           string   `json:"topic,omitempty"`
	Private         bool     `json:"isPrivate"`
	MaxParticipants int      `json:"maxParticipants"`
	HostID          UserID   `json:"hostId"`
	ModeratorIDs    []UserID `json:"moderatorIds,omitempty"`
}
