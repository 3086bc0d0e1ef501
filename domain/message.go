package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event. It only exists after a
// durable write: the repository assigns ID and CreatedAt, and fan-out
// never delivers a message that was not persisted first.
type Message struct {
	ID        uuid.UUID `json:"id"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	RoomID    *int      `json:"roomId,omitempty"`
	GroupID   *int      `json:"groupId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Channel rebuilds the discriminated channel id from the stored fields.
func (m Message) Channel() Channel {
	switch {
	case m.RoomID != nil:
		return RoomChannel(*m.RoomID)
	case m.GroupID != nil:
		return GroupChannel(*m.GroupID)
	default:
		return Channel{}
	}
}

// NewMessage builds a message for a channel target. Exactly one of the
// room/group fields is set depending on the channel kind.
func NewMessage(id uuid.UUID, senderID, content string, channel Channel, at time.Time) Message {
	m := Message{
		ID:        id,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: at,
	}
	cid := channel.ID
	switch channel.Kind {
	case RoomKind:
		m.RoomID = &cid
	case GroupKind:
		m.GroupID = &cid
	}
	return m
}
