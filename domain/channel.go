// Package domain contains core concepts of the collaboration platform's
// messaging subsystem: channels, messages and the wire frames exchanged
// over a WebSocket connection.
package domain

import "fmt"

// ChannelKind discriminates the two broadcast domains. A channel is
// always a room or a group, never both.
type ChannelKind string

const (
	RoomKind  ChannelKind = "room"
	GroupKind ChannelKind = "group"
)

// Channel identifies a broadcast domain for chat messages. The zero
// value means "no channel" and is used for unbound connections.
type Channel struct {
	Kind ChannelKind
	ID   int
}

func RoomChannel(id int) Channel {
	return Channel{Kind: RoomKind, ID: id}
}

func GroupChannel(id int) Channel {
	return Channel{Kind: GroupKind, ID: id}
}

// IsZero reports whether the channel designates nothing.
func (c Channel) IsZero() bool {
	return c.Kind == ""
}

// Key returns the storage and index form of the channel ("room:5",
// "group:7"). Keys are stable: they are embedded in Badger keys.
func (c Channel) Key() string {
	return fmt.Sprintf("%s:%d", c.Kind, c.ID)
}

func (c Channel) String() string {
	if c.IsZero() {
		return "none"
	}
	return c.Key()
}
