package domain

import (
	"encoding/json"
	"fmt"
)

// Client frames form a closed union over the three inbound kinds.
// They are decoded exactly once at the connection boundary; the broker
// state machine then switches exhaustively over the variants instead of
// re-inspecting a raw "type" field per handler.

type ClientFrame interface {
	isClientFrame()
}

type AuthFrame struct {
	Token string
}

// JoinFrame binds the connection to a room or a group. Neither field
// set means "leave the current channel".
type JoinFrame struct {
	RoomID  *int
	GroupID *int
}

// MessageFrame posts content to an explicit channel, or to the
// currently bound one when both ids are nil.
type MessageFrame struct {
	Content string
	RoomID  *int
	GroupID *int
}

func (AuthFrame) isClientFrame()    {}
func (JoinFrame) isClientFrame()    {}
func (MessageFrame) isClientFrame() {}

// frameEnvelope is the superset of all client frame fields; only the
// ones matching the declared type are read.
type frameEnvelope struct {
	Type    string `json:"type"`
	Token   string `json:"token"`
	Content string `json:"content"`
	RoomID  *int   `json:"roomId"`
	GroupID *int   `json:"groupId"`
}

// DecodeFrame parses a raw inbound frame into its typed variant.
func DecodeFrame(raw []byte) (ClientFrame, error) {
	var env frameEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	switch env.Type {
	case "auth":
		return AuthFrame{Token: env.Token}, nil
	case "join":
		return JoinFrame{RoomID: env.RoomID, GroupID: env.GroupID}, nil
	case "message":
		return MessageFrame{Content: env.Content, RoomID: env.RoomID, GroupID: env.GroupID}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", env.Type)
	}
}

// Server frames mirror the outbound side of the protocol. Each carries
// its own "type" tag so a frame marshals directly to the wire format.

type ServerFrame interface {
	isServerFrame()
}

type AuthSuccessFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type JoinSuccessFrame struct {
	Type    string `json:"type"`
	RoomID  *int   `json:"roomId,omitempty"`
	GroupID *int   `json:"groupId,omitempty"`
}

type NewMessageFrame struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (AuthSuccessFrame) isServerFrame() {}
func (JoinSuccessFrame) isServerFrame() {}
func (NewMessageFrame) isServerFrame()  {}
func (ErrorFrame) isServerFrame()       {}

func NewAuthSuccess(userID string) AuthSuccessFrame {
	return AuthSuccessFrame{Type: "auth_success", UserID: userID}
}

func NewJoinSuccess(channel Channel) JoinSuccessFrame {
	f := JoinSuccessFrame{Type: "join_success"}
	id := channel.ID
	switch channel.Kind {
	case RoomKind:
		f.RoomID = &id
	case GroupKind:
		f.GroupID = &id
	}
	return f
}

func NewMessageDelivery(message Message) NewMessageFrame {
	return NewMessageFrame{Type: "new_message", Message: message}
}

func NewError(message string) ErrorFrame {
	return ErrorFrame{Type: "error", Message: message}
}

// EncodeFrame serializes a server frame for the wire.
func EncodeFrame(frame ServerFrame) ([]byte, error) {
	return json.Marshal(frame)
}
