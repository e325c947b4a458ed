package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/npezzotti/versehub/internal/database"
)

type EnvelopeType string

const (
	TypeNewMessage      EnvelopeType = "NEW_MESSAGE"
	TypeTyping          EnvelopeType = "TYPING"
	TypeReadReceipt     EnvelopeType = "READ_RECEIPT"
	TypeNewNotification EnvelopeType = "NEW_NOTIFICATION"
	TypeOnlineUsers     EnvelopeType = "ONLINE_USERS"
	TypeError           EnvelopeType = "ERROR"
)

var ErrInvalidEnvelope = errors.New("invalid envelope")

type User struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
}

// ClientMessage is an inbound envelope. UserId is always taken from the
// authenticated connection, never from the frame.
type ClientMessage struct {
	Type      EnvelopeType    `json:"type"`
	ChatId    int             `json:"chatId"`
	Message   json.RawMessage `json:"message,omitempty"`
	Content   string          `json:"content,omitempty"`
	MessageId int             `json:"messageId,omitempty"`
	UserId    int             `json:"-"`
	Timestamp time.Time       `json:"-"`
	client    *Client
}

func (m *ClientMessage) Validate() error {
	switch m.Type {
	case TypeNewMessage, TypeTyping:
	case TypeReadReceipt:
		if m.MessageId <= 0 {
			return fmt.Errorf("%w: read receipt requires messageId", ErrInvalidEnvelope)
		}
	case "":
		return fmt.Errorf("%w: missing type", ErrInvalidEnvelope)
	default:
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidEnvelope, m.Type)
	}

	if m.ChatId <= 0 {
		return fmt.Errorf("%w: missing chatId", ErrInvalidEnvelope)
	}

	return nil
}

// ServerMessage is an outbound envelope. Only the fields relevant to Type
// are populated.
type ServerMessage struct {
	Type         EnvelopeType           `json:"type"`
	ChatId       int                    `json:"chatId,omitempty"`
	Message      json.RawMessage        `json:"message,omitempty"`
	Content      string                 `json:"content,omitempty"`
	MessageId    int                    `json:"messageId,omitempty"`
	UserId       int                    `json:"userId,omitempty"`
	Notification *database.Notification `json:"notification,omitempty"`
	Users        []int                  `json:"users,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

func NewChatMessage(chatId, senderId int, content string, message json.RawMessage) *ServerMessage {
	return &ServerMessage{
		Type:      TypeNewMessage,
		ChatId:    chatId,
		UserId:    senderId,
		Content:   content,
		Message:   message,
		Timestamp: Now(),
	}
}

func NewTyping(chatId, userId int) *ServerMessage {
	return &ServerMessage{
		Type:      TypeTyping,
		ChatId:    chatId,
		UserId:    userId,
		Timestamp: Now(),
	}
}

func NewReadReceipt(chatId, messageId, userId int) *ServerMessage {
	return &ServerMessage{
		Type:      TypeReadReceipt,
		ChatId:    chatId,
		MessageId: messageId,
		UserId:    userId,
		Timestamp: Now(),
	}
}

func NewNotificationMessage(n database.Notification) *ServerMessage {
	return &ServerMessage{
		Type:         TypeNewNotification,
		Notification: &n,
		Timestamp:    Now(),
	}
}

func NewOnlineUsers(users []int) *ServerMessage {
	return &ServerMessage{
		Type:      TypeOnlineUsers,
		Users:     users,
		Timestamp: Now(),
	}
}

func ErrMessage(chatId int, err string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		ChatId:    chatId,
		Error:     err,
		Timestamp: Now(),
	}
}

func ErrInvalidMessage() *ServerMessage {
	return ErrMessage(0, "invalid message format")
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
