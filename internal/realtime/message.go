package realtime

import (
	"time"

	"github.com/google/uuid"
)

// SenderProfile carries the denormalized display fields embedded in the
// realtime form of a message.
type SenderProfile struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Avatar   string `json:"avatar,omitempty"`
}

// Message is the realtime form of a chat message, pushed to connected
// clients as the NEW_MESSAGE payload.
type Message struct {
	ID        string        `json:"id"`
	ChatID    string        `json:"chat_id"`
	Content   string        `json:"content"`
	Sender    SenderProfile `json:"sender"`
	CreatedAt time.Time     `json:"created_at"`
}

// StoredMessage is the persistence form: same identifier, content and chat
// id as the realtime form, sender reduced to its identity.
type StoredMessage struct {
	ID        string
	ChatID    string
	SenderID  string
	Content   string
	CreatedAt time.Time
}

// NewMessageRecord derives both forms of a message from one inbound event.
func NewMessageRecord(chatID, content string, sender SenderProfile) (Message, StoredMessage) {
	id := uuid.NewString()
	now := time.Now().UTC()
	rt := Message{
		ID:        id,
		ChatID:    chatID,
		Content:   content,
		Sender:    sender,
		CreatedAt: now,
	}
	stored := StoredMessage{
		ID:        id,
		ChatID:    chatID,
		SenderID:  sender.ID,
		Content:   content,
		CreatedAt: now,
	}
	return rt, stored
}

// MessageAlert is the NEW_MESSAGE_ALERT payload.
type MessageAlert struct {
	ChatID string `json:"chatId"`
}
